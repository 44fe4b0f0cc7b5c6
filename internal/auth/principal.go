package auth

import (
	"context"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
)

type Scheme string

const (
	SchemeAPIKey    Scheme = "api_key"
	SchemeClientKey Scheme = "client_key"
)

// Principal is the verified caller of one request.
type Principal struct {
	AccountID uint64 `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Scheme    Scheme `json:"scheme"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

func (p Principal) CanPublish() bool {
	return p.Role == models.RolePublisher || p.Role == models.RoleAdmin
}

// Owns reports whether p may act on a resource owned by ownerID.
func (p Principal) Owns(ownerID uint64) bool {
	return p.IsAdmin() || (p.AccountID != 0 && p.AccountID == ownerID)
}

func RequireScheme(p Principal, schemes ...Scheme) error {
	for _, s := range schemes {
		if p.Scheme == s {
			return nil
		}
	}
	if len(schemes) == 1 && schemes[0] == SchemeClientKey {
		return apperr.Forbidden("client key credentials required")
	}
	if len(schemes) == 1 && schemes[0] == SchemeAPIKey {
		return apperr.Forbidden("API key credentials required")
	}
	return apperr.Forbidden("credential scheme not allowed")
}

func RequirePublisher(p Principal) error {
	if !p.CanPublish() {
		return apperr.Forbidden("publisher role required")
	}
	return nil
}

func RequireAdmin(p Principal) error {
	if !p.IsAdmin() {
		return apperr.Forbidden("admin privileges required")
	}
	return nil
}

type ctxKey int

const principalKey ctxKey = 1

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
