package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	emailPattern    = regexp.MustCompile(`^[\w.+-]+@[\w.-]+\.\w+$`)
)

type Options struct {
	AdminAPIKey     string
	APIKeyTTL       time.Duration
	PublisherSignup bool
	BcryptCost      int
}

// Headers carries the raw credential headers of one request.
type Headers struct {
	APIKey       string
	ClientKey    string
	ClientSecret string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// Issued holds freshly minted plaintext credentials. ClientSecret is empty when
// the account already had a client pair, since secrets are revealed only once.
type Issued struct {
	Account         *models.Account
	APIKey          string
	APIKeyExpiresAt time.Time
	ClientKey       string
	ClientSecret    string
}

// Authority issues and verifies both credential kinds.
type Authority struct {
	repo repository.AccountRepository
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

func NewAuthority(repo repository.AccountRepository, opts Options, log *zap.Logger) *Authority {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.APIKeyTTL <= 0 {
		opts.APIKeyTTL = 30 * 24 * time.Hour
	}
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	opts.AdminAPIKey = strings.TrimSpace(opts.AdminAPIKey)
	return &Authority{
		repo: repo,
		opts: opts,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (a *Authority) Register(ctx context.Context, in RegisterInput) (Issued, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateRegistration(in); err != nil {
		return Issued{}, err
	}

	existing, err := a.repo.GetAccountByUsername(ctx, in.Username)
	if err != nil {
		return Issued{}, apperr.Internal("lookup account", err)
	}
	if existing != nil {
		return Issued{}, apperr.Conflict("username already registered", map[string]any{"field": "username"})
	}
	existing, err = a.repo.GetAccountByEmail(ctx, in.Email)
	if err != nil {
		return Issued{}, apperr.Internal("lookup account", err)
	}
	if existing != nil {
		return Issued{}, apperr.Conflict("email already registered", map[string]any{"field": "email"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.opts.BcryptCost)
	if err != nil {
		return Issued{}, apperr.Internal("hash password", err)
	}
	issued, apiHash, clientHash, err := a.mint(true)
	if err != nil {
		return Issued{}, err
	}

	role := models.RoleSubscriber
	if a.opts.PublisherSignup {
		role = models.RolePublisher
	}
	now := a.now()
	acct := &models.Account{
		Username:         in.Username,
		Email:            in.Email,
		FullName:         in.FullName,
		HashedPassword:   string(hashed),
		Role:             role,
		Active:           true,
		APIKeyHash:       &apiHash,
		APIKeyExpiresAt:  &issued.APIKeyExpiresAt,
		ClientKey:        &issued.ClientKey,
		ClientSecretHash: &clientHash,
		LastLoginAt:      &now,
	}
	if err := a.repo.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Issued{}, apperr.Conflict("username or email already registered", nil)
		}
		return Issued{}, apperr.Internal("create account", err)
	}
	issued.Account = acct
	a.log.Info("account registered", zap.Uint64("account_id", acct.ID), zap.String("username", acct.Username), zap.String("role", role))
	return issued, nil
}

// IssueSession checks the password and rotates the account's API key.
func (a *Authority) IssueSession(ctx context.Context, username, password string) (Issued, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Issued{}, apperr.Unauthenticated("username and password required")
	}
	acct, err := a.repo.GetAccountByUsername(ctx, username)
	if err != nil {
		return Issued{}, apperr.Internal("lookup account", err)
	}
	if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.HashedPassword), []byte(password)) != nil {
		return Issued{}, apperr.Unauthenticated("invalid username or password")
	}
	if !acct.Active {
		return Issued{}, apperr.Forbidden("account is disabled")
	}

	firstClient := acct.ClientKey == nil || *acct.ClientKey == ""
	issued, apiHash, clientHash, err := a.mint(firstClient)
	if err != nil {
		return Issued{}, err
	}
	now := a.now()
	update := repository.AccountCredentialsUpdate{
		APIKeyHash:      &apiHash,
		APIKeyExpiresAt: &issued.APIKeyExpiresAt,
		LastLoginAt:     &now,
	}
	if firstClient {
		update.ClientKey = &issued.ClientKey
		update.ClientSecretHash = &clientHash
	} else {
		issued.ClientKey = *acct.ClientKey
	}
	if err := a.repo.UpdateAccountCredentials(ctx, acct.ID, update); err != nil {
		return Issued{}, apperr.Internal("rotate api key", err)
	}
	acct.APIKeyHash = &apiHash
	acct.APIKeyExpiresAt = &issued.APIKeyExpiresAt
	acct.LastLoginAt = &now
	if firstClient {
		acct.ClientKey = &issued.ClientKey
		acct.ClientSecretHash = &clientHash
	}
	issued.Account = acct
	return issued, nil
}

// IssueClientCredentials rotates the client pair; the previous secret stops working at once.
func (a *Authority) IssueClientCredentials(ctx context.Context, accountID uint64) (string, string, error) {
	acct, err := a.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return "", "", apperr.Internal("lookup account", err)
	}
	if acct == nil {
		return "", "", apperr.NotFound("account", accountID)
	}
	if !acct.Active {
		return "", "", apperr.Forbidden("account is disabled")
	}
	clientKey, err := NewClientKey()
	if err != nil {
		return "", "", apperr.Internal("generate client key", err)
	}
	secret, err := NewClientSecret()
	if err != nil {
		return "", "", apperr.Internal("generate client secret", err)
	}
	secretHash, err := HashSecret(secret)
	if err != nil {
		return "", "", apperr.Internal("hash client secret", err)
	}
	if err := a.repo.UpdateAccountCredentials(ctx, acct.ID, repository.AccountCredentialsUpdate{
		ClientKey:        &clientKey,
		ClientSecretHash: &secretHash,
	}); err != nil {
		return "", "", apperr.Internal("rotate client credentials", err)
	}
	a.log.Info("client credentials rotated", zap.Uint64("account_id", acct.ID))
	return clientKey, secret, nil
}

// Verify resolves the caller. The client-key scheme is tried first; when it is
// rejected as unauthenticated and an X-API-Key is present, the API key decides.
func (a *Authority) Verify(ctx context.Context, h Headers) (Principal, error) {
	h.APIKey = strings.TrimSpace(h.APIKey)
	h.ClientKey = strings.TrimSpace(h.ClientKey)
	h.ClientSecret = strings.TrimSpace(h.ClientSecret)

	if h.ClientKey != "" {
		p, err := a.verifyClient(ctx, h.ClientKey, h.ClientSecret)
		if err == nil || h.APIKey == "" || !errors.Is(err, apperr.ErrUnauthenticated) {
			return p, err
		}
	}
	if h.APIKey != "" {
		return a.verifyAPIKey(ctx, h.APIKey)
	}
	return Principal{}, apperr.Unauthenticated("credentials required (X-API-Key or X-Client-Key and X-Client-Secret)")
}

func (a *Authority) verifyClient(ctx context.Context, clientKey, secret string) (Principal, error) {
	if secret == "" {
		return Principal{}, apperr.Unauthenticated("client secret required")
	}
	acct, err := a.repo.GetAccountByClientKey(ctx, clientKey)
	if err != nil {
		return Principal{}, apperr.Internal("lookup client key", err)
	}
	if acct == nil || acct.ClientSecretHash == nil || !VerifySecret(*acct.ClientSecretHash, secret) {
		return Principal{}, apperr.Unauthenticated("invalid client credentials")
	}
	if !acct.Active {
		return Principal{}, apperr.Forbidden("account is disabled")
	}
	a.touch(ctx, acct.ID)
	return Principal{AccountID: acct.ID, Username: acct.Username, Role: acct.Role, Scheme: SchemeClientKey}, nil
}

func (a *Authority) verifyAPIKey(ctx context.Context, apiKey string) (Principal, error) {
	if a.opts.AdminAPIKey != "" && subtleEq(apiKey, a.opts.AdminAPIKey) {
		return Principal{Username: "admin", Role: models.RoleAdmin, Scheme: SchemeAPIKey}, nil
	}
	acct, err := a.repo.GetAccountByAPIKeyHash(ctx, HashAPIKey(apiKey))
	if err != nil {
		return Principal{}, apperr.Internal("lookup api key", err)
	}
	if acct == nil {
		return Principal{}, apperr.Unauthenticated("invalid API key")
	}
	if !acct.Active {
		return Principal{}, apperr.Forbidden("account is disabled")
	}
	if acct.APIKeyExpiresAt != nil && !acct.APIKeyExpiresAt.After(a.now()) {
		return Principal{}, apperr.Unauthenticated("API key has expired")
	}
	a.touch(ctx, acct.ID)
	return Principal{AccountID: acct.ID, Username: acct.Username, Role: acct.Role, Scheme: SchemeAPIKey}, nil
}

// touch never fails the request.
func (a *Authority) touch(ctx context.Context, accountID uint64) {
	if err := a.repo.TouchAccount(ctx, accountID, a.now()); err != nil {
		a.log.Debug("touch account failed", zap.Uint64("account_id", accountID), zap.Error(err))
	}
}

// Account returns the stored account behind p. The bootstrap admin has no row
// and is reported as a synthetic account.
func (a *Authority) Account(ctx context.Context, p Principal) (*models.Account, error) {
	if p.AccountID == 0 {
		return &models.Account{Username: p.Username, Email: "admin@system.local", Role: p.Role, Active: true}, nil
	}
	acct, err := a.repo.GetAccountByID(ctx, p.AccountID)
	if err != nil {
		return nil, apperr.Internal("lookup account", err)
	}
	if acct == nil {
		return nil, apperr.NotFound("account", p.AccountID)
	}
	return acct, nil
}

func (a *Authority) SetRole(ctx context.Context, actor Principal, username, role string) (*models.Account, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !models.ValidRole(role) {
		return nil, apperr.Validation("invalid role", map[string]any{"role": role, "allowed": []string{models.RoleSubscriber, models.RolePublisher, models.RoleAdmin}})
	}
	acct, err := a.lookupUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := a.repo.SetAccountRole(ctx, acct.ID, role); err != nil {
		return nil, apperr.Internal("set role", err)
	}
	acct.Role = role
	a.log.Info("account role changed", zap.String("username", acct.Username), zap.String("role", role), zap.String("by", actor.Username))
	return acct, nil
}

func (a *Authority) SetActive(ctx context.Context, actor Principal, username string, active bool) (*models.Account, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	acct, err := a.lookupUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := a.repo.SetAccountActive(ctx, acct.ID, active); err != nil {
		return nil, apperr.Internal("set active", err)
	}
	acct.Active = active
	a.log.Info("account active changed", zap.String("username", acct.Username), zap.Bool("active", active), zap.String("by", actor.Username))
	return acct, nil
}

// CleanupExpiredKeys drops API key hashes whose expiry has passed.
func (a *Authority) CleanupExpiredKeys(ctx context.Context) (int64, error) {
	n, err := a.repo.ClearExpiredAPIKeys(ctx, a.now())
	if err != nil {
		return 0, apperr.Internal("clear expired api keys", err)
	}
	return n, nil
}

func (a *Authority) lookupUsername(ctx context.Context, username string) (*models.Account, error) {
	acct, err := a.repo.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, apperr.Internal("lookup account", err)
	}
	if acct == nil {
		return nil, apperr.NotFound("account", username)
	}
	return acct, nil
}

// mint generates a new API key and, when withClient is set, a client pair.
func (a *Authority) mint(withClient bool) (Issued, string, string, error) {
	apiKey, err := NewAPIKey()
	if err != nil {
		return Issued{}, "", "", apperr.Internal("generate api key", err)
	}
	out := Issued{APIKey: apiKey, APIKeyExpiresAt: a.now().Add(a.opts.APIKeyTTL)}
	if !withClient {
		return out, HashAPIKey(apiKey), "", nil
	}
	out.ClientKey, err = NewClientKey()
	if err != nil {
		return Issued{}, "", "", apperr.Internal("generate client key", err)
	}
	out.ClientSecret, err = NewClientSecret()
	if err != nil {
		return Issued{}, "", "", apperr.Internal("generate client secret", err)
	}
	secretHash, err := HashSecret(out.ClientSecret)
	if err != nil {
		return Issued{}, "", "", apperr.Internal("hash client secret", err)
	}
	return out, HashAPIKey(apiKey), secretHash, nil
}

func validateRegistration(in RegisterInput) error {
	details := map[string]any{}
	if n := len(in.Username); n < 3 || n > 100 || !usernamePattern.MatchString(in.Username) {
		details["username"] = "3-100 characters, letters, digits, '_', '-' or '.'"
	}
	if !emailPattern.MatchString(in.Email) {
		details["email"] = "invalid email address"
	}
	if n := len(in.Password); n < 6 || n > 100 {
		details["password"] = "6-100 characters"
	}
	if len(in.FullName) > 255 {
		details["full_name"] = "at most 255 characters"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid registration", details)
	}
	return nil
}
