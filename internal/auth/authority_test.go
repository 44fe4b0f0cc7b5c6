package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository/memory"
)

func newTestAuthority(opts Options) (*Authority, *memory.Store) {
	store := memory.New()
	opts.BcryptCost = bcrypt.MinCost
	return NewAuthority(store, opts, nil), store
}

func register(t *testing.T, a *Authority, username string) Issued {
	t.Helper()
	issued, err := a.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "s3cret-pw",
	})
	require.NoError(t, err)
	return issued
}

func TestRegisterIssuesBothCredentials(t *testing.T) {
	a, _ := newTestAuthority(Options{})
	issued := register(t, a, "alice")

	require.True(t, strings.HasPrefix(issued.APIKey, "sk_"))
	require.Len(t, issued.APIKey, 3+64)
	require.True(t, strings.HasPrefix(issued.ClientKey, "ck_"))
	require.Len(t, issued.ClientKey, 3+32)
	require.True(t, strings.HasPrefix(issued.ClientSecret, "cs_"))
	require.Len(t, issued.ClientSecret, 3+64)
	require.Equal(t, models.RoleSubscriber, issued.Account.Role)
	require.NotEqual(t, issued.ClientSecret, *issued.Account.ClientSecretHash)
}

func TestRegisterPublisherSignup(t *testing.T) {
	a, _ := newTestAuthority(Options{PublisherSignup: true})
	require.Equal(t, models.RolePublisher, register(t, a, "pub").Account.Role)
}

func TestRegisterDuplicateAndValidation(t *testing.T) {
	a, _ := newTestAuthority(Options{})
	register(t, a, "alice")

	_, err := a.Register(context.Background(), RegisterInput{Username: "ALICE", Email: "other@example.com", Password: "s3cret-pw"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = a.Register(context.Background(), RegisterInput{Username: "bob", Email: "not-an-email", Password: "x"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	details := apperr.From(err).Details
	require.Contains(t, details, "email")
	require.Contains(t, details, "password")
}

func TestVerifyBothSchemes(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(Options{})
	issued := register(t, a, "alice")

	p, err := a.Verify(ctx, Headers{APIKey: issued.APIKey})
	require.NoError(t, err)
	require.Equal(t, SchemeAPIKey, p.Scheme)
	require.Equal(t, issued.Account.ID, p.AccountID)

	p, err = a.Verify(ctx, Headers{ClientKey: issued.ClientKey, ClientSecret: issued.ClientSecret})
	require.NoError(t, err)
	require.Equal(t, SchemeClientKey, p.Scheme)

	p, err = a.Verify(ctx, Headers{APIKey: "sk_stale", ClientKey: issued.ClientKey, ClientSecret: issued.ClientSecret})
	require.NoError(t, err)
	require.Equal(t, SchemeClientKey, p.Scheme)

	p, err = a.Verify(ctx, Headers{APIKey: issued.APIKey, ClientKey: issued.ClientKey, ClientSecret: "cs_wrong"})
	require.NoError(t, err)
	require.Equal(t, SchemeAPIKey, p.Scheme)

	_, err = a.Verify(ctx, Headers{ClientKey: issued.ClientKey, ClientSecret: "cs_wrong"})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = a.Verify(ctx, Headers{ClientKey: issued.ClientKey})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = a.Verify(ctx, Headers{})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = a.Verify(ctx, Headers{APIKey: "sk_nope"})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestVerifyDisabledAccountIsForbidden(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAuthority(Options{})
	issued := register(t, a, "alice")
	require.NoError(t, store.SetAccountActive(ctx, issued.Account.ID, false))

	_, err := a.Verify(ctx, Headers{APIKey: issued.APIKey})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = a.Verify(ctx, Headers{ClientKey: issued.ClientKey, ClientSecret: issued.ClientSecret})
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestVerifyExpiredAPIKey(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(Options{APIKeyTTL: time.Hour})
	issued := register(t, a, "alice")
	a.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err := a.Verify(ctx, Headers{APIKey: issued.APIKey})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	require.Contains(t, err.Error(), "expired")
}

func TestBootstrapAdminKey(t *testing.T) {
	a, _ := newTestAuthority(Options{AdminAPIKey: "boot-admin"})
	p, err := a.Verify(context.Background(), Headers{APIKey: "boot-admin"})
	require.NoError(t, err)
	require.True(t, p.IsAdmin())
	require.Equal(t, uint64(0), p.AccountID)
}

func TestIssueSessionRotatesAPIKeyOnly(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(Options{})
	first := register(t, a, "alice")

	session, err := a.IssueSession(ctx, "alice", "s3cret-pw")
	require.NoError(t, err)
	require.NotEqual(t, first.APIKey, session.APIKey)
	require.Equal(t, first.ClientKey, session.ClientKey)
	require.Empty(t, session.ClientSecret)

	_, err = a.Verify(ctx, Headers{APIKey: first.APIKey})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = a.Verify(ctx, Headers{APIKey: session.APIKey})
	require.NoError(t, err)

	_, err = a.IssueSession(ctx, "alice", "wrong")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = a.IssueSession(ctx, "nobody", "wrong")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestIssueClientCredentialsInvalidatesOldSecret(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(Options{})
	issued := register(t, a, "alice")

	key, secret, err := a.IssueClientCredentials(ctx, issued.Account.ID)
	require.NoError(t, err)

	_, err = a.Verify(ctx, Headers{ClientKey: issued.ClientKey, ClientSecret: issued.ClientSecret})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	p, err := a.Verify(ctx, Headers{ClientKey: key, ClientSecret: secret})
	require.NoError(t, err)
	require.Equal(t, issued.Account.ID, p.AccountID)

	_, _, err = a.IssueClientCredentials(ctx, 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetRoleRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(Options{})
	issued := register(t, a, "alice")
	user := Principal{AccountID: issued.Account.ID, Role: models.RoleSubscriber}

	_, err := a.SetRole(ctx, user, "alice", models.RolePublisher)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	admin := Principal{Username: "admin", Role: models.RoleAdmin}
	acct, err := a.SetRole(ctx, admin, "alice", "Publisher")
	require.NoError(t, err)
	require.Equal(t, models.RolePublisher, acct.Role)

	_, err = a.SetRole(ctx, admin, "alice", "root")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = a.SetRole(ctx, admin, "ghost", models.RoleAdmin)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCleanupExpiredKeys(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(Options{APIKeyTTL: time.Minute})
	issued := register(t, a, "alice")
	a.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	n, err := a.CleanupExpiredKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	_, err = a.Verify(ctx, Headers{APIKey: issued.APIKey})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}
