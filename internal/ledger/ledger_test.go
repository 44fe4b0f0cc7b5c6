package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository/memory"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/strategy"
)

var (
	owner    = auth.Principal{AccountID: 1, Username: "owner", Role: models.RolePublisher, Scheme: auth.SchemeClientKey}
	stranger = auth.Principal{AccountID: 2, Username: "stranger", Role: models.RolePublisher, Scheme: auth.SchemeClientKey}
	reader   = auth.Principal{AccountID: 3, Username: "reader", Role: models.RoleSubscriber, Scheme: auth.SchemeClientKey}
)

func newTestLedger(t *testing.T, opts Options) *Ledger {
	t.Helper()
	store := memory.New()
	strategies := strategy.NewRegistry(store, nil)
	_, err := strategies.Create(context.Background(), owner, strategy.CreateInput{StrategyID: "alpha", Name: "Alpha"})
	require.NoError(t, err)
	inactive := false
	_, err = strategies.Create(context.Background(), owner, strategy.CreateInput{StrategyID: "dormant", Name: "Dormant", Active: &inactive})
	require.NoError(t, err)
	return New(store, strategies, opts, nil)
}

func record(symbol, signal string) AppendInput {
	return AppendInput{
		StrategyID:  "alpha",
		Symbol:      symbol,
		ExecuteDate: "2024-05-01",
		Type:        "signal",
		Payload:     json.RawMessage(`{"signal":"` + signal + `","qty":10}`),
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	l := newTestLedger(t, Options{RestrictToOwner: true})
	in := record("AAPL", "buy")
	in.Metadata = json.RawMessage(`{"model":"v2"}`)

	rec, err := l.Append(context.Background(), owner, in)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.ID)
	require.False(t, rec.CreatedAt.IsZero())
	require.Equal(t, "2024-05-01", rec.ExecuteDate.String())
	require.JSONEq(t, `{"signal":"buy","qty":10}`, string(rec.Payload))
	require.JSONEq(t, `{"model":"v2"}`, string(rec.Metadata))

	got, err := l.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Symbol, got.Symbol)
}

func TestAppendErrors(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{RestrictToOwner: true, MaxPayloadBytes: 64})

	missing := record("AAPL", "buy")
	missing.StrategyID = "ghost"
	_, err := l.Append(ctx, owner, missing)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	dormant := record("AAPL", "buy")
	dormant.StrategyID = "dormant"
	_, err = l.Append(ctx, owner, dormant)
	require.ErrorIs(t, err, apperr.ErrInactive)

	bad := record("", "buy")
	bad.ExecuteDate = "yesterday"
	bad.Type = "9x"
	_, err = l.Append(ctx, owner, bad)
	require.ErrorIs(t, err, apperr.ErrValidation)
	details := apperr.From(err).Details
	require.Contains(t, details, "symbol")
	require.Contains(t, details, "execute_date")
	require.Contains(t, details, "type")

	notObject := record("AAPL", "buy")
	notObject.Payload = json.RawMessage(`"just a string"`)
	_, err = l.Append(ctx, owner, notObject)
	require.ErrorIs(t, err, apperr.ErrValidation)

	big := record("AAPL", "buy")
	big.Payload = json.RawMessage(`{"blob":"` + strings.Repeat("x", 100) + `"}`)
	_, err = l.Append(ctx, owner, big)
	require.ErrorIs(t, err, apperr.ErrPayloadTooLarge)

	_, err = l.Append(ctx, stranger, record("AAPL", "buy"))
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = l.Append(ctx, reader, record("AAPL", "buy"))
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestConcurrentAppendsIncreaseInCommitOrder(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{})
	const n = 64
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := l.Append(ctx, owner, record("AAPL", "buy"))
			return err
		})
	}
	require.NoError(t, g.Wait())

	items, err := l.List(ctx, ListInput{StrategyID: "alpha", Limit: 1000})
	require.NoError(t, err)
	require.Len(t, items, n)
	for i := 1; i < len(items); i++ {
		require.Greater(t, items[i].ID, items[i-1].ID)
		require.False(t, items[i].CreatedAt.Before(items[i-1].CreatedAt))
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{})
	early := record("AAPL", "buy")
	early.ExecuteDate = "2024-01-01"
	_, err := l.Append(ctx, owner, early)
	require.NoError(t, err)
	second, err := l.Append(ctx, owner, record("MSFT", "sell"))
	require.NoError(t, err)

	since, _ := models.ParseDate("2024-03-01")
	items, err := l.List(ctx, ListInput{StrategyID: "alpha", SinceDate: &since})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "MSFT", items[0].Symbol)

	items, err = l.List(ctx, ListInput{StrategyID: "alpha", AfterID: second.ID})
	require.NoError(t, err)
	require.Empty(t, items)

	_, err = l.List(ctx, ListInput{StrategyID: "ghost"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAppendBatch(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{MaxBatchSize: 3})

	bad := record("AAPL", "buy")
	bad.StrategyID = "ghost"
	res, err := l.AppendBatch(ctx, owner, []AppendInput{record("AAPL", "buy"), bad, record("GOOGL", "sell")})
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 1, res.ErrorCount)
	require.Equal(t, 1, res.Errors[0].Index)
	require.Equal(t, "NOT_FOUND", res.Errors[0].Code)
	require.Len(t, res.Items, 2)

	_, err = l.AppendBatch(ctx, owner, make([]AppendInput, 4))
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = l.AppendBatch(ctx, owner, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

type busyLedger struct {
	*memory.Store
}

func (busyLedger) AppendDataRecord(context.Context, *models.DataRecord) error {
	return fmt.Errorf("append: %w", repository.ErrLockNotAvailable)
}

func TestAppendLockContentionIsConflict(t *testing.T) {
	store := memory.New()
	strategies := strategy.NewRegistry(store, nil)
	_, err := strategies.Create(context.Background(), owner, strategy.CreateInput{StrategyID: "alpha", Name: "Alpha"})
	require.NoError(t, err)
	l := New(busyLedger{Store: store}, strategies, Options{}, nil)

	_, err = l.Append(context.Background(), owner, record("AAPL", "buy"))
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.Equal(t, 409, apperr.Status(err))
}

func TestAppendChecksCapabilityBeforeStrategy(t *testing.T) {
	l := newTestLedger(t, Options{RestrictToOwner: true})
	missing := record("AAPL", "buy")
	missing.StrategyID = "ghost"

	_, err := l.Append(context.Background(), reader, missing)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}
