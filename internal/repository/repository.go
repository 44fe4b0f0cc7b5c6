package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
)

var (
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrLockNotAvailable is returned when a row lock could not be taken within the lock budget.
	ErrLockNotAvailable = errors.New("repository: lock not available")
)

// Lookups return (nil, nil) when the row does not exist.
type AccountRepository interface {
	CreateAccount(ctx context.Context, item *models.Account) error
	GetAccountByID(ctx context.Context, id uint64) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByAPIKeyHash(ctx context.Context, hash string) (*models.Account, error)
	GetAccountByClientKey(ctx context.Context, clientKey string) (*models.Account, error)
	UpdateAccountCredentials(ctx context.Context, id uint64, update AccountCredentialsUpdate) error
	SetAccountRole(ctx context.Context, id uint64, role string) error
	SetAccountActive(ctx context.Context, id uint64, active bool) error
	TouchAccount(ctx context.Context, id uint64, at time.Time) error
	ClearExpiredAPIKeys(ctx context.Context, before time.Time) (int64, error)
}

type StrategyRepository interface {
	CreateStrategy(ctx context.Context, item *models.Strategy) error
	GetStrategy(ctx context.Context, strategyID string) (*models.Strategy, error)
	ListStrategies(ctx context.Context, params ListStrategiesParams) ([]models.Strategy, error)
	CountStrategies(ctx context.Context, params ListStrategiesParams) (int64, error)
	UpdateStrategy(ctx context.Context, item *models.Strategy) error
}

type LedgerRepository interface {
	// AppendDataRecord assigns ID and CreatedAt in the inserting transaction.
	AppendDataRecord(ctx context.Context, item *models.DataRecord) error
	GetDataRecord(ctx context.Context, id uint64) (*models.DataRecord, error)
	// ListDataRecords returns records in ascending id order.
	ListDataRecords(ctx context.Context, params ListDataRecordsParams) ([]models.DataRecord, error)
	// MaxDataRecordID is 0 for a strategy with no records.
	MaxDataRecordID(ctx context.Context, strategyID string) (uint64, error)
}

type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, item *models.Subscription) error
	GetSubscription(ctx context.Context, id uint64) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, params ListSubscriptionsParams) ([]models.Subscription, error)
	CountSubscriptions(ctx context.Context, params ListSubscriptionsParams) (int64, error)
	// UpdateSubscription writes descriptive fields only; cursor and last_polled_at are left alone.
	UpdateSubscription(ctx context.Context, item *models.Subscription) error
	DeleteSubscription(ctx context.Context, id uint64) error
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)

	// WithSubscriptionLock runs fn while holding the subscription's row lock.
	// Cursor writes staged through tx are committed only if fn returns nil.
	WithSubscriptionLock(ctx context.Context, id uint64, fn func(tx PollTx) error) error
}

// PollTx is the view of one locked subscription.
type PollTx interface {
	// Subscription is nil when the row does not exist.
	Subscription() *models.Subscription
	ScanDataRecords(ctx context.Context, strategyID string, afterID uint64, limit int) ([]models.DataRecord, error)
	// AdvanceCursor moves the cursor from expected to next and stamps last_polled_at.
	// It reports false when the stored cursor no longer equals expected.
	AdvanceCursor(ctx context.Context, expected, next uint64, polledAt time.Time) (bool, error)
}

type Repository interface {
	AccountRepository
	StrategyRepository
	LedgerRepository
	SubscriptionRepository

	Ping(ctx context.Context) error
}

type AccountCredentialsUpdate struct {
	APIKeyHash       *string
	APIKeyExpiresAt  *time.Time
	ClientKey        *string
	ClientSecretHash *string
	LastLoginAt      *time.Time
}

type ListStrategiesParams struct {
	Limit      int
	Offset     int
	Category   *string
	Type       *string
	OwnerID    *uint64
	ActiveOnly bool
}

type ListDataRecordsParams struct {
	StrategyID string
	AfterID    uint64
	SinceDate  *models.Date
	Limit      int
}

type ListSubscriptionsParams struct {
	Limit      int
	Offset     int
	OwnerID    *uint64
	StrategyID *string
	ActiveOnly bool
}
