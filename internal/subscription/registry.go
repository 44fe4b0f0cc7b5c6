package subscription

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/strategy"
)

// Initial cursor policies. There is no default; callers must pick one.
const (
	StartFromNow       = "now"
	StartFromInception = "inception"
)

const (
	DefaultPageSize    = 100
	DefaultMaxPageSize = 1000

	maxNameLen        = 100
	maxDescriptionLen = 1000
)

type Store interface {
	repository.SubscriptionRepository
	MaxDataRecordID(ctx context.Context, strategyID string) (uint64, error)
}

type Options struct {
	PageSize    int
	MaxPageSize int
}

type CreateInput struct {
	Name             string
	Description      string
	StrategyID       string
	SubscriptionType string
	Filter           Filter
	StartFrom        string
	ExpiresAt        *time.Time
}

// Patch never touches the cursor.
type Patch struct {
	Name        *string
	Description *string
	Filter      *Filter
	Active      *bool
	ExpiresAt   *time.Time
}

type Registry struct {
	repo       Store
	strategies *strategy.Registry
	opts       Options
	log        *zap.Logger
	now        func() time.Time
}

func NewRegistry(repo Store, strategies *strategy.Registry, opts Options, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultMaxPageSize
	}
	if opts.PageSize > opts.MaxPageSize {
		opts.PageSize = opts.MaxPageSize
	}
	return &Registry{
		repo:       repo,
		strategies: strategies,
		opts:       opts,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Create(ctx context.Context, p auth.Principal, in CreateInput) (*models.Subscription, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.StrategyID = strings.TrimSpace(in.StrategyID)
	in.SubscriptionType = strings.ToLower(strings.TrimSpace(in.SubscriptionType))
	in.StartFrom = strings.ToLower(strings.TrimSpace(in.StartFrom))
	if in.SubscriptionType == "" {
		in.SubscriptionType = models.SubscriptionTypePolling
	}
	filter := in.Filter.Normalize()

	details := filter.validate()
	if in.Name == "" || len(in.Name) > maxNameLen {
		details["name"] = "required, at most 100 characters"
	}
	if len(in.Description) > maxDescriptionLen {
		details["description"] = "at most 1000 characters"
	}
	if in.StrategyID == "" {
		details["strategy_id"] = "required"
	}
	if in.SubscriptionType != models.SubscriptionTypePolling {
		details["subscription_type"] = "only 'polling' is supported"
	}
	if in.StartFrom != StartFromNow && in.StartFrom != StartFromInception {
		details["start_from"] = "required, one of 'now' or 'inception'"
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(r.now()) {
		details["expires_at"] = "must be in the future"
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid subscription", details)
	}

	st, err := r.strategies.GetActive(ctx, in.StrategyID)
	if err != nil {
		return nil, err
	}

	var cursor uint64
	if in.StartFrom == StartFromNow {
		cursor, err = r.repo.MaxDataRecordID(ctx, st.StrategyID)
		if err != nil {
			return nil, apperr.Internal("resolve start cursor", err)
		}
	}

	item := &models.Subscription{
		OwnerID:          p.AccountID,
		StrategyID:       st.StrategyID,
		Name:             in.Name,
		Description:      in.Description,
		SubscriptionType: in.SubscriptionType,
		Filters:          filter.JSON(),
		Cursor:           cursor,
		Active:           true,
		ExpiresAt:        in.ExpiresAt,
	}
	if err := r.repo.CreateSubscription(ctx, item); err != nil {
		return nil, apperr.Internal("create subscription", err)
	}
	r.log.Info("subscription created",
		zap.Uint64("subscription_id", item.ID),
		zap.Uint64("owner_id", item.OwnerID),
		zap.String("strategy_id", item.StrategyID),
		zap.String("start_from", in.StartFrom),
		zap.Uint64("cursor", cursor),
	)
	return item, nil
}

func (r *Registry) List(ctx context.Context, p auth.Principal, limit, offset int) ([]models.Subscription, int64, error) {
	owner := p.AccountID
	params := repository.ListSubscriptionsParams{OwnerID: &owner, Limit: limit, Offset: offset}
	items, err := r.repo.ListSubscriptions(ctx, params)
	if err != nil {
		return nil, 0, apperr.Internal("list subscriptions", err)
	}
	total, err := r.repo.CountSubscriptions(ctx, params)
	if err != nil {
		return nil, 0, apperr.Internal("count subscriptions", err)
	}
	if items == nil {
		items = []models.Subscription{}
	}
	return items, total, nil
}

func (r *Registry) Get(ctx context.Context, p auth.Principal, id uint64) (*models.Subscription, error) {
	item, err := r.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, apperr.Internal("get subscription", err)
	}
	if item == nil {
		return nil, apperr.NotFound("subscription", id)
	}
	if !ownedBy(item, p) {
		return nil, apperr.Forbidden("not the owner of this subscription")
	}
	return item, nil
}

func (r *Registry) Update(ctx context.Context, p auth.Principal, id uint64, patch Patch) (*models.Subscription, error) {
	item, err := r.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	details := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len(name) > maxNameLen {
			details["name"] = "required, at most 100 characters"
		}
		item.Name = name
	}
	if patch.Description != nil {
		if len(*patch.Description) > maxDescriptionLen {
			details["description"] = "at most 1000 characters"
		}
		item.Description = *patch.Description
	}
	if patch.Filter != nil {
		f := patch.Filter.Normalize()
		for k, v := range f.validate() {
			details[k] = v
		}
		item.Filters = f.JSON()
	}
	if patch.ExpiresAt != nil {
		item.ExpiresAt = patch.ExpiresAt
	}
	if patch.Active != nil {
		if *patch.Active && item.Expired(r.now()) {
			details["is_active"] = "subscription has expired; extend expires_at first"
		}
		item.Active = *patch.Active
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid subscription update", details)
	}
	if err := r.repo.UpdateSubscription(ctx, item); err != nil {
		return nil, apperr.Internal("update subscription", err)
	}
	return item, nil
}

func (r *Registry) Delete(ctx context.Context, p auth.Principal, id uint64) error {
	item, err := r.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if err := r.repo.DeleteSubscription(ctx, item.ID); err != nil {
		return apperr.Internal("delete subscription", err)
	}
	r.log.Info("subscription deleted", zap.Uint64("subscription_id", item.ID), zap.Uint64("owner_id", item.OwnerID))
	return nil
}

// ExpireDue deactivates subscriptions whose expires_at has passed.
func (r *Registry) ExpireDue(ctx context.Context) (int64, error) {
	n, err := r.repo.ExpireSubscriptions(ctx, r.now())
	if err != nil {
		return 0, apperr.Internal("expire subscriptions", err)
	}
	return n, nil
}

func ownedBy(item *models.Subscription, p auth.Principal) bool {
	return p.AccountID != 0 && item.OwnerID == p.AccountID
}
