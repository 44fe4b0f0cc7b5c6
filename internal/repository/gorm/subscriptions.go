package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

func (s *Store) CreateSubscription(ctx context.Context, item *models.Subscription) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return mapError(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetSubscription(ctx context.Context, id uint64) (*models.Subscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return takeOne[models.Subscription](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) ListSubscriptions(ctx context.Context, params repository.ListSubscriptionsParams) ([]models.Subscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := subscriptionQuery(s.db.WithContext(ctx).Model(&models.Subscription{}), params)
	query = applyOrder(query, "", false, "id")
	var items []models.Subscription
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSubscriptions(ctx context.Context, params repository.ListSubscriptionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := subscriptionQuery(s.db.WithContext(ctx).Model(&models.Subscription{}), params).Count(&total).Error
	return total, err
}

func (s *Store) UpdateSubscription(ctx context.Context, item *models.Subscription) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", item.ID).
		Select("name", "description", "filters", "active", "expires_at", "updated_at").
		Updates(item).Error
}

func (s *Store) DeleteSubscription(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Subscription{}).Error
}

func (s *Store) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("active = ?", true).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (s *Store) WithSubscriptionLock(ctx context.Context, id uint64, fn func(tx repository.PollTx) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		var sub models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fn(&pollTx{tx: tx})
		}
		if err != nil {
			return err
		}
		return fn(&pollTx{tx: tx, sub: &sub})
	})
}

type pollTx struct {
	tx  *gorm.DB
	sub *models.Subscription
}

func (p *pollTx) Subscription() *models.Subscription {
	return p.sub
}

func (p *pollTx) ScanDataRecords(ctx context.Context, strategyID string, afterID uint64, limit int) ([]models.DataRecord, error) {
	return scanDataRecords(ctx, p.tx, strategyID, afterID, limit)
}

func (p *pollTx) AdvanceCursor(ctx context.Context, expected, next uint64, polledAt time.Time) (bool, error) {
	if p.sub == nil {
		return false, nil
	}
	res := p.tx.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND cursor = ?", p.sub.ID, expected).
		UpdateColumns(map[string]any{"cursor": next, "last_polled_at": polledAt})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	p.sub.Cursor = next
	p.sub.LastPolledAt = &polledAt
	return true, nil
}

func subscriptionQuery(query *gorm.DB, params repository.ListSubscriptionsParams) *gorm.DB {
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.StrategyID != nil && strings.TrimSpace(*params.StrategyID) != "" {
		query = query.Where("strategy_id = ?", strings.TrimSpace(*params.StrategyID))
	}
	if params.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	return query
}
