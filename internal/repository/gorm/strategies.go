package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

func (s *Store) CreateStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return mapError(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetStrategy(ctx context.Context, strategyID string) (*models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	strategyID = strings.TrimSpace(strategyID)
	if strategyID == "" {
		return nil, nil
	}
	return takeOne[models.Strategy](s.db.WithContext(ctx).Where("strategy_id = ?", strategyID))
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := strategyQuery(s.db.WithContext(ctx).Model(&models.Strategy{}), params)
	query = applyOrder(query, "", true, "id")
	var items []models.Strategy
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountStrategies(ctx context.Context, params repository.ListStrategiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := strategyQuery(s.db.WithContext(ctx).Model(&models.Strategy{}), params).Count(&total).Error
	return total, err
}

func (s *Store) UpdateStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return mapError(s.db.WithContext(ctx).Model(&models.Strategy{}).
		Where("id = ?", item.ID).
		Select("name", "description", "category", "config", "parameters", "active", "priority", "version", "updated_at").
		Updates(item).Error)
}

func strategyQuery(query *gorm.DB, params repository.ListStrategiesParams) *gorm.DB {
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(*params.Category))
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	return query
}
