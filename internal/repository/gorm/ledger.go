package gormrepository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/db"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

// AppendDataRecord takes the ledger sequence row lock, bumps it and inserts the
// record in one transaction, so ids are handed out in commit order.
func (s *Store) AppendDataRecord(ctx context.Context, item *models.DataRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		var seq models.LedgerSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", models.LedgerSequenceData).
			Take(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ledger sequence %q missing; run migrations", models.LedgerSequenceData)
		}
		if err != nil {
			return err
		}
		next := seq.LastID + 1
		if err := tx.Model(&models.LedgerSequence{}).
			Where("name = ?", models.LedgerSequenceData).
			Update("last_id", next).Error; err != nil {
			return err
		}
		item.ID = next
		item.CreatedAt = db.NowUTC()
		return tx.Create(item).Error
	})
}

func (s *Store) GetDataRecord(ctx context.Context, id uint64) (*models.DataRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return takeOne[models.DataRecord](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) ListDataRecords(ctx context.Context, params repository.ListDataRecordsParams) ([]models.DataRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.DataRecord{})
	if params.StrategyID != "" {
		query = query.Where("strategy_id = ?", params.StrategyID)
	}
	if params.AfterID > 0 {
		query = query.Where("id > ?", params.AfterID)
	}
	if params.SinceDate != nil && !params.SinceDate.IsZero() {
		query = query.Where("execute_date >= ?", *params.SinceDate)
	}
	query = applyOrder(query, "", true, "id")
	var items []models.DataRecord
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MaxDataRecordID(ctx context.Context, strategyID string) (uint64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var maxID uint64
	err := s.db.WithContext(ctx).Model(&models.DataRecord{}).
		Where("strategy_id = ?", strategyID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error
	return maxID, err
}

func scanDataRecords(ctx context.Context, tx *gorm.DB, strategyID string, afterID uint64, limit int) ([]models.DataRecord, error) {
	var items []models.DataRecord
	err := tx.WithContext(ctx).
		Where("strategy_id = ? AND id > ?", strategyID, afterID).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
