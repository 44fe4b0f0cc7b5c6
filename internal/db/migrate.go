package db

import (
	"gorm.io/gorm/clause"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
)

// indexDDL holds indexes gorm tags cannot express. Poll scans by
// (strategy_id, id); usernames and emails are unique regardless of case.
var indexDDL = []string{
	"CREATE INDEX IF NOT EXISTS idx_data_records_strategy_scan ON data_records (strategy_id, id)",
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_username_lower ON accounts (LOWER(username))",
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email_lower ON accounts (LOWER(email))",
}

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		&models.Account{},
		&models.Strategy{},
		&models.LedgerSequence{},
		&models.DataRecord{},
		&models.Subscription{},
	); err != nil {
		return err
	}

	for _, stmt := range indexDDL {
		if err := db.Gorm.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return SeedLedgerSequence(db)
}

// SeedLedgerSequence makes sure the sequence row exists and is not behind
// the ledger (e.g. after a restore of data_records alone).
func SeedLedgerSequence(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	seq := models.LedgerSequence{Name: models.LedgerSequenceData}
	if err := db.Gorm.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return err
	}
	return db.Gorm.Exec(
		`UPDATE ledger_sequences SET last_id = GREATEST(last_id, (SELECT COALESCE(MAX(id), 0) FROM data_records)) WHERE name = ?`,
		models.LedgerSequenceData,
	).Error
}
