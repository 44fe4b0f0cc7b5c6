package models

import (
	"time"

	"gorm.io/datatypes"
)

// DataRecord is one immutable ledger entry. ID is assigned from the ledger
// sequence inside the inserting transaction, so ID order is commit order.
type DataRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	StrategyID  string `gorm:"type:varchar(50);not null;index:idx_data_strategy_id,priority:1" json:"strategy_id"`
	AccountID   uint64 `gorm:"not null;index" json:"account_id"`
	Symbol      string `gorm:"type:varchar(50);not null;index" json:"symbol"`
	ExecuteDate Date   `gorm:"not null;index" json:"execute_date"`
	Type        string `gorm:"type:varchar(50);not null" json:"type"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Source      string `gorm:"type:varchar(100)" json:"source,omitempty"`

	Payload  datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty" swaggertype:"object"`
	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty" swaggertype:"object"`

	CreatedAt time.Time `gorm:"type:timestamptz;not null;index" json:"created_at"`
}

func (DataRecord) TableName() string {
	return "data_records"
}

const LedgerSequenceData = "data"

// LedgerSequence holds the last id handed out for a ledger.
type LedgerSequence struct {
	Name   string `gorm:"type:varchar(30);primaryKey"`
	LastID uint64 `gorm:"not null;default:0"`
}

func (LedgerSequence) TableName() string {
	return "ledger_sequences"
}
