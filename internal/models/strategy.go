package models

import (
	"time"

	"gorm.io/datatypes"
)

// Strategy is a named stream owned by a publisher. Strategies are deactivated, never deleted.
type Strategy struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	StrategyID  string `gorm:"type:varchar(50);uniqueIndex;not null" json:"strategy_id"`
	OwnerID     uint64 `gorm:"not null;index" json:"owner_id"`
	Name        string `gorm:"type:varchar(200);not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Type        string `gorm:"type:varchar(50);not null;index" json:"type"`
	Category    string `gorm:"type:varchar(50);index" json:"category,omitempty"`

	Config     datatypes.JSON `gorm:"type:jsonb" json:"config,omitempty" swaggertype:"object"`
	Parameters datatypes.JSON `gorm:"type:jsonb" json:"parameters,omitempty" swaggertype:"object"`

	Active   bool   `gorm:"not null;default:true;index" json:"is_active"`
	Priority int    `gorm:"default:0" json:"priority"`
	Version  string `gorm:"type:varchar(20);not null;default:'1.0.0'" json:"version"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Strategy) TableName() string {
	return "strategies"
}
