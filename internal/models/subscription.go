package models

import (
	"time"

	"gorm.io/datatypes"
)

const SubscriptionTypePolling = "polling"

// Subscription is a consumer's filtered view over one strategy. Cursor is the
// id of the last scanned ledger record and never decreases.
type Subscription struct {
	ID               uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID          uint64         `gorm:"not null;index" json:"owner_id"`
	StrategyID       string         `gorm:"type:varchar(50);not null;index" json:"strategy_id"`
	Name             string         `gorm:"type:varchar(100);not null" json:"name"`
	Description      string         `gorm:"type:text" json:"description,omitempty"`
	SubscriptionType string         `gorm:"type:varchar(20);not null;default:'polling'" json:"subscription_type"`
	Filters          datatypes.JSON `gorm:"type:jsonb" json:"filters" swaggertype:"object"`
	Cursor           uint64         `gorm:"not null;default:0" json:"cursor"`
	Active           bool           `gorm:"not null;default:true;index" json:"is_active"`

	LastPolledAt *time.Time `gorm:"type:timestamptz" json:"last_polled_at,omitempty"`
	ExpiresAt    *time.Time `gorm:"type:timestamptz;index" json:"expires_at,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Expired reports whether the subscription has passed its expiry at now.
func (s *Subscription) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
