package models

import "time"

const (
	RoleSubscriber = "subscriber"
	RolePublisher  = "publisher"
	RoleAdmin      = "admin"
)

// Account is a human or machine identity. Secrets are stored only as hashes.
type Account struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Username       string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email          string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName       string `gorm:"type:varchar(255)" json:"full_name,omitempty"`
	HashedPassword string `gorm:"type:varchar(255);not null" json:"-"`
	Role           string `gorm:"type:varchar(20);not null;default:'subscriber';index" json:"role"`
	Active         bool   `gorm:"not null;default:true" json:"is_active"`

	APIKeyHash       *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	APIKeyExpiresAt  *time.Time `gorm:"type:timestamptz" json:"api_key_expires_at,omitempty"`
	ClientKey        *string    `gorm:"type:varchar(64);uniqueIndex" json:"client_key,omitempty"`
	ClientSecretHash *string    `gorm:"type:varchar(200)" json:"-"`

	LastLoginAt  *time.Time `gorm:"type:timestamptz" json:"last_login_at,omitempty"`
	LastAccessAt *time.Time `gorm:"type:timestamptz" json:"last_access_at,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func ValidRole(role string) bool {
	switch role {
	case RoleSubscriber, RolePublisher, RoleAdmin:
		return true
	}
	return false
}
