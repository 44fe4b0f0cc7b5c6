package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

func (s *Store) CreateAccount(ctx context.Context, item *models.Account) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return mapError(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetAccountByID(ctx context.Context, id uint64) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return takeOne[models.Account](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return takeOne[models.Account](s.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))))
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return takeOne[models.Account](s.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) GetAccountByAPIKeyHash(ctx context.Context, hash string) (*models.Account, error) {
	if s == nil || s.db == nil || hash == "" {
		return nil, nil
	}
	return takeOne[models.Account](s.db.WithContext(ctx).Where("api_key_hash = ?", hash))
}

func (s *Store) GetAccountByClientKey(ctx context.Context, clientKey string) (*models.Account, error) {
	if s == nil || s.db == nil || clientKey == "" {
		return nil, nil
	}
	return takeOne[models.Account](s.db.WithContext(ctx).Where("client_key = ?", clientKey))
}

func (s *Store) UpdateAccountCredentials(ctx context.Context, id uint64, update repository.AccountCredentialsUpdate) error {
	if s == nil || s.db == nil {
		return nil
	}
	values := map[string]any{}
	if update.APIKeyHash != nil {
		values["api_key_hash"] = *update.APIKeyHash
	}
	if update.APIKeyExpiresAt != nil {
		values["api_key_expires_at"] = *update.APIKeyExpiresAt
	}
	if update.ClientKey != nil {
		values["client_key"] = *update.ClientKey
	}
	if update.ClientSecretHash != nil {
		values["client_secret_hash"] = *update.ClientSecretHash
	}
	if update.LastLoginAt != nil {
		values["last_login_at"] = *update.LastLoginAt
	}
	if len(values) == 0 {
		return nil
	}
	return mapError(s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(values).Error)
}

func (s *Store) SetAccountRole(ctx context.Context, id uint64, role string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("role", role).Error
}

func (s *Store) SetAccountActive(ctx context.Context, id uint64, active bool) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("active", active).Error
}

func (s *Store) TouchAccount(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("last_access_at", at).Error
}

func (s *Store) ClearExpiredAPIKeys(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("api_key_hash IS NOT NULL").
		Where("api_key_expires_at IS NOT NULL AND api_key_expires_at < ?", before).
		Updates(map[string]any{"api_key_hash": nil, "api_key_expires_at": nil})
	return res.RowsAffected, res.Error
}
