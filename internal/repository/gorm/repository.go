package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/db"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

const (
	pgUniqueViolation    = "23505"
	pgLockNotAvailable   = "55P03"
	pgSerializationError = "40001"
	pgDeadlockDetected   = "40P01"
)

type Store struct {
	db               *gorm.DB
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTimeouts bounds lock and statement waits inside the store's transactions.
func (s *Store) WithTimeouts(lockTimeout, statementTimeout time.Duration) *Store {
	if s == nil {
		return nil
	}
	s.lockTimeout = lockTimeout
	s.statementTimeout = statementTimeout
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

// inTx runs fn in a transaction with the configured SET LOCAL timeouts applied.
func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range db.LocalTimeouts(s.lockTimeout, s.statementTimeout) {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrLockNotAvailable) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
		case pgLockNotAvailable, pgSerializationError, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", repository.ErrLockNotAvailable, pgErr.Message)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	return err
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func applyOrder(query *gorm.DB, orderBy string, asc bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func takeOne[T any](query *gorm.DB) (*T, error) {
	var item T
	err := query.Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
