package gormrepository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "idx_accounts_username"}, repository.ErrDuplicate},
		{"lock", &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}, repository.ErrLockNotAvailable},
		{"serialization", &pgconn.PgError{Code: "40001"}, repository.ErrLockNotAvailable},
		{"gorm duplicate", gorm.ErrDuplicatedKey, repository.ErrDuplicate},
	}
	for _, tc := range cases {
		got := mapError(tc.in)
		if !errors.Is(got, tc.want) {
			t.Fatalf("%s: got=%v want=%v", tc.name, got, tc.want)
		}
	}
	other := errors.New("boom")
	if got := mapError(other); got != other {
		t.Fatalf("passthrough got=%v", got)
	}
	if mapError(nil) != nil {
		t.Fatalf("nil should map to nil")
	}
}

func TestNormalizeLimit(t *testing.T) {
	if got := normalizeLimit(0, 100); got != 100 {
		t.Fatalf("limit=%d want=100", got)
	}
	if got := normalizeLimit(5000, 100); got != 1000 {
		t.Fatalf("limit=%d want=1000", got)
	}
	if got := normalizeOffset(-3); got != 0 {
		t.Fatalf("offset=%d want=0", got)
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if item, err := s.GetStrategy(context.Background(), "x"); item != nil || err != nil {
		t.Fatalf("item=%v err=%v", item, err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
