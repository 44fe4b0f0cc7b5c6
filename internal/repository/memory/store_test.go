package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	s := New()
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			return s.AppendDataRecord(ctx, &models.DataRecord{StrategyID: "alpha", Symbol: "AAPL"})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("append: %v", err)
	}
	items, err := s.ListDataRecords(ctx, repository.ListDataRecordsParams{StrategyID: "alpha", Limit: 100})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 50 {
		t.Fatalf("len=%d want=50", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].ID <= items[i-1].ID {
			t.Fatalf("ids not increasing at %d: %d <= %d", i, items[i].ID, items[i-1].ID)
		}
	}
	maxID, _ := s.MaxDataRecordID(ctx, "alpha")
	if maxID != 50 {
		t.Fatalf("max=%d want=50", maxID)
	}
	if got, _ := s.MaxDataRecordID(ctx, "beta"); got != 0 {
		t.Fatalf("max beta=%d want=0", got)
	}
}

func TestGetDataRecord(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.AppendDataRecord(ctx, &models.DataRecord{StrategyID: "a"})
	_ = s.AppendDataRecord(ctx, &models.DataRecord{StrategyID: "b"})
	rec, err := s.GetDataRecord(ctx, 2)
	if err != nil || rec == nil || rec.StrategyID != "b" {
		t.Fatalf("rec=%v err=%v", rec, err)
	}
	if rec, _ := s.GetDataRecord(ctx, 0); rec != nil {
		t.Fatalf("id 0 should be missing")
	}
	if rec, _ := s.GetDataRecord(ctx, 9); rec != nil {
		t.Fatalf("id 9 should be missing")
	}
}

func TestAccountUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateAccount(ctx, &models.Account{Username: "Alice", Email: "a@x.io"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.CreateAccount(ctx, &models.Account{Username: "alice", Email: "b@x.io"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err=%v want duplicate", err)
	}
	got, _ := s.GetAccountByUsername(ctx, "ALICE")
	if got == nil || got.Email != "a@x.io" {
		t.Fatalf("lookup got=%v", got)
	}
}

func TestSubscriptionLockStagesCursor(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub := &models.Subscription{StrategyID: "alpha", Active: true}
	_ = s.CreateSubscription(ctx, sub)

	boom := errors.New("boom")
	err := s.WithSubscriptionLock(ctx, sub.ID, func(tx repository.PollTx) error {
		ok, err := tx.AdvanceCursor(ctx, 0, 7, time.Now())
		if err != nil || !ok {
			t.Fatalf("advance ok=%v err=%v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	got, _ := s.GetSubscription(ctx, sub.ID)
	if got.Cursor != 0 {
		t.Fatalf("cursor=%d want=0 after failed tx", got.Cursor)
	}

	err = s.WithSubscriptionLock(ctx, sub.ID, func(tx repository.PollTx) error {
		if ok, _ := tx.AdvanceCursor(ctx, 3, 9, time.Now()); ok {
			t.Fatalf("advance with stale expected should fail")
		}
		_, err := tx.AdvanceCursor(ctx, 0, 7, time.Now())
		return err
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	got, _ = s.GetSubscription(ctx, sub.ID)
	if got.Cursor != 7 || got.LastPolledAt == nil {
		t.Fatalf("cursor=%d polled=%v", got.Cursor, got.LastPolledAt)
	}
}

func TestSubscriptionLockTimesOut(t *testing.T) {
	ctx := context.Background()
	s := New().WithLockWait(20 * time.Millisecond)
	sub := &models.Subscription{StrategyID: "alpha", Active: true}
	_ = s.CreateSubscription(ctx, sub)

	held := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.WithSubscriptionLock(ctx, sub.ID, func(repository.PollTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	err := s.WithSubscriptionLock(ctx, sub.ID, func(repository.PollTx) error { return nil })
	close(release)
	wg.Wait()
	if !errors.Is(err, repository.ErrLockNotAvailable) {
		t.Fatalf("err=%v want lock not available", err)
	}
}

func TestUpdateSubscriptionKeepsCursor(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub := &models.Subscription{StrategyID: "alpha", Name: "a", Active: true}
	_ = s.CreateSubscription(ctx, sub)
	_ = s.WithSubscriptionLock(ctx, sub.ID, func(tx repository.PollTx) error {
		_, err := tx.AdvanceCursor(ctx, 0, 5, time.Now())
		return err
	})
	patch := *sub
	patch.Name = "b"
	patch.Cursor = 0
	if err := s.UpdateSubscription(ctx, &patch); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetSubscription(ctx, sub.ID)
	if got.Name != "b" || got.Cursor != 5 {
		t.Fatalf("name=%s cursor=%d", got.Name, got.Cursor)
	}
}

func TestExpireSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := New()
	past := time.Now().Add(-time.Hour)
	_ = s.CreateSubscription(ctx, &models.Subscription{StrategyID: "a", Active: true, ExpiresAt: &past})
	_ = s.CreateSubscription(ctx, &models.Subscription{StrategyID: "a", Active: true})
	n, err := s.ExpireSubscriptions(ctx, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	total, _ := s.CountSubscriptions(ctx, repository.ListSubscriptionsParams{ActiveOnly: true})
	if total != 1 {
		t.Fatalf("active=%d want=1", total)
	}
}

func TestDeleteSubscriptionReleasesLock(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub := &models.Subscription{StrategyID: "alpha", Active: true}
	_ = s.CreateSubscription(ctx, sub)
	_ = s.WithSubscriptionLock(ctx, sub.ID, func(repository.PollTx) error { return nil })
	if len(s.subLocks) != 1 {
		t.Fatalf("locks=%d want=1", len(s.subLocks))
	}
	if err := s.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.subLocks[sub.ID]; ok {
		t.Fatalf("lock for deleted subscription %d still held", sub.ID)
	}
}
