package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

func (s *Store) CreateSubscription(_ context.Context, item *models.Subscription) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	now := s.now()
	item.ID = s.nextSubID
	item.CreatedAt = now
	item.UpdatedAt = now
	cp := *item
	s.subs[cp.ID] = &cp
	return nil
}

func (s *Store) GetSubscription(_ context.Context, id uint64) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySubscription(s.subs[id]), nil
}

func (s *Store) ListSubscriptions(_ context.Context, params repository.ListSubscriptionsParams) ([]models.Subscription, error) {
	return page(s.filterSubscriptions(params), params.Limit, params.Offset), nil
}

func (s *Store) CountSubscriptions(_ context.Context, params repository.ListSubscriptionsParams) (int64, error) {
	return int64(len(s.filterSubscriptions(params))), nil
}

func (s *Store) UpdateSubscription(_ context.Context, item *models.Subscription) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subs[item.ID]
	if !ok {
		return nil
	}
	cur.Name = item.Name
	cur.Description = item.Description
	cur.Filters = item.Filters
	cur.Active = item.Active
	cur.ExpiresAt = item.ExpiresAt
	cur.UpdatedAt = s.now()
	item.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	delete(s.subLocks, id)
	return nil
}

func (s *Store) ExpireSubscriptions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sub := range s.subs {
		if sub.Active && sub.Expired(now) {
			sub.Active = false
			sub.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

func (s *Store) filterSubscriptions(params repository.ListSubscriptionsParams) []models.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if params.OwnerID != nil && sub.OwnerID != *params.OwnerID {
			continue
		}
		if params.StrategyID != nil && strings.TrimSpace(*params.StrategyID) != "" && sub.StrategyID != strings.TrimSpace(*params.StrategyID) {
			continue
		}
		if params.ActiveOnly && !sub.Active {
			continue
		}
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// WithSubscriptionLock serializes polls of one subscription. A busy lock is
// retried until lockWait elapses, then ErrLockNotAvailable is returned.
func (s *Store) WithSubscriptionLock(ctx context.Context, id uint64, fn func(tx repository.PollTx) error) error {
	lock := s.subscriptionLock(id)
	if err := s.acquire(ctx, lock); err != nil {
		return err
	}
	defer lock.Unlock()

	s.mu.RLock()
	snapshot := copySubscription(s.subs[id])
	s.mu.RUnlock()

	tx := &pollTx{store: s, sub: snapshot}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.staged {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subs[id]
	if !ok {
		return nil
	}
	cur.Cursor = tx.sub.Cursor
	cur.LastPolledAt = tx.sub.LastPolledAt
	return nil
}

func (s *Store) subscriptionLock(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.subLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.subLocks[id] = lock
	}
	return lock
}

func (s *Store) acquire(ctx context.Context, lock *sync.Mutex) error {
	if lock.TryLock() {
		return nil
	}
	deadline := time.NewTimer(s.lockWait)
	defer deadline.Stop()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return repository.ErrLockNotAvailable
		case <-tick.C:
			if lock.TryLock() {
				return nil
			}
		}
	}
}

type pollTx struct {
	store  *Store
	sub    *models.Subscription
	staged bool
}

func (p *pollTx) Subscription() *models.Subscription {
	return p.sub
}

func (p *pollTx) ScanDataRecords(_ context.Context, strategyID string, afterID uint64, limit int) ([]models.DataRecord, error) {
	if limit <= 0 {
		return []models.DataRecord{}, nil
	}
	return p.store.scan(strategyID, afterID, limit), nil
}

func (p *pollTx) AdvanceCursor(_ context.Context, expected, next uint64, polledAt time.Time) (bool, error) {
	if p.sub == nil || p.sub.Cursor != expected {
		return false, nil
	}
	p.sub.Cursor = next
	p.sub.LastPolledAt = timePtr(polledAt)
	p.staged = true
	return true, nil
}

func copySubscription(sub *models.Subscription) *models.Subscription {
	if sub == nil {
		return nil
	}
	cp := *sub
	return &cp
}
