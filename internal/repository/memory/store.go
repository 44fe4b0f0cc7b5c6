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

const defaultLockWait = 3 * time.Second

// Store is an in-process Repository. It serializes ledger appends on one mutex
// and polls per subscription, mirroring the row locks of the Postgres store.
type Store struct {
	mu       sync.RWMutex
	lockWait time.Duration
	now      func() time.Time

	accounts      map[uint64]*models.Account
	nextAccountID uint64

	strategies     map[string]*models.Strategy
	nextStrategyID uint64

	records    []models.DataRecord
	lastDataID uint64

	subs      map[uint64]*models.Subscription
	subLocks  map[uint64]*sync.Mutex
	nextSubID uint64
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		lockWait:   defaultLockWait,
		now:        func() time.Time { return time.Now().UTC() },
		accounts:   map[uint64]*models.Account{},
		strategies: map[string]*models.Strategy{},
		subs:       map[uint64]*models.Subscription{},
		subLocks:   map[uint64]*sync.Mutex{},
	}
}

// WithLockWait bounds how long WithSubscriptionLock waits for a busy subscription.
func (s *Store) WithLockWait(d time.Duration) *Store {
	if d > 0 {
		s.lockWait = d
	}
	return s
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// --- accounts ---------------------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, item *models.Account) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Username, item.Username) || strings.EqualFold(a.Email, item.Email) {
			return repository.ErrDuplicate
		}
		if sameString(a.APIKeyHash, item.APIKeyHash) || sameString(a.ClientKey, item.ClientKey) {
			return repository.ErrDuplicate
		}
	}
	s.nextAccountID++
	now := s.now()
	item.ID = s.nextAccountID
	item.CreatedAt = now
	item.UpdatedAt = now
	cp := *item
	s.accounts[cp.ID] = &cp
	return nil
}

func (s *Store) GetAccountByID(_ context.Context, id uint64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAccount(s.accounts[id]), nil
}

func (s *Store) GetAccountByUsername(_ context.Context, username string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool {
		return strings.EqualFold(a.Username, strings.TrimSpace(username))
	}), nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool {
		return strings.EqualFold(a.Email, strings.TrimSpace(email))
	}), nil
}

func (s *Store) GetAccountByAPIKeyHash(_ context.Context, hash string) (*models.Account, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findAccount(func(a *models.Account) bool {
		return a.APIKeyHash != nil && *a.APIKeyHash == hash
	}), nil
}

func (s *Store) GetAccountByClientKey(_ context.Context, clientKey string) (*models.Account, error) {
	if clientKey == "" {
		return nil, nil
	}
	return s.findAccount(func(a *models.Account) bool {
		return a.ClientKey != nil && *a.ClientKey == clientKey
	}), nil
}

func (s *Store) UpdateAccountCredentials(_ context.Context, id uint64, update repository.AccountCredentialsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	for otherID, other := range s.accounts {
		if otherID == id {
			continue
		}
		if sameString(other.APIKeyHash, update.APIKeyHash) || sameString(other.ClientKey, update.ClientKey) {
			return repository.ErrDuplicate
		}
	}
	if update.APIKeyHash != nil {
		a.APIKeyHash = stringPtr(*update.APIKeyHash)
	}
	if update.APIKeyExpiresAt != nil {
		a.APIKeyExpiresAt = timePtr(*update.APIKeyExpiresAt)
	}
	if update.ClientKey != nil {
		a.ClientKey = stringPtr(*update.ClientKey)
	}
	if update.ClientSecretHash != nil {
		a.ClientSecretHash = stringPtr(*update.ClientSecretHash)
	}
	if update.LastLoginAt != nil {
		a.LastLoginAt = timePtr(*update.LastLoginAt)
	}
	a.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetAccountRole(_ context.Context, id uint64, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.Role = role
		a.UpdatedAt = s.now()
	}
	return nil
}

func (s *Store) SetAccountActive(_ context.Context, id uint64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.Active = active
		a.UpdatedAt = s.now()
	}
	return nil
}

func (s *Store) TouchAccount(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.LastAccessAt = timePtr(at)
	}
	return nil
}

func (s *Store) ClearExpiredAPIKeys(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.accounts {
		if a.APIKeyHash != nil && a.APIKeyExpiresAt != nil && a.APIKeyExpiresAt.Before(before) {
			a.APIKeyHash = nil
			a.APIKeyExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) findAccount(match func(a *models.Account) bool) *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if match(a) {
			return copyAccount(a)
		}
	}
	return nil
}

// --- strategies -------------------------------------------------------------

func (s *Store) CreateStrategy(_ context.Context, item *models.Strategy) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[item.StrategyID]; ok {
		return repository.ErrDuplicate
	}
	s.nextStrategyID++
	now := s.now()
	item.ID = s.nextStrategyID
	item.CreatedAt = now
	item.UpdatedAt = now
	cp := *item
	s.strategies[cp.StrategyID] = &cp
	return nil
}

func (s *Store) GetStrategy(_ context.Context, strategyID string) (*models.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.strategies[strings.TrimSpace(strategyID)]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *Store) ListStrategies(_ context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	items := s.filterStrategies(params)
	return page(items, params.Limit, params.Offset), nil
}

func (s *Store) CountStrategies(_ context.Context, params repository.ListStrategiesParams) (int64, error) {
	return int64(len(s.filterStrategies(params))), nil
}

func (s *Store) UpdateStrategy(_ context.Context, item *models.Strategy) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.strategies[item.StrategyID]
	if !ok || cur.ID != item.ID {
		return nil
	}
	cur.Name = item.Name
	cur.Description = item.Description
	cur.Category = item.Category
	cur.Config = item.Config
	cur.Parameters = item.Parameters
	cur.Active = item.Active
	cur.Priority = item.Priority
	cur.Version = item.Version
	cur.UpdatedAt = s.now()
	item.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *Store) filterStrategies(params repository.ListStrategiesParams) []models.Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Strategy, 0, len(s.strategies))
	for _, item := range s.strategies {
		if params.Category != nil && strings.TrimSpace(*params.Category) != "" && item.Category != strings.TrimSpace(*params.Category) {
			continue
		}
		if params.Type != nil && strings.TrimSpace(*params.Type) != "" && item.Type != strings.TrimSpace(*params.Type) {
			continue
		}
		if params.OwnerID != nil && item.OwnerID != *params.OwnerID {
			continue
		}
		if params.ActiveOnly && !item.Active {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- ledger -----------------------------------------------------------------

func (s *Store) AppendDataRecord(_ context.Context, item *models.DataRecord) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDataID++
	item.ID = s.lastDataID
	item.CreatedAt = s.now()
	s.records = append(s.records, *item)
	return nil
}

func (s *Store) GetDataRecord(_ context.Context, id uint64) (*models.DataRecord, error) {
	if id == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.firstAfter(id - 1)
	if i >= len(s.records) || s.records[i].ID != id {
		return nil, nil
	}
	cp := s.records[i]
	return &cp, nil
}

func (s *Store) ListDataRecords(_ context.Context, params repository.ListDataRecordsParams) ([]models.DataRecord, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DataRecord, 0)
	for i := s.firstAfter(params.AfterID); i < len(s.records) && len(out) < limit; i++ {
		rec := s.records[i]
		if params.StrategyID != "" && rec.StrategyID != params.StrategyID {
			continue
		}
		if params.SinceDate != nil && !params.SinceDate.IsZero() && rec.ExecuteDate.Before(params.SinceDate.Time) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) MaxDataRecordID(_ context.Context, strategyID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].StrategyID == strategyID {
			return s.records[i].ID, nil
		}
	}
	return 0, nil
}

// firstAfter returns the index of the first record with ID > afterID. Callers hold mu.
func (s *Store) firstAfter(afterID uint64) int {
	return sort.Search(len(s.records), func(i int) bool { return s.records[i].ID > afterID })
}

func (s *Store) scan(strategyID string, afterID uint64, limit int) []models.DataRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DataRecord, 0)
	for i := s.firstAfter(afterID); i < len(s.records) && len(out) < limit; i++ {
		if s.records[i].StrategyID == strategyID {
			out = append(out, s.records[i])
		}
	}
	return out
}

// --- helpers ----------------------------------------------------------------

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func copyAccount(a *models.Account) *models.Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func sameString(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func stringPtr(v string) *string {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}
