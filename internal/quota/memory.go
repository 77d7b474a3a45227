package quota

import (
	"context"
	"sync"

	"github.com/golang-sql/civil"
)

type dailyKey struct {
	user string
	date civil.Date
}

// MemoryStore is an in-process Store used for local development and tests.
// It honours the same idempotence rules as PostgresStore.
type MemoryStore struct {
	mu        sync.RWMutex
	config    *GasStationConfig
	daily     map[dailyKey]UserDailyQuota
	whitelist map[string]WhitelistEntry
	blocked   map[string]BlockedEntry
	records   map[string]SponsorshipRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		daily:     make(map[dailyKey]UserDailyQuota),
		whitelist: make(map[string]WhitelistEntry),
		blocked:   make(map[string]BlockedEntry),
		records:   make(map[string]SponsorshipRecord),
	}
}

// SetConfig replaces the gas station configuration.
func (s *MemoryStore) SetConfig(cfg GasStationConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = &cfg
}

func (s *MemoryStore) SetWhitelistEntry(entry WhitelistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[entry.UserAddress] = entry
}

func (s *MemoryStore) SetBlockedEntry(entry BlockedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[entry.UserAddress] = entry
}

// SetDailyQuota seeds a ledger row, typically to set overrides or prior usage.
func (s *MemoryStore) SetDailyQuota(q UserDailyQuota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[dailyKey{q.UserAddress, q.Date}] = q
}

func (s *MemoryStore) GetConfig(ctx context.Context) (GasStationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return GasStationConfig{}, ErrConfigNotFound
	}
	return *s.config, nil
}

func (s *MemoryStore) GetDailyQuota(ctx context.Context, userAddress string, date civil.Date) (UserDailyQuota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.daily[dailyKey{userAddress, date}]
	if !ok {
		return UserDailyQuota{UserAddress: userAddress, Date: date}, nil
	}
	return q, nil
}

func (s *MemoryStore) GetWhitelistEntry(ctx context.Context, userAddress string) (*WhitelistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.whitelist[userAddress]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) GetBlockedEntry(ctx context.Context, userAddress string) (*BlockedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.blocked[userAddress]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) RecordUsage(ctx context.Context, record SponsorshipRecord) (UsageResult, error) {
	if err := record.Validate(); err != nil {
		return UsageResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.records[record.TxHash]; exists {
		key := dailyKey{existing.UserAddress, UsageDate(existing.ConfirmedAt)}
		return UsageResult{Duplicate: true, Quota: s.daily[key]}, nil
	}
	s.records[record.TxHash] = record

	key := dailyKey{record.UserAddress, UsageDate(record.ConfirmedAt)}
	q, ok := s.daily[key]
	if !ok {
		q = UserDailyQuota{UserAddress: key.user, Date: key.date}
	}
	q.GasUsed += record.TotalFee
	q.TransactionCount++
	s.daily[key] = q

	return UsageResult{Quota: q}, nil
}

// Record returns a stored sponsorship record by hash.
func (s *MemoryStore) Record(txHash string) (SponsorshipRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[txHash]
	return r, ok
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
