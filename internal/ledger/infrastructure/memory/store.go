package memory

import (
	"context"
	"sync"
	"time"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	ledger "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/ledger/domain"
)

// Store is an in-memory ledger store.
type Store struct {
	mu   sync.RWMutex
	data map[billing.Provider]map[ledger.Key]time.Time

	// Loads counts Load calls, for cache assertions.
	Loads int
}

// NewStore constructs a store.
func NewStore() *Store {
	return &Store{data: make(map[billing.Provider]map[ledger.Key]time.Time)}
}

// Load returns a copy of the provider table.
func (s *Store) Load(ctx context.Context, provider billing.Provider) (map[ledger.Key]time.Time, error) {
	_ = ctx
	s.mu.Lock()
	s.Loads++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ledger.Key]time.Time, len(s.data[provider]))
	for key, at := range s.data[provider] {
		out[key] = at
	}
	return out, nil
}

// Insert adds an entry unless present.
func (s *Store) Insert(ctx context.Context, entry ledger.Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.tableLocked(entry.Provider)
	if _, ok := table[entry.Key]; ok {
		return nil
	}
	table[entry.Key] = entry.ProcessedAt
	return nil
}

// Touch overwrites the entry timestamp.
func (s *Store) Touch(ctx context.Context, entry ledger.Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tableLocked(entry.Provider)[entry.Key] = entry.ProcessedAt
	return nil
}

// Get returns a stored timestamp.
func (s *Store) Get(provider billing.Provider, key ledger.Key) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.data[provider][key]
	return at, ok
}

func (s *Store) tableLocked(provider billing.Provider) map[ledger.Key]time.Time {
	table, ok := s.data[provider]
	if !ok {
		table = make(map[ledger.Key]time.Time)
		s.data[provider] = table
	}
	return table
}
