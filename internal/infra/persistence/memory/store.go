// Package memory implements the authoritative in-memory transactional store
// for lot traceability state. Durable drivers wrap it and snapshot its state
// after every successful transaction.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"lottrace/pkg/domain"
)

type state struct {
	counters map[string]domain.SequenceCounter
	lots     map[string]domain.GeneratedLot
	mappings map[string]domain.LotMapping
}

func newState() state {
	return state{
		counters: make(map[string]domain.SequenceCounter),
		lots:     make(map[string]domain.GeneratedLot),
		mappings: make(map[string]domain.LotMapping),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.counters {
		cloned.counters[k] = v
	}
	for k, v := range s.lots {
		cloned.lots[k] = v
	}
	for k, v := range s.mappings {
		cloned.mappings[k] = cloneMapping(v)
	}
	return cloned
}

func cloneMapping(m domain.LotMapping) domain.LotMapping {
	cp := m
	cp.UsageHistory = append([]domain.UsageEntry(nil), m.UsageHistory...)
	return cp
}

// Store provides an in-memory transactional store for lot traceability.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Transaction applies a mutation set against a cloned state, committed only
// when the transaction function returns nil.
type Transaction struct {
	state state
	now   time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

// IncrementSequence advances the counter for scopeKey, creating it at 1.
func (tx *Transaction) IncrementSequence(scopeKey string) (int64, error) {
	c := tx.state.counters[scopeKey]
	c.ScopeKey = scopeKey
	c.NextValue++
	tx.state.counters[scopeKey] = c
	return c.NextValue, nil
}

// InsertGeneratedLot stores a minted lot record, assigning missing fields.
func (tx *Transaction) InsertGeneratedLot(lot domain.GeneratedLot) (domain.GeneratedLot, error) {
	if lot.ID == "" {
		lot.ID = newID()
	}
	if lot.GeneratedAt.IsZero() {
		lot.GeneratedAt = tx.now
	}
	tx.state.lots[lot.ID] = lot
	return lot, nil
}

// MarkGeneratedLotUsed flips the consumption flag once; marking an already
// used record returns it unchanged.
func (tx *Transaction) MarkGeneratedLotUsed(id string) (domain.GeneratedLot, error) {
	lot, ok := tx.state.lots[id]
	if !ok {
		return domain.GeneratedLot{}, domain.NotFoundError{Entity: domain.EntityGeneratedLot, ID: id}
	}
	if !lot.Used {
		lot.Used = true
		tx.state.lots[id] = lot
	}
	return lot, nil
}

// CreateMapping stores a mapping if absent; the first writer wins and later
// creators receive the stored record.
func (tx *Transaction) CreateMapping(m domain.LotMapping) (domain.LotMapping, error) {
	if existing, ok := tx.state.mappings[m.JobID]; ok {
		return cloneMapping(existing), nil
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = tx.now
	}
	m.LastUpdated = m.CreatedAt
	tx.state.mappings[m.JobID] = cloneMapping(m)
	return m, nil
}

// AppendUsage appends an audit entry to an existing mapping.
func (tx *Transaction) AppendUsage(jobID string, entry domain.UsageEntry) (domain.LotMapping, error) {
	m, ok := tx.state.mappings[jobID]
	if !ok {
		return domain.LotMapping{}, domain.NotFoundError{Entity: domain.EntityLotMapping, ID: jobID}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = tx.now
	}
	m = cloneMapping(m)
	m.UsageHistory = append(m.UsageHistory, entry)
	m.LastUpdated = entry.Timestamp
	tx.state.mappings[jobID] = m
	return cloneMapping(m), nil
}

// FindMapping retrieves a mapping within the transaction snapshot.
func (tx *Transaction) FindMapping(jobID string) (domain.LotMapping, bool) {
	m, ok := tx.state.mappings[jobID]
	if !ok {
		return domain.LotMapping{}, false
	}
	return cloneMapping(m), true
}

// FindGeneratedLot retrieves a generated lot record within the snapshot.
func (tx *Transaction) FindGeneratedLot(id string) (domain.GeneratedLot, bool) {
	lot, ok := tx.state.lots[id]
	return lot, ok
}

// view exposes a read-only snapshot.
type view struct {
	state *state
}

var _ domain.TransactionView = view{}

func (v view) FindMapping(jobID string) (domain.LotMapping, bool) {
	m, ok := v.state.mappings[jobID]
	if !ok {
		return domain.LotMapping{}, false
	}
	return cloneMapping(m), true
}

func (v view) FindGeneratedLot(id string) (domain.GeneratedLot, bool) {
	lot, ok := v.state.lots[id]
	return lot, ok
}

func (v view) ListMappings() []domain.LotMapping {
	out := make([]domain.LotMapping, 0, len(v.state.mappings))
	for _, m := range v.state.mappings {
		out = append(out, cloneMapping(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

func (v view) ListGeneratedLots() []domain.GeneratedLot {
	out := make([]domain.GeneratedLot, 0, len(v.state.lots))
	for _, lot := range v.state.lots {
		out = append(out, lot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotCode < out[j].LotCode })
	return out
}

func (v view) ListSequenceCounters() []domain.SequenceCounter {
	out := make([]domain.SequenceCounter, 0, len(v.state.counters))
	for _, c := range v.state.counters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScopeKey < out[j].ScopeKey })
	return out
}

// RunInTransaction executes fn within a transactional copy of the store
// state, committing only on success.
func (s *Store) RunInTransaction(_ context.Context, fn func(domain.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(view{state: &s.state})
}

// GetMapping retrieves a mapping by job identifier.
func (s *Store) GetMapping(jobID string) (domain.LotMapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindMapping(jobID)
}

// GetGeneratedLot retrieves a generated lot record by id.
func (s *Store) GetGeneratedLot(id string) (domain.GeneratedLot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindGeneratedLot(id)
}

// ListMappings returns all mappings ordered by job identifier.
func (s *Store) ListMappings() []domain.LotMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListMappings()
}

// ListGeneratedLots returns all generated lot records.
func (s *Store) ListGeneratedLots() []domain.GeneratedLot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListGeneratedLots()
}

// ListSequenceCounters returns all counters ordered by scope key.
func (s *Store) ListSequenceCounters() []domain.SequenceCounter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListSequenceCounters()
}
