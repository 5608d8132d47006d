package domain

import "context"

// Transaction exposes the mutations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	// IncrementSequence advances the counter for scopeKey and returns the
	// issued value. The first call for an unseen scopeKey returns 1.
	IncrementSequence(scopeKey string) (int64, error)
	// InsertGeneratedLot stores a freshly minted lot record. An empty ID is
	// assigned by the store.
	InsertGeneratedLot(GeneratedLot) (GeneratedLot, error)
	// MarkGeneratedLotUsed flips the consumption flag. Marking an already
	// used record is a no-op returning the stored record.
	MarkGeneratedLotUsed(id string) (GeneratedLot, error)
	// CreateMapping stores a mapping if none exists for its JobID. When a
	// mapping already exists the stored record is returned unchanged, so
	// concurrent creators converge on the first writer's value.
	CreateMapping(LotMapping) (LotMapping, error)
	// AppendUsage appends an audit entry to an existing mapping.
	AppendUsage(jobID string, entry UsageEntry) (LotMapping, error)
	FindMapping(jobID string) (LotMapping, bool)
	FindGeneratedLot(id string) (GeneratedLot, bool)
}

// TransactionView provides read-only access to a consistent snapshot.
type TransactionView interface {
	FindMapping(jobID string) (LotMapping, bool)
	FindGeneratedLot(id string) (GeneratedLot, bool)
	ListMappings() []LotMapping
	ListGeneratedLots() []GeneratedLot
	ListSequenceCounters() []SequenceCounter
}

// PersistentStore is the minimal abstraction over durable backends consumed
// by the lot services.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
	GetMapping(jobID string) (LotMapping, bool)
	GetGeneratedLot(id string) (GeneratedLot, bool)
	ListMappings() []LotMapping
	ListGeneratedLots() []GeneratedLot
	ListSequenceCounters() []SequenceCounter
}
