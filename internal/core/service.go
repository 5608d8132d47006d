// Package core implements the canonical lot mapping service: the single
// component allowed to create a job's lot number and the guarantee that every
// later caller observes the identical value.
package core

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"lottrace/internal/jobid"
	"lottrace/internal/lotseq"
	"lottrace/pkg/domain"
)

// Source describes where a resolved lot number came from.
type Source string

const (
	// SourceExisting is the dominant read path: the stored mapping value.
	SourceExisting Source = "existing"
	// SourceDerived marks the deterministic formula over the sequence
	// embedded in the job identifier.
	SourceDerived Source = "derived"
	// SourceMinted marks a freshly generated code for jobs without an
	// embedded sequence.
	SourceMinted Source = "minted"
	// SourceSynthesized marks the last-resort local value produced while
	// the mapping store is unreachable and nothing can be derived.
	SourceSynthesized Source = "synthesized"
)

// Resolution is the outcome of resolving a job's canonical lot number. The
// degraded path is explicit rather than hidden behind a bare string:
// Persisted=false means the value was computed locally and no mapping record
// was written.
type Resolution struct {
	JobID     string `json:"job_id"`
	LotNumber string `json:"lot_number"`
	Source    Source `json:"source"`
	Degraded  bool   `json:"degraded"`
	Persisted bool   `json:"persisted"`
}

// Service exposes the lot identity operations consumed by workflow surfaces.
type Service struct {
	store     domain.PersistentStore
	generator *lotseq.Generator
	creating  *keyedMutex
	nowFn     func() time.Time
	logger    domain.Logger
	metrics   domain.MetricsRecorder
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger injects a structured logger.
func WithLogger(l domain.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m domain.MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Service) { s.nowFn = fn }
}

// NewService constructs a service backed by the supplied store and generator.
func NewService(store domain.PersistentStore, generator *lotseq.Generator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		generator: generator,
		creating:  newKeyedMutex(),
		nowFn:     func() time.Time { return time.Now().UTC() },
		logger:    domain.NopLogger{},
		metrics:   domain.NopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Generator returns the underlying sequence generator.
func (s *Service) Generator() *lotseq.Generator { return s.generator }

// Resolve returns the canonical lot number for jobID. The first call creates
// the mapping; every call, including the first, appends one usage entry.
// Persistence failures never propagate: the caller always receives a lot
// string, possibly marked degraded.
func (s *Service) Resolve(ctx context.Context, jobID string, hints domain.Hints, consumer domain.Component) (Resolution, error) {
	start := s.nowFn()
	res, err := s.resolve(ctx, jobID, hints, consumer)
	s.metrics.Observe(ctx, "resolve", err == nil, time.Since(start))
	return res, err
}

func (s *Service) resolve(ctx context.Context, jobID string, hints domain.Hints, consumer domain.Component) (Resolution, error) {
	if jobID == "" {
		return Resolution{}, fmt.Errorf("job id required")
	}

	comps, decoded := jobid.Decode(jobID)
	if hints.OrderID == "" && decoded {
		hints.OrderID = comps.OrderID
	}

	// Creation must be serialized per job so the mint path cannot attach two
	// different codes to one job. Readers pay one uncontended lock.
	unlock := s.creating.Lock(jobID)
	defer unlock()

	if res, done := s.tryExisting(ctx, jobID, consumer); done {
		return res, nil
	} else if res.Degraded {
		// Store unreachable: derive locally without touching it again.
		return s.degraded(ctx, jobID, hints, comps, decoded), nil
	}

	// Creation path.
	var (
		lotNumber string
		source    Source
		degraded  bool
	)
	if decoded && comps.HasLot() {
		// Aligned with the sequence already embedded in the identifier; no
		// counter is consumed and a lost mapping re-derives identically.
		lotNumber = DeterministicLot(hints.PartNumber, hints.OrderID, *comps.LotSequence)
		source = SourceDerived
	} else {
		minted, err := s.generator.Mint(ctx, lotseq.MintRequest{
			JobID:    jobID,
			TaskName: "job_lot",
		})
		if err != nil {
			return Resolution{}, err
		}
		lotNumber = minted.Code
		source = SourceMinted
		degraded = minted.Degraded
	}

	now := s.nowFn()
	var out Resolution
	err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if existing, ok := tx.FindMapping(jobID); ok {
			// Benign race with another process: the stored value wins.
			if _, err := tx.AppendUsage(jobID, domain.UsageEntry{Component: consumer, Timestamp: now, Notes: "retrieved"}); err != nil {
				return err
			}
			out = Resolution{JobID: jobID, LotNumber: existing.LotNumber, Source: SourceExisting, Persisted: true}
			return nil
		}
		created, err := tx.CreateMapping(domain.LotMapping{
			JobID:      jobID,
			LotNumber:  lotNumber,
			PartNumber: hints.PartNumber,
			PartName:   hints.PartName,
			OrderID:    hints.OrderID,
			CreatedAt:  now,
			UsageHistory: []domain.UsageEntry{
				{Component: consumer, Timestamp: now, Notes: "created"},
			},
		})
		if err != nil {
			return err
		}
		out = Resolution{JobID: jobID, LotNumber: created.LotNumber, Source: source, Degraded: degraded, Persisted: true}
		return nil
	})
	if err != nil {
		s.logger.Warn("mapping store unreachable during creation, returning unpersisted lot number",
			"job_id", jobID, "lot_number", lotNumber, "error", err)
		s.metrics.Degraded(ctx, "resolve", "create_unpersisted")
		return Resolution{JobID: jobID, LotNumber: lotNumber, Source: source, Degraded: true}, nil
	}
	s.logger.Info("lot number resolved", "job_id", jobID, "lot_number", out.LotNumber,
		"source", string(out.Source), "consumer", string(consumer))
	return out, nil
}

// tryExisting attempts the dominant read path: return the stored mapping and
// append one audit entry. done=true means the resolution is final. A false
// done with Degraded set signals the store is unreachable.
func (s *Service) tryExisting(ctx context.Context, jobID string, consumer domain.Component) (Resolution, bool) {
	var (
		out   Resolution
		found bool
	)
	err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		m, ok := tx.FindMapping(jobID)
		if !ok {
			return nil
		}
		if _, err := tx.AppendUsage(jobID, domain.UsageEntry{Component: consumer, Timestamp: s.nowFn(), Notes: "retrieved"}); err != nil {
			return err
		}
		found = true
		out = Resolution{JobID: jobID, LotNumber: m.LotNumber, Source: SourceExisting, Persisted: true}
		return nil
	})
	if err != nil {
		return Resolution{Degraded: true}, false
	}
	return out, found
}

// degraded computes a lot number without the mapping store: the
// deterministic formula when the identifier embeds a sequence, otherwise a
// synthesized date+random value.
func (s *Service) degraded(ctx context.Context, jobID string, hints domain.Hints, comps jobid.Components, decoded bool) Resolution {
	if decoded && comps.HasLot() {
		lot := DeterministicLot(hints.PartNumber, hints.OrderID, *comps.LotSequence)
		s.logger.Warn("mapping store unreachable, derived lot number locally", "job_id", jobID, "lot_number", lot)
		s.metrics.Degraded(ctx, "resolve", "derived_unpersisted")
		return Resolution{JobID: jobID, LotNumber: lot, Source: SourceDerived, Degraded: true}
	}
	lot := fmt.Sprintf("LOT-%s-%04d", s.nowFn().Format("20060102"), randomDigits4())
	s.logger.Warn("mapping store unreachable, synthesized lot number", "job_id", jobID, "lot_number", lot)
	s.metrics.Degraded(ctx, "resolve", "synthesized")
	return Resolution{JobID: jobID, LotNumber: lot, Source: SourceSynthesized, Degraded: true}
}

func randomDigits4() int {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return int(binary.BigEndian.Uint16(b[:])) % 10000
}

// MintSequentialLot advances the raw counter scoped by part number alone or
// part number plus order. The store never fabricates values; unavailability
// surfaces to the caller.
func (s *Service) MintSequentialLot(ctx context.Context, partNumber, orderID string) (int64, error) {
	if partNumber == "" {
		return 0, fmt.Errorf("part number required")
	}
	start := s.nowFn()
	var value int64
	err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var e error
		value, e = tx.IncrementSequence(domain.ScopeKey(partNumber, orderID))
		return e
	})
	s.metrics.Observe(ctx, "mint_sequential", err == nil, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("mint sequential lot: %w", err)
	}
	return value, nil
}

// MintLot generates a formatted lot code through the sequence generator.
func (s *Service) MintLot(ctx context.Context, req lotseq.MintRequest) (lotseq.MintResult, error) {
	start := s.nowFn()
	res, err := s.generator.Mint(ctx, req)
	s.metrics.Observe(ctx, "mint", err == nil, time.Since(start))
	return res, err
}

// MarkGeneratedLotUsed flags a minted code as consumed. Idempotent.
func (s *Service) MarkGeneratedLotUsed(ctx context.Context, id string) (domain.GeneratedLot, error) {
	var lot domain.GeneratedLot
	err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var e error
		lot, e = tx.MarkGeneratedLotUsed(id)
		return e
	})
	return lot, err
}

// DecodeJobID exposes the codec to API collaborators.
func (s *Service) DecodeJobID(id string) (jobid.Components, bool) {
	return jobid.Decode(id)
}

// DisplayLabel renders "<partName> (Lot <N>)" when the identifier embeds a
// sequence, else the part name unchanged.
func (s *Service) DisplayLabel(jobID, partName string) string {
	return jobid.DisplayLabel(jobID, partName)
}

// GetMapping retrieves a stored mapping without touching usage history.
func (s *Service) GetMapping(jobID string) (domain.LotMapping, bool) {
	return s.store.GetMapping(jobID)
}

// ListMappings returns all stored mappings.
func (s *Service) ListMappings() []domain.LotMapping {
	return s.store.ListMappings()
}

// ListGeneratedLots returns all minted lot records.
func (s *Service) ListGeneratedLots() []domain.GeneratedLot {
	return s.store.ListGeneratedLots()
}
