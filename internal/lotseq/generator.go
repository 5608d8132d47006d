// Package lotseq mints human-readable lot codes from a configurable template
// backed by durable per-(task, day) sequence counters.
package lotseq

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"lottrace/pkg/domain"
)

// Generator turns raw sequence values into formatted lot codes and records
// every minted code for audit and lookup.
type Generator struct {
	store   domain.PersistentStore
	cfg     Config
	nowFn   func() time.Time
	logger  domain.Logger
	metrics domain.MetricsRecorder
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger injects a structured logger.
func WithLogger(l domain.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m domain.MetricsRecorder) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(g *Generator) { g.nowFn = fn }
}

// NewGenerator constructs a generator over the given store. Zero-valued cfg
// fields fall back to the built-in defaults.
func NewGenerator(store domain.PersistentStore, cfg Config, opts ...Option) (*Generator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		store:   store,
		cfg:     cfg,
		nowFn:   func() time.Time { return time.Now() },
		logger:  domain.NopLogger{},
		metrics: domain.NopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the generator's effective template.
func (g *Generator) Config() Config { return g.cfg }

// MintRequest describes one mint call. Config optionally overrides the
// generator template for this call only.
type MintRequest struct {
	JobID        string
	TaskID       string
	MaterialType string
	TaskName     string
	Config       *Config
}

// MintResult carries the formatted code plus the persisted audit record.
// Degraded marks a code whose sequence component was derived from the clock
// because the sequence store was unreachable; such codes are not guaranteed
// unique and their record is not persisted.
type MintResult struct {
	Code     string
	Sequence int64
	Record   domain.GeneratedLot
	Degraded bool
}

// Mint resolves the effective template, obtains the next per-(task, day)
// sequence value and returns the joined lot code. Template errors fail fast;
// store failures degrade to a time-derived sequence component.
func (g *Generator) Mint(ctx context.Context, req MintRequest) (MintResult, error) {
	cfg := g.cfg
	if req.Config != nil {
		cfg = req.Config.withDefaults()
		if err := cfg.Validate(); err != nil {
			return MintResult{}, err
		}
	}

	now := g.nowFn()
	dateStr := cfg.formatDate(now)
	shift := ""
	if cfg.IncludeShift {
		shift = ShiftCode(now)
	}
	taskName := req.TaskName
	if taskName == "" {
		taskName = "general"
	}
	scopeKey := taskName + "#" + dateStr

	var record domain.GeneratedLot
	err := g.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		seq, err := tx.IncrementSequence(scopeKey)
		if err != nil {
			return err
		}
		record, err = tx.InsertGeneratedLot(domain.GeneratedLot{
			ID:           uuid.NewString(),
			LotCode:      cfg.join(dateStr, shift, seq),
			GeneratedAt:  now.UTC(),
			JobID:        req.JobID,
			TaskID:       req.TaskID,
			MaterialType: req.MaterialType,
			Sequence:     seq,
		})
		return err
	})
	if err != nil {
		// Best effort: a time-derived sequence keeps callers unblocked but
		// weakens the uniqueness invariant, so it is logged and counted.
		seq := now.Unix() % 1000
		code := cfg.join(dateStr, shift, seq)
		g.logger.Warn("sequence store unavailable, minted time-derived lot code",
			"scope_key", scopeKey, "lot_code", code, "error", err)
		g.metrics.Degraded(ctx, "mint", "sequence_fallback")
		return MintResult{
			Code:     code,
			Sequence: seq,
			Record: domain.GeneratedLot{
				LotCode:      code,
				GeneratedAt:  now.UTC(),
				JobID:        req.JobID,
				TaskID:       req.TaskID,
				MaterialType: req.MaterialType,
				Sequence:     seq,
			},
			Degraded: true,
		}, nil
	}
	return MintResult{Code: record.LotCode, Sequence: record.Sequence, Record: record}, nil
}

func (c Config) join(dateStr, shift string, seq int64) string {
	seqStr := fmt.Sprintf("%0*d", c.SequenceLength, seq)
	parts := make([]string, 0, 5)
	for _, p := range []string{c.Prefix, dateStr, shift, seqStr, c.CustomSuffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, c.Separator)
}

// Parsed holds the template components recovered from a lot code.
type Parsed struct {
	Prefix   string
	DateStr  string
	Date     time.Time
	Shift    string
	Sequence int64
	Suffix   string
}

// Parse splits a lot code against the template grammar. It is a pure
// function with no store access; unparseable codes yield ok=false.
func (g *Generator) Parse(code string, override *Config) (Parsed, bool) {
	cfg := g.cfg
	if override != nil {
		cfg = override.withDefaults()
		if cfg.Validate() != nil {
			return Parsed{}, false
		}
	}

	parts := strings.Split(code, cfg.Separator)
	var out Parsed
	if cfg.Prefix != "" {
		if len(parts) == 0 || parts[0] != cfg.Prefix {
			return Parsed{}, false
		}
		out.Prefix = parts[0]
		parts = parts[1:]
	}

	layout, _ := cfg.DateFormat.layout()
	if len(parts) == 0 || len(parts[0]) != len(layout) {
		return Parsed{}, false
	}
	date, err := time.Parse(layout, parts[0])
	if err != nil {
		return Parsed{}, false
	}
	out.DateStr, out.Date = parts[0], date
	parts = parts[1:]

	if cfg.IncludeShift {
		if len(parts) == 0 || (parts[0] != "A" && parts[0] != "B" && parts[0] != "C") {
			return Parsed{}, false
		}
		out.Shift = parts[0]
		parts = parts[1:]
	}

	if len(parts) == 0 || len(parts[0]) < cfg.SequenceLength {
		return Parsed{}, false
	}
	seq, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	out.Sequence = seq
	parts = parts[1:]

	if cfg.CustomSuffix != "" {
		if len(parts) != 1 || parts[0] != cfg.CustomSuffix {
			return Parsed{}, false
		}
		out.Suffix = parts[0]
		parts = parts[1:]
	}
	if len(parts) != 0 {
		return Parsed{}, false
	}
	return out, true
}

// Validate reports whether a lot code conforms to the template grammar.
func (g *Generator) Validate(code string, override *Config) bool {
	_, ok := g.Parse(code, override)
	return ok
}
