// Package export snapshots traceability state into immutable archive
// artifacts stored through the blob layer. Each run writes the lot mappings,
// generated lot records, and sequence counters plus a manifest describing the
// produced artifacts.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"lottrace/internal/blob/core"
	"lottrace/pkg/domain"
)

// Format identifies a supported archive serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Artifact describes one stored archive object.
type Artifact struct {
	Key         string    `json:"key"`
	Dataset     string    `json:"dataset"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Manifest summarizes a completed archive run.
type Manifest struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Counts    map[string]int `json:"counts"`
	Artifacts []Artifact     `json:"artifacts"`
}

// Exporter produces traceability archive runs.
type Exporter struct {
	store  domain.PersistentStore
	blobs  core.Store
	logger domain.Logger
	nowFn  func() time.Time
}

// Option adjusts exporter construction.
type Option func(*Exporter)

// WithLogger attaches a logger.
func WithLogger(l domain.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.nowFn = fn
		}
	}
}

// NewExporter wires an exporter over the persistent store and blob backend.
func NewExporter(store domain.PersistentStore, blobs core.Store, opts ...Option) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("persistent store required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	e := &Exporter{
		store:  store,
		blobs:  blobs,
		logger: domain.NopLogger{},
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type dataset struct {
	name string
	rows func(domain.TransactionView) (header []string, records [][]string, payload any)
}

var datasets = []dataset{
	{
		name: "mappings",
		rows: func(v domain.TransactionView) ([]string, [][]string, any) {
			mappings := v.ListMappings()
			header := []string{"job_id", "lot_number", "part_number", "part_name", "order_id", "created_at", "usage_entries"}
			records := make([][]string, 0, len(mappings))
			for _, m := range mappings {
				records = append(records, []string{
					m.JobID, m.LotNumber, m.PartNumber, m.PartName, m.OrderID,
					m.CreatedAt.Format(time.RFC3339),
					strconv.Itoa(len(m.UsageHistory)),
				})
			}
			return header, records, mappings
		},
	},
	{
		name: "generated_lots",
		rows: func(v domain.TransactionView) ([]string, [][]string, any) {
			lots := v.ListGeneratedLots()
			header := []string{"id", "lot_code", "generated_at", "job_id", "task_id", "material_type", "sequence", "is_used"}
			records := make([][]string, 0, len(lots))
			for _, l := range lots {
				records = append(records, []string{
					l.ID, l.LotCode, l.GeneratedAt.Format(time.RFC3339),
					l.JobID, l.TaskID, l.MaterialType,
					strconv.FormatInt(l.Sequence, 10),
					strconv.FormatBool(l.Used),
				})
			}
			return header, records, lots
		},
	},
	{
		name: "counters",
		rows: func(v domain.TransactionView) ([]string, [][]string, any) {
			counters := v.ListSequenceCounters()
			header := []string{"scope_key", "next_value"}
			records := make([][]string, 0, len(counters))
			for _, c := range counters {
				records = append(records, []string{c.ScopeKey, strconv.FormatInt(c.NextValue, 10)})
			}
			return header, records, counters
		},
	},
}

// Run captures a consistent snapshot and writes one artifact per dataset and
// format under traceability/<runID>/. Formats default to JSON when empty.
func (e *Exporter) Run(ctx context.Context, formats ...Format) (Manifest, error) {
	if len(formats) == 0 {
		formats = []Format{FormatJSON}
	}
	seen := make(map[Format]struct{}, len(formats))
	uniq := make([]Format, 0, len(formats))
	for _, f := range formats {
		if f != FormatJSON && f != FormatCSV {
			return Manifest{}, fmt.Errorf("unsupported archive format %s", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := e.nowFn()
	runID := now.Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
	prefix := "traceability/" + runID + "/"

	manifest := Manifest{RunID: runID, CreatedAt: now, Counts: make(map[string]int, len(datasets))}
	err := e.store.View(ctx, func(view domain.TransactionView) error {
		for _, ds := range datasets {
			header, records, payload := ds.rows(view)
			manifest.Counts[ds.name] = len(records)
			for _, format := range uniq {
				data, contentType, err := materialize(format, header, records, payload)
				if err != nil {
					return fmt.Errorf("render %s.%s: %w", ds.name, format, err)
				}
				key := prefix + ds.name + "." + string(format)
				info, err := e.blobs.Put(ctx, key, bytes.NewReader(data), core.PutOptions{
					ContentType: contentType,
					Metadata:    map[string]string{"dataset": ds.name, "run_id": runID},
				})
				if err != nil {
					return fmt.Errorf("store %s: %w", key, err)
				}
				manifest.Artifacts = append(manifest.Artifacts, Artifact{
					Key:         info.Key,
					Dataset:     ds.name,
					Format:      format,
					ContentType: contentType,
					SizeBytes:   info.Size,
					CreatedAt:   now,
				})
			}
		}
		return nil
	})
	if err != nil {
		return Manifest{}, err
	}

	payload, err := json.Marshal(manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if _, err := e.blobs.Put(ctx, prefix+"manifest.json", bytes.NewReader(payload), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"dataset": "manifest", "run_id": runID},
	}); err != nil {
		return Manifest{}, fmt.Errorf("store manifest: %w", err)
	}
	e.logger.Info("traceability archive written",
		"run_id", runID,
		"artifacts", len(manifest.Artifacts),
		"driver", string(e.blobs.Driver()))
	return manifest, nil
}

// Manifests lists the manifests of completed runs, oldest first.
func (e *Exporter) Manifests(ctx context.Context) ([]Manifest, error) {
	infos, err := e.blobs.List(ctx, "traceability/")
	if err != nil {
		return nil, err
	}
	var out []Manifest
	for _, info := range infos {
		if info.Metadata["dataset"] != "manifest" {
			continue
		}
		_, rc, err := e.blobs.Get(ctx, info.Key)
		if err != nil {
			return nil, err
		}
		var m Manifest
		decodeErr := json.NewDecoder(rc).Decode(&m)
		rc.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", info.Key, decodeErr)
		}
		out = append(out, m)
	}
	return out, nil
}

func materialize(format Format, header []string, records [][]string, payload any) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(header); err != nil {
			return nil, "", err
		}
		for _, record := range records {
			if err := writer.Write(record); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported archive format %s", format)
	}
}
