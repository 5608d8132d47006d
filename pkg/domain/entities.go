// Package domain defines the shared entities and persistence contracts for
// the lot identity and traceability subsystem.
package domain

import "time"

// Component identifies the workflow surface that touched a lot mapping.
type Component string

const (
	ComponentJobCreation      Component = "job_creation"
	ComponentTraceabilityTask Component = "traceability_task"
	ComponentRoutingSheet     Component = "routing_sheet"
	ComponentMaterialApproval Component = "material_approval"
)

// KnownComponents lists the workflow surfaces permitted in usage history.
func KnownComponents() []Component {
	return []Component{
		ComponentJobCreation,
		ComponentTraceabilityTask,
		ComponentRoutingSheet,
		ComponentMaterialApproval,
	}
}

// SequenceCounter is a durable per-scope counter. NextValue holds the last
// issued value; the next increment returns NextValue+1.
type SequenceCounter struct {
	ScopeKey  string `json:"scope_key"`
	NextValue int64  `json:"next_value"`
}

// GeneratedLot is an immutable audit record of one minted formatted lot code.
// Only Used may change after creation, and only once.
type GeneratedLot struct {
	ID           string    `json:"id"`
	LotCode      string    `json:"lot_code"`
	GeneratedAt  time.Time `json:"generated_at"`
	JobID        string    `json:"job_id,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
	MaterialType string    `json:"material_type,omitempty"`
	Sequence     int64     `json:"sequence"`
	Used         bool      `json:"is_used"`
}

// UsageEntry records one consumer touching a lot mapping.
type UsageEntry struct {
	Component Component `json:"component"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
}

// LotMapping binds a job identifier to its canonical lot number. LotNumber is
// write-once: after creation consumers only append usage entries.
type LotMapping struct {
	JobID        string       `json:"job_id"`
	LotNumber    string       `json:"lot_number"`
	PartNumber   string       `json:"part_number,omitempty"`
	PartName     string       `json:"part_name,omitempty"`
	OrderID      string       `json:"order_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	LastUpdated  time.Time    `json:"last_updated"`
	UsageHistory []UsageEntry `json:"usage_history"`
}

// Hints carries caller-supplied job metadata. The zero value of a field means
// the caller does not know it; decoded job-identifier data takes precedence
// for absent fields.
type Hints struct {
	PartNumber string
	PartName   string
	OrderID    string
}

// ScopeKey derives the counter grouping key for a part, optionally scoped to
// a single order. Counters under distinct scope keys are fully independent.
func ScopeKey(partIdentifier, orderID string) string {
	if orderID == "" {
		return partIdentifier
	}
	return partIdentifier + "#" + orderID
}
