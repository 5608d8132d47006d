package memory

import "lottrace/pkg/domain"

// Snapshot is a serializable copy of the full store state, used by durable
// drivers to persist and rehydrate.
type Snapshot struct {
	Counters []domain.SequenceCounter `json:"counters"`
	Lots     []domain.GeneratedLot    `json:"generated"`
	Mappings []domain.LotMapping      `json:"mappings"`
}

// ExportState captures the current state as a snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := view{state: &s.state}
	return Snapshot{
		Counters: v.ListSequenceCounters(),
		Lots:     v.ListGeneratedLots(),
		Mappings: v.ListMappings(),
	}
}

// ImportState replaces the store state with the snapshot contents.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newState()
	for _, c := range snapshot.Counters {
		st.counters[c.ScopeKey] = c
	}
	for _, lot := range snapshot.Lots {
		st.lots[lot.ID] = lot
	}
	for _, m := range snapshot.Mappings {
		st.mappings[m.JobID] = cloneMapping(m)
	}
	s.state = st
}
