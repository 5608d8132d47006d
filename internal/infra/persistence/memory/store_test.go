package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lottrace/pkg/domain"
)

func TestIncrementSequenceMonotonic(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for want := int64(1); want <= 5; want++ {
		var got int64
		err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var e error
			got, e = tx.IncrementSequence("PART-A")
			return e
		})
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestScopeIsolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	inc := func(key string) int64 {
		var got int64
		if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var e error
			got, e = tx.IncrementSequence(key)
			return e
		}); err != nil {
			t.Fatalf("increment %s: %v", key, err)
		}
		return got
	}
	inc("PART-A")
	inc("PART-A")
	inc("PART-A")
	if got := inc(domain.ScopeKey("PART-A", "ORDER-1")); got != 1 {
		t.Fatalf("order-scoped counter must be independent, got %d", got)
	}
	if got := inc("PART-A"); got != 4 {
		t.Fatalf("part counter disturbed, got %d", got)
	}
}

func TestConcurrentIncrementsNeverDuplicate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	const n = 50
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				v, err := tx.IncrementSequence("PART-C")
				results <- v
				return err
			})
		}()
	}
	wg.Wait()
	close(results)
	seen := make(map[int64]bool, n)
	for v := range results {
		if seen[v] {
			t.Fatalf("duplicate sequence value %d", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct values, got %d", n, len(seen))
	}
}

func TestCreateMappingFirstWriterWins(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	create := func(lot string) domain.LotMapping {
		var out domain.LotMapping
		if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var e error
			out, e = tx.CreateMapping(domain.LotMapping{JobID: "job-1", LotNumber: lot})
			return e
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
		return out
	}
	first := create("LOT-001")
	second := create("LOT-OTHER")
	if second.LotNumber != first.LotNumber {
		t.Fatalf("second creator must observe first value, got %q", second.LotNumber)
	}
	stored, ok := store.GetMapping("job-1")
	if !ok || stored.LotNumber != "LOT-001" {
		t.Fatalf("stored mapping = %+v ok=%v", stored, ok)
	}
}

func TestAppendUsage(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateMapping(domain.LotMapping{JobID: "job-2", LotNumber: "LOT-002"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.AppendUsage("job-2", domain.UsageEntry{Component: domain.ComponentRoutingSheet, Notes: "retrieved"})
			return err
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	m, _ := store.GetMapping("job-2")
	if len(m.UsageHistory) != 3 {
		t.Fatalf("usage history length = %d", len(m.UsageHistory))
	}

	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.AppendUsage("missing", domain.UsageEntry{Component: domain.ComponentRoutingSheet})
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestMarkGeneratedLotUsedIdempotent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var lot domain.GeneratedLot
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var e error
		lot, e = tx.InsertGeneratedLot(domain.GeneratedLot{LotCode: "LOT-20250901-A-0001", Sequence: 1})
		return e
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if lot.ID == "" || lot.GeneratedAt.IsZero() {
		t.Fatalf("insert must assign id and timestamp: %+v", lot)
	}
	for i := 0; i < 2; i++ {
		if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			got, err := tx.MarkGeneratedLotUsed(lot.ID)
			if err != nil {
				return err
			}
			if !got.Used {
				t.Fatalf("expected used flag set")
			}
			return nil
		}); err != nil {
			t.Fatalf("mark used: %v", err)
		}
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, e := tx.IncrementSequence("PART-R"); e != nil {
			return e
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected transaction error, got %v", err)
	}
	var counters []domain.SequenceCounter
	_ = store.View(ctx, func(v domain.TransactionView) error {
		counters = v.ListSequenceCounters()
		return nil
	})
	if len(counters) != 0 {
		t.Fatalf("failed transaction must not commit, counters=%v", counters)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewStore()
	store.SetNowFunc(func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) })
	ctx := context.Background()
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.IncrementSequence("PART-S"); err != nil {
			return err
		}
		if _, err := tx.InsertGeneratedLot(domain.GeneratedLot{ID: "g1", LotCode: "X-1"}); err != nil {
			return err
		}
		_, err := tx.CreateMapping(domain.LotMapping{JobID: "job-s", LotNumber: "LOT-003"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	restored := NewStore()
	restored.ImportState(store.ExportState())
	if m, ok := restored.GetMapping("job-s"); !ok || m.LotNumber != "LOT-003" {
		t.Fatalf("mapping not restored: %+v ok=%v", m, ok)
	}
	if lots := restored.ListGeneratedLots(); len(lots) != 1 || lots[0].ID != "g1" {
		t.Fatalf("lots not restored: %+v", lots)
	}
	var next int64
	if err := restored.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var e error
		next, e = tx.IncrementSequence("PART-S")
		return e
	}); err != nil {
		t.Fatalf("increment restored: %v", err)
	}
	if next != 2 {
		t.Fatalf("counter must continue after restore, got %d", next)
	}
}
