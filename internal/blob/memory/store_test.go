package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"lottrace/internal/blob/core"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()
	info, err := store.Put(ctx, "traceability/run/mappings.json", strings.NewReader(`{"a":1}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"artifact": "mappings"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	got, rc, err := store.Get(ctx, "traceability/run/mappings.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected payload %s", data)
	}
	if got.Metadata["artifact"] != "mappings" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{}); err == nil {
		t.Fatal("expected error on duplicate key")
	}
}

func TestDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	existed, err := store.Delete(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("delete existing: existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "k")
	if err != nil || existed {
		t.Fatalf("delete missing: existed=%v err=%v", existed, err)
	}
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatal("expected get to fail after delete")
	}
}

func TestListPrefixOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []string{"runs/b.json", "runs/a.json", "other/c.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "runs/a.json" || infos[1].Key != "runs/b.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}
}
