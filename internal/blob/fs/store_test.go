package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lottrace/internal/blob/core"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	info, err := store.Put(ctx, "traceability/run-1/counters.json", strings.NewReader(`{"n":3}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"artifact": "counters"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 {
		t.Fatalf("unexpected size %d", info.Size)
	}
	got, rc, err := store.Get(ctx, "traceability/run-1/counters.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"n":3}` {
		t.Fatalf("unexpected payload %s", data)
	}
	if got.ContentType != "application/json" || got.Metadata["artifact"] != "counters" {
		t.Fatalf("metadata not preserved: %+v", got)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "k.json", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k.json", strings.NewReader("two"), core.PutOptions{}); err == nil {
		t.Fatal("expected error on duplicate key")
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "../escape", "/abs/path", "x" + ".meta.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestDeleteRemovesSidecar(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "a/b.json", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	existed, err := store.Delete(ctx, "a/b.json")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b.json.meta.json")); !os.IsNotExist(err) {
		t.Fatalf("sidecar left behind: %v", err)
	}
	existed, err = store.Delete(ctx, "a/b.json")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestListPrefixOrdering(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"runs/2/lots.json", "runs/1/lots.json", "misc/x.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "runs/1/lots.json" || infos[1].Key != "runs/2/lots.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}
}

func TestDefaultRoot(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	store, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Root() != "lottrace-archive" {
		t.Fatalf("unexpected root %s", store.Root())
	}
}
