package blob

import (
	"context"
	"testing"

	"lottrace/internal/blob/core"
)

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("LOTTRACE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("LOTTRACE_BLOB_DRIVER", "")
	t.Setenv("LOTTRACE_BLOB_FS_ROOT", t.TempDir())
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Setenv("LOTTRACE_BLOB_DRIVER", "tape")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
