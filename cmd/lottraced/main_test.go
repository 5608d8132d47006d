package main

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestRunHelp(t *testing.T) {
	var buf bytes.Buffer
	if code := run([]string{"-h"}, &buf); code != 0 {
		t.Fatalf("help exit code %d", code)
	}
}

func TestRunBadFlag(t *testing.T) {
	var buf bytes.Buffer
	if code := run([]string{"-unknown"}, &buf); code != 2 {
		t.Fatalf("bad flag exit code %d", code)
	}
}

func TestRunMissingConfigFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if code := run([]string{"-config", path}, &buf); code != 1 {
		t.Fatalf("missing config exit code %d, output %s", code, buf.String())
	}
}

func TestRunUnknownStorageDriver(t *testing.T) {
	t.Setenv("LOTTRACE_STORAGE_DRIVER", "etcd")
	var buf bytes.Buffer
	if code := run(nil, &buf); code != 1 {
		t.Fatalf("unknown driver exit code %d, output %s", code, buf.String())
	}
}
