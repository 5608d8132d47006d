// Package fs implements a local-filesystem blob Store. Artifact bytes live
// under the root directory keyed by their path; metadata sits in a JSON
// sidecar next to each artifact.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lottrace/internal/blob/core"
)

const metaSuffix = ".meta.json"

// Store implements core.Store on the local filesystem.
type Store struct {
	root string
}

var _ core.Store = (*Store)(nil)

// New creates the root directory if needed and returns a store over it.
func New(root string) (*Store, error) {
	if root == "" {
		root = "lottrace-archive"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the configured root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) pathFor(key string) (string, error) {
	if key == "" || strings.HasSuffix(key, metaSuffix) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put stores a new artifact; errors if key exists.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(path); err == nil {
		return core.Info{}, fmt.Errorf("blob %s already exists", key)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return core.Info{}, fmt.Errorf("stat blob: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return core.Info{}, fmt.Errorf("create blob dirs: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return core.Info{}, fmt.Errorf("write blob: %w", err)
	}
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(path+metaSuffix, meta, 0o640); err != nil {
		return core.Info{}, fmt.Errorf("write blob metadata: %w", err)
	}
	return info, nil
}

func (s *Store) readInfo(path, key string) (core.Info, error) {
	meta, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		return core.Info{}, fmt.Errorf("blob %s not found", key)
	}
	var info core.Info
	if err := json.Unmarshal(meta, &info); err != nil {
		return core.Info{}, fmt.Errorf("decode blob metadata: %w", err)
	}
	return info, nil
}

// Get returns artifact metadata and a reader over its content.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	info, err := s.readInfo(path, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("blob %s not found", key)
	}
	return info, f, nil
}

// Delete removes the artifact and its sidecar, returning true if it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("remove blob: %w", err)
	}
	_ = os.Remove(path + metaSuffix)
	return true, nil
}

// List walks the root and returns artifacts matching prefix, ordered by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.readInfo(path, key)
		if err != nil {
			return err
		}
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
