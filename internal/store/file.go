package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store that persists each key as a JSON file under a root
// directory, surviving coordinator restarts. A single mutex serializes all
// writes, which also gives AppendBounded its single-writer guarantee.
type File struct {
	root string
	mu   sync.Mutex
}

// NewFile creates a file-backed store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{root: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.root, key+".json")
}

func (f *File) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (f *File) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(key, raw)
}

func (f *File) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (f *File) AppendBounded(ctx context.Context, key string, item interface{}, limit int) error {
	itemRaw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %q item: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var list []json.RawMessage
	if raw, err := os.ReadFile(f.path(key)); err == nil {
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %q: %w", key, err)
	}

	list = append([]json.RawMessage{itemRaw}, list...)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return f.write(key, raw)
}

// write replaces the key's file via a temp file rename so readers never see
// a torn write.
func (f *File) write(key string, raw []byte) error {
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %q: %w", key, err)
	}
	return nil
}
