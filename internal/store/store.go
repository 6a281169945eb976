package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store is the asynchronous key-value persistence shared by the coordinator
// and the inspector. It offers only independent Get/Set/Delete plus a
// dedicated AppendBounded primitive; implementations must make AppendBounded
// a single-writer operation so concurrent appends never lose a record.
type Store interface {
	// Get unmarshals the value for key into dest. Returns false when the
	// key is absent, in which case dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// AppendBounded prepends item to the list stored at key and truncates
	// it to the most recent limit entries, atomically with respect to other
	// AppendBounded calls on the same store.
	AppendBounded(ctx context.Context, key string, item interface{}, limit int) error
}

// Memory is an in-process Store backed by a mutex-guarded map of raw JSON.
type Memory struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]json.RawMessage)}
}

func (m *Memory) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// AppendBounded performs the read-modify-write under the write lock, so two
// overlapping appends cannot lose each other's record.
func (m *Memory) AppendBounded(ctx context.Context, key string, item interface{}, limit int) error {
	itemRaw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %q item: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var list []json.RawMessage
	if raw, ok := m.data[key]; ok {
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
	}

	list = append([]json.RawMessage{itemRaw}, list...)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.data[key] = raw
	return nil
}
