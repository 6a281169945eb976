package allowlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harees/navguard/internal/store"
)

// storeKey is the persistence slot holding the whole allowlist map.
const storeKey = "allowlist"

// Entry records an explicit user "proceed" decision.
type Entry struct {
	GrantedAt time.Time `json:"grantedAt"`
}

// Cache remembers per-(tab, url) proceed overrides so a tab the user chose
// to keep is not re-blocked on the next identical navigation. Entries never
// outlive their tab: ClearTab purges them when the host reports closure.
type Cache struct {
	store store.Store
}

// New creates a cache over the given store.
func New(s store.Store) *Cache {
	return &Cache{store: s}
}

// key composes the tab identity and exact URL. Two tabs on the same URL
// have independent allow state.
func key(tab int, url string) string {
	return fmt.Sprintf("%d::%s", tab, url)
}

// IsAllowed reports whether the user already chose Proceed for this
// tab+url pair.
func (c *Cache) IsAllowed(ctx context.Context, tab int, url string) (bool, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := entries[key(tab, url)]
	return ok, nil
}

// SetAllowed grants an override. Re-granting only refreshes the timestamp.
func (c *Cache) SetAllowed(ctx context.Context, tab int, url string) error {
	entries, err := c.load(ctx)
	if err != nil {
		return err
	}
	entries[key(tab, url)] = Entry{GrantedAt: time.Now()}
	return c.store.Set(ctx, storeKey, entries)
}

// ClearTab removes every entry belonging to the given tab.
func (c *Cache) ClearTab(ctx context.Context, tab int) error {
	entries, err := c.load(ctx)
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("%d::", tab)
	for k := range entries {
		if strings.HasPrefix(k, prefix) {
			delete(entries, k)
		}
	}
	return c.store.Set(ctx, storeKey, entries)
}

func (c *Cache) load(ctx context.Context) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	if _, err := c.store.Get(ctx, storeKey, &entries); err != nil {
		return nil, fmt.Errorf("load allowlist: %w", err)
	}
	return entries, nil
}
