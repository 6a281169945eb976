package history

import (
	"context"
	"fmt"
	"time"

	"github.com/harees/navguard/internal/store"
	"github.com/harees/navguard/internal/verdict"
)

const (
	historyKey     = "history"
	lastVerdictKey = "lastVerdict"

	// Cap is the maximum number of records retained, newest first.
	Cap = 200
)

// Action describes what happened after a verdict was rendered.
type Action string

const (
	// ActionAuto: verdict applied without user involvement (safe page, or
	// an allowlisted tab re-checked in the background).
	ActionAuto Action = "auto"
	// ActionPending: a warning is on screen awaiting the user's choice.
	ActionPending Action = "pending"
	// ActionProceed: the user dismissed the warning and kept the page.
	ActionProceed Action = "proceed"
	// ActionLeave: the user abandoned the page.
	ActionLeave Action = "leave"
)

// Record is one immutable history entry.
type Record struct {
	URL        string           `json:"url"`
	Severity   verdict.Severity `json:"severity"`
	Score      *float64         `json:"score,omitempty"`
	Reason     string           `json:"reason"`
	Action     Action           `json:"action"`
	RecordedAt time.Time        `json:"recordedAt"`
}

// Log is the append-only, capacity-bounded record of verdicts and user
// decisions, plus the single-slot cache of the most recent verdict.
type Log struct {
	store store.Store
}

// New creates a log over the given store.
func New(s store.Store) *Log {
	return &Log{store: s}
}

// FromVerdict builds a record from a verdict and the action taken.
func FromVerdict(v verdict.Verdict, action Action) Record {
	return Record{
		URL:        v.URL,
		Severity:   v.Severity,
		Score:      v.Score,
		Reason:     v.Reason,
		Action:     action,
		RecordedAt: time.Now(),
	}
}

// Append prepends rec and truncates to Cap. Records are never mutated after
// insertion.
func (l *Log) Append(ctx context.Context, rec Record) error {
	if err := l.store.AppendBounded(ctx, historyKey, rec, Cap); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns records newest first. limit <= 0 means all retained records.
func (l *Log) List(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	if _, err := l.store.Get(ctx, historyKey, &records); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// SetLast overwrites the single-slot latest-verdict cache.
func (l *Log) SetLast(ctx context.Context, v verdict.Verdict) error {
	if err := l.store.Set(ctx, lastVerdictKey, v); err != nil {
		return fmt.Errorf("set last verdict: %w", err)
	}
	return nil
}

// Last returns the most recent verdict, or false when none was recorded yet.
func (l *Log) Last(ctx context.Context) (verdict.Verdict, bool, error) {
	var v verdict.Verdict
	ok, err := l.store.Get(ctx, lastVerdictKey, &v)
	if err != nil {
		return verdict.Verdict{}, false, fmt.Errorf("load last verdict: %w", err)
	}
	return v, ok, nil
}
