// Package delivery reliably pushes coordinator commands to in-page agents
// whose attachment is uncertain: the page may still be parsing when the
// navigation event fires. Agents announce readiness once attached; commands
// sent earlier are retried with a bounded budget instead of being dropped.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/verdict"
)

// CommandType names the commands the coordinator sends to an agent.
type CommandType string

const (
	CommandBlock       CommandType = "BLOCK"
	CommandShowWarning CommandType = "SHOW_WARNING"
	CommandUnblock     CommandType = "UNBLOCK"
	CommandGetSignals  CommandType = "GET_SIGNALS"
	// CommandDiscard asks the transport to abandon the page entirely,
	// issued after the user chooses Leave.
	CommandDiscard CommandType = "DISCARD"
)

// Command is one instruction for a tab's in-page agent.
type Command struct {
	Type    CommandType      `json:"type"`
	URL     string           `json:"url,omitempty"`
	Verdict *verdict.Verdict `json:"verdict,omitempty"`
}

// Transport delivers a single command attempt to the agent of a tab.
// Implementations return an error when no agent is attached.
type Transport interface {
	Send(ctx context.Context, tab int, cmd Command) error
}

const (
	// DefaultAttempts bounds retries for a single delivery.
	DefaultAttempts = 10
	// DefaultDelay is the spacing between attempts.
	DefaultDelay = 120 * time.Millisecond
)

// Deliverer sends commands with a readiness handshake and bounded retry.
// Failure is reported to the caller but is never fatal: the coordinator
// persists verdicts regardless of whether the overlay ever showed.
type Deliverer struct {
	transport Transport
	log       *logging.Logger
	attempts  int
	delay     time.Duration

	mu    sync.Mutex
	ready map[int]chan struct{}
}

// New creates a Deliverer with the default retry budget.
func New(transport Transport, log *logging.Logger) *Deliverer {
	return NewWithBudget(transport, log, DefaultAttempts, DefaultDelay)
}

// NewWithBudget creates a Deliverer with an explicit retry budget.
func NewWithBudget(transport Transport, log *logging.Logger, attempts int, delay time.Duration) *Deliverer {
	if attempts < 1 {
		attempts = 1
	}
	return &Deliverer{
		transport: transport,
		log:       log,
		attempts:  attempts,
		delay:     delay,
		ready:     make(map[int]chan struct{}),
	}
}

// MarkReady records that the tab's agent has attached. Pending deliveries
// waiting on this tab wake immediately instead of sleeping out their delay.
func (d *Deliverer) MarkReady(tab int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.readyLocked(tab)
	select {
	case <-ch:
		// already marked
	default:
		close(ch)
	}
}

// Forget drops readiness state for a tab, typically on disconnect or
// navigation to a new document.
func (d *Deliverer) Forget(tab int) {
	d.mu.Lock()
	delete(d.ready, tab)
	d.mu.Unlock()
}

// Deliver sends cmd to the tab's agent, retrying while the agent is not yet
// attached. Retries block only this call; other tabs' deliveries proceed
// independently.
func (d *Deliverer) Deliver(ctx context.Context, tab int, cmd Command) error {
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err := d.transport.Send(ctx, tab, cmd); err == nil {
			if attempt > 1 {
				d.log.Debug("command delivered after retry",
					zap.Int("tab", tab),
					zap.String("command", string(cmd.Type)),
					zap.Int("attempt", attempt))
			}
			return nil
		} else {
			lastErr = err
		}

		if attempt == d.attempts {
			break
		}
		if err := d.wait(ctx, tab); err != nil {
			return err
		}
	}

	d.log.Warn("command delivery failed, dropping",
		zap.Int("tab", tab),
		zap.String("command", string(cmd.Type)),
		zap.Int("attempts", d.attempts),
		zap.Error(lastErr))
	return fmt.Errorf("deliver %s to tab %d after %d attempts: %w", cmd.Type, tab, d.attempts, lastErr)
}

// wait sleeps between attempts, waking early the first time the agent
// announces readiness.
func (d *Deliverer) wait(ctx context.Context, tab int) error {
	d.mu.Lock()
	ch := d.readyLocked(tab)
	var isReady bool
	select {
	case <-ch:
		isReady = true
	default:
	}
	d.mu.Unlock()

	if isReady {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.delay):
			return nil
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	case <-time.After(d.delay):
		return nil
	}
}

func (d *Deliverer) readyLocked(tab int) chan struct{} {
	ch, ok := d.ready[tab]
	if !ok {
		ch = make(chan struct{})
		d.ready[tab] = ch
	}
	return ch
}
