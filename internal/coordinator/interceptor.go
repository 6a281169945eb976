// Package coordinator orchestrates the end-to-end flow on each top-level
// page load: block, sample signals, classify, verdict delivery, and
// persistence. The coordinator is process-wide and long-lived; it owns the
// allowlist and history through the store and never shares per-page state.
package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harees/navguard/internal/agent"
	"github.com/harees/navguard/internal/allowlist"
	"github.com/harees/navguard/internal/delivery"
	"github.com/harees/navguard/internal/history"
	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/monitoring"
	"github.com/harees/navguard/internal/verdict"
)

// TopLevelFrame identifies the main frame of a tab. Sub-frame loads are
// ignored.
const TopLevelFrame = 0

// NavigationEvent is one page-load-completed notification from the host.
type NavigationEvent struct {
	Tab   int
	Frame int
	URL   string
}

// Classifier renders verdicts. Implementations must convert their own
// failures to fallback verdicts; Check never fails.
type Classifier interface {
	Check(ctx context.Context, url string, signals *agent.Signals) verdict.Verdict
}

// SignalSource fetches content signals from a tab's in-page agent. A nil
// result with nil error means the agent did not answer, which is tolerated.
type SignalSource interface {
	RequestSignals(ctx context.Context, tab int) (*agent.Signals, error)
}

// Interceptor coordinates navigation verdicts.
type Interceptor struct {
	deliverer  *delivery.Deliverer
	classifier Classifier
	signals    SignalSource
	allow      *allowlist.Cache
	log        *history.Log
	logger     *logging.Logger
	metrics    *monitoring.Metrics
}

// New creates an interceptor. metrics may be nil.
func New(
	deliverer *delivery.Deliverer,
	classifier Classifier,
	signals SignalSource,
	allow *allowlist.Cache,
	hist *history.Log,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
) *Interceptor {
	if metrics == nil {
		metrics = monitoring.NewNop()
	}
	return &Interceptor{
		deliverer:  deliverer,
		classifier: classifier,
		signals:    signals,
		allow:      allow,
		log:        hist,
		logger:     logger,
		metrics:    metrics,
	}
}

// HandleNavigation runs the full verdict sequence for one navigation.
// Each invocation is independent; callers typically run it in its own
// goroutine so one tab's slow classifier never stalls another tab.
func (i *Interceptor) HandleNavigation(ctx context.Context, ev NavigationEvent) {
	if ev.Frame != TopLevelFrame {
		return
	}
	if !strings.HasPrefix(ev.URL, "http://") && !strings.HasPrefix(ev.URL, "https://") {
		return
	}

	navID := uuid.NewString()
	logger := i.logger.With(
		zap.String("nav", navID),
		zap.Int("tab", ev.Tab),
		zap.String("url", ev.URL))

	allowed, err := i.allow.IsAllowed(ctx, ev.Tab, ev.URL)
	if err != nil {
		logger.Warn("allowlist lookup failed, treating as not allowed", zap.Error(err))
	}

	if allowed {
		// User already chose Proceed for this tab+url: never re-block,
		// but refresh the verdict so the inspector and history stay
		// current.
		v := i.check(ctx, ev.URL, nil)
		i.persist(ctx, logger, v, history.ActionAuto)
		i.metrics.NavigationDone("allowlisted", v.Severity)
		logger.Info("navigation allowlisted, verdict refreshed",
			zap.String("severity", string(v.Severity)))
		return
	}

	// Block first. Delivery failure is tolerated: the verdict is still
	// rendered and persisted even if the overlay never shows.
	if err := i.deliverer.Deliver(ctx, ev.Tab, delivery.Command{
		Type: delivery.CommandBlock,
		URL:  ev.URL,
	}); err != nil {
		logger.Debug("block command not delivered", zap.Error(err))
	}

	signals, err := i.signals.RequestSignals(ctx, ev.Tab)
	if err != nil {
		// Agent not ready or not answering: proceed URL-only.
		logger.Debug("no page signals, classifying by url only", zap.Error(err))
		signals = nil
	}

	v := i.check(ctx, ev.URL, signals)

	outcome := "warned"
	action := history.ActionPending
	cmd := delivery.Command{Type: delivery.CommandShowWarning, Verdict: &v}
	if v.Severity == verdict.SeveritySafe {
		outcome = "cleared"
		action = history.ActionAuto
		cmd = delivery.Command{Type: delivery.CommandUnblock}
	}

	if err := i.deliverer.Deliver(ctx, ev.Tab, cmd); err != nil {
		logger.Debug("verdict command not delivered", zap.Error(err))
	}

	i.persist(ctx, logger, v, action)
	i.metrics.NavigationDone(outcome, v.Severity)
	logger.Info("navigation verdict applied",
		zap.String("severity", string(v.Severity)),
		zap.String("outcome", outcome))
}

// HandleUserAction records a Leave/Proceed decision reported by a tab's
// agent. Proceed grants an allowlist override; Leave additionally asks the
// transport to abandon the page.
func (i *Interceptor) HandleUserAction(ctx context.Context, tab int, ua agent.UserAction) {
	logger := i.logger.With(
		zap.Int("tab", tab),
		zap.String("url", ua.URL),
		zap.String("action", ua.Action))

	var action history.Action
	switch ua.Action {
	case "proceed":
		action = history.ActionProceed
	case "leave":
		action = history.ActionLeave
	default:
		// Malformed notifications are ignored without error.
		logger.Debug("ignoring malformed user action")
		return
	}

	if err := i.log.Append(ctx, history.Record{
		URL:        ua.URL,
		Severity:   ua.Severity,
		Score:      ua.Score,
		Reason:     ua.Reason,
		Action:     action,
		RecordedAt: time.Now(),
	}); err != nil {
		logger.Warn("history append failed", zap.Error(err))
	}

	switch action {
	case history.ActionProceed:
		if err := i.allow.SetAllowed(ctx, tab, ua.URL); err != nil {
			logger.Warn("allowlist grant failed", zap.Error(err))
		}
	case history.ActionLeave:
		if err := i.deliverer.Deliver(ctx, tab, delivery.Command{Type: delivery.CommandDiscard}); err != nil {
			logger.Debug("discard command not delivered", zap.Error(err))
		}
	}

	i.metrics.UserAction(ua.Action)
	logger.Info("user action recorded")
}

// HandleTabClosed purges the tab's allowlist entries. An override's scope
// never outlives its tab.
func (i *Interceptor) HandleTabClosed(ctx context.Context, tab int) {
	i.deliverer.Forget(tab)
	if err := i.allow.ClearTab(ctx, tab); err != nil {
		i.logger.Warn("allowlist purge failed", zap.Int("tab", tab), zap.Error(err))
	}
}

// check runs the classifier and records its latency.
func (i *Interceptor) check(ctx context.Context, url string, signals *agent.Signals) verdict.Verdict {
	start := time.Now()
	v := i.classifier.Check(ctx, url, signals)
	i.metrics.ObserveClassifier(time.Since(start))
	return v
}

// persist writes the verdict to the last-verdict slot and the history log.
// A stale in-flight verdict can overwrite a newer navigation's data here;
// that race is accepted and observable through the nav id in the logs.
func (i *Interceptor) persist(ctx context.Context, logger *zap.Logger, v verdict.Verdict, action history.Action) {
	if err := i.log.SetLast(ctx, v); err != nil {
		logger.Warn("last verdict write failed", zap.Error(err))
	}
	if err := i.log.Append(ctx, history.FromVerdict(v, action)); err != nil {
		logger.Warn("history append failed", zap.Error(err))
	}
}
