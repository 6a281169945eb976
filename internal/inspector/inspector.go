// Package inspector implements the on-demand manual URL check backing the
// popup UI: strict input validation, an optional active-tab fallback, and a
// classifier call whose result also lands in the last-verdict slot.
package inspector

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/harees/navguard/internal/coordinator"
	"github.com/harees/navguard/internal/history"
	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/verdict"
)

// ErrInvalidURL marks input that fails validation. No network call is made
// for invalid input.
var ErrInvalidURL = fmt.Errorf("invalid url")

// NormalizeURL validates and canonicalizes free-text URL input. The scheme
// defaults to https when omitted; only http/https pass; the host must look
// realistic: contain a dot, be "localhost", or be an IPv4 literal.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	withScheme := raw
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		withScheme = "https://" + raw
	}

	u, err := url.Parse(withScheme)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if !realisticHost(host) {
		return "", fmt.Errorf("%w: host %q", ErrInvalidURL, host)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

func realisticHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return true
	}
	return strings.Contains(host, ".")
}

// Request describes one manual check. ActiveTabURL is the fallback used
// when URL input is empty; it is only honored when it is http(s).
type Request struct {
	URL          string `json:"url"`
	ActiveTabURL string `json:"activeTabUrl"`
}

// Result of a manual check.
type Result struct {
	// Invalid is set when the input failed validation; Verdict is empty
	// in that case and the classifier was never called.
	Invalid bool             `json:"invalid"`
	Message string           `json:"message,omitempty"`
	Verdict *verdict.Verdict `json:"verdict,omitempty"`
}

// Inspector performs manual checks.
type Inspector struct {
	classifier coordinator.Classifier
	hist       *history.Log
	logger     *logging.Logger
}

// New creates an inspector.
func New(classifier coordinator.Classifier, hist *history.Log, logger *logging.Logger) *Inspector {
	return &Inspector{classifier: classifier, hist: hist, logger: logger}
}

// Check resolves the target URL, classifies it, and refreshes the
// last-verdict slot. Invalid input short-circuits without any network call.
func (i *Inspector) Check(ctx context.Context, req Request) Result {
	target, err := i.resolve(req)
	if err != nil {
		return Result{Invalid: true, Message: err.Error()}
	}

	v := i.classifier.Check(ctx, target, nil)
	if err := i.hist.SetLast(ctx, v); err != nil {
		i.logger.Warn("last verdict write failed", zap.Error(err))
	}

	i.logger.Info("manual check",
		zap.String("url", target),
		zap.String("severity", string(v.Severity)))
	return Result{Verdict: &v}
}

func (i *Inspector) resolve(req Request) (string, error) {
	raw := strings.TrimSpace(req.URL)
	if raw != "" {
		// Typed input is never silently replaced: if it is invalid the
		// user sees the validation failure, not the active tab's result.
		return NormalizeURL(raw)
	}

	tab := strings.TrimSpace(req.ActiveTabURL)
	if strings.HasPrefix(tab, "http://") || strings.HasPrefix(tab, "https://") {
		return tab, nil
	}
	return "", fmt.Errorf("%w: no url entered and no http(s) tab active", ErrInvalidURL)
}

// LastVerdict exposes the most recent verdict for the popup.
func (i *Inspector) LastVerdict(ctx context.Context) (verdict.Verdict, bool, error) {
	return i.hist.Last(ctx)
}
