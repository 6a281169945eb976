package verdict

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Severity is the canonical four-valued risk classification. Every part of
// the system that needs to reason about risk consumes this type; raw
// classifier fields never leave this package.
type Severity string

const (
	SeveritySafe    Severity = "safe"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
	SeverityInfo    Severity = "info"
)

// ParseSeverity maps free text to a Severity, defaulting to info.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return SeveritySafe
	case "warning":
		return SeverityWarning
	case "danger":
		return SeverityDanger
	default:
		return SeverityInfo
	}
}

// Verdict is the normalized risk assessment for a URL. Immutable once
// constructed; the coordinator stamps URL and ObservedAt.
type Verdict struct {
	URL        string    `json:"url"`
	Severity   Severity  `json:"severity"`
	RawStatus  string    `json:"rawStatus"`
	Reason     string    `json:"reason"`
	Score      *float64  `json:"score,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

// RemoteResponse is the loose wire shape returned by the classifier.
// Any of Color, Level, or Status may carry the risk text.
type RemoteResponse struct {
	Status string   `json:"status"`
	Color  string   `json:"color"`
	Level  string   `json:"level"`
	Reason string   `json:"reason"`
	Score  *float64 `json:"score"`
}

// reasonPolicy strips markup from classifier-supplied reason text before it
// reaches any UI surface.
var reasonPolicy = bluemonday.StrictPolicy()

// Normalize maps a remote response to a Verdict. Field priority is
// color > level > status; the first non-empty field that matches a rule
// wins. Matching is case-insensitive substring: "danger" beats
// "warn"/"susp" beats "safe"; anything else is info.
func Normalize(resp RemoteResponse, url string, now time.Time) Verdict {
	return Verdict{
		URL:        url,
		Severity:   severityFrom(resp.Color, resp.Level, resp.Status),
		RawStatus:  resp.Status,
		Reason:     reasonPolicy.Sanitize(resp.Reason),
		Score:      resp.Score,
		ObservedAt: now,
	}
}

// Fallback synthesizes the verdict used when the classifier cannot be
// reached. Transport failures are always converted to this, never surfaced.
func Fallback(url string, now time.Time) Verdict {
	return Verdict{
		URL:        url,
		Severity:   SeverityWarning,
		RawStatus:  "Server Offline",
		Reason:     "classifier unreachable",
		ObservedAt: now,
	}
}

func severityFrom(fields ...string) Severity {
	for _, f := range fields {
		f = strings.ToLower(f)
		switch {
		case f == "":
			continue
		case strings.Contains(f, "danger"):
			return SeverityDanger
		case strings.Contains(f, "warn"), strings.Contains(f, "susp"):
			return SeverityWarning
		case strings.Contains(f, "safe"):
			return SeveritySafe
		}
	}
	return SeverityInfo
}
