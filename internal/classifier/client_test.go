package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harees/navguard/internal/agent"
	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/verdict"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, logging.NewNop())
}

func TestCheckSafe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)

		var req struct {
			URL         string         `json:"url"`
			PageSignals *agent.Signals `json:"pageSignals"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "http://example.com", req.URL)
		assert.Nil(t, req.PageSignals)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "Safe", "color": "safe"})
	})

	v := c.Check(context.Background(), "http://example.com", nil)
	assert.Equal(t, verdict.SeveritySafe, v.Severity)
	assert.Equal(t, "http://example.com", v.URL)
	assert.False(t, v.ObservedAt.IsZero())
}

func TestCheckDangerWithSignals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PageSignals *agent.Signals `json:"pageSignals"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.PageSignals)
		assert.Equal(t, "bad.example", req.PageSignals.Hostname)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"color":  "danger",
			"reason": "known phishing kit",
			"score":  0.97,
		})
	})

	signals := &agent.Signals{Hostname: "bad.example", Title: "Totally Real Bank"}
	v := c.Check(context.Background(), "http://bad.example", signals)

	assert.Equal(t, verdict.SeverityDanger, v.Severity)
	assert.Equal(t, "known phishing kit", v.Reason)
	require.NotNil(t, v.Score)
	assert.Equal(t, 0.97, *v.Score)
}

func TestCheckTransportFailureFallsBack(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond}, logging.NewNop())

	v := c.Check(context.Background(), "http://example.com", nil)
	assert.Equal(t, verdict.SeverityWarning, v.Severity)
	assert.Equal(t, "classifier unreachable", v.Reason)
	assert.Equal(t, "http://example.com", v.URL)
}

func TestCheckHTTPErrorFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "kaboom", http.StatusInternalServerError)
	})

	v := c.Check(context.Background(), "http://example.com", nil)
	assert.Equal(t, verdict.SeverityWarning, v.Severity)
	assert.Equal(t, "classifier unreachable", v.Reason)
}

func TestBreakerShortCircuitsAfterRepeatedFailures(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	})

	for i := 0; i < 10; i++ {
		c.Check(context.Background(), "http://example.com", nil)
	}

	// After the breaker trips, checks stop reaching the wire but still
	// return fallback verdicts.
	assert.Less(t, calls, 10)
	v := c.Check(context.Background(), "http://example.com", nil)
	assert.Equal(t, verdict.SeverityWarning, v.Severity)
}
