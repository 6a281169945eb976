package verdict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSeverityRules(t *testing.T) {
	tests := []struct {
		name string
		resp RemoteResponse
		want Severity
	}{
		{"danger color", RemoteResponse{Color: "danger"}, SeverityDanger},
		{"danger uppercase", RemoteResponse{Color: "DANGER"}, SeverityDanger},
		{"danger embedded", RemoteResponse{Status: "Very Dangerous Site"}, SeverityDanger},
		{"warning", RemoteResponse{Color: "warning"}, SeverityWarning},
		{"suspicious maps to warning", RemoteResponse{Status: "Suspicious"}, SeverityWarning},
		{"safe", RemoteResponse{Color: "safe"}, SeveritySafe},
		{"unknown maps to info", RemoteResponse{Color: "blue"}, SeverityInfo},
		{"empty maps to info", RemoteResponse{}, SeverityInfo},
		{"color beats level", RemoteResponse{Color: "safe", Level: "danger"}, SeveritySafe},
		{"color beats status", RemoteResponse{Color: "danger", Status: "Safe"}, SeverityDanger},
		{"level beats status", RemoteResponse{Level: "warning", Status: "safe"}, SeverityWarning},
		{"unmatched color falls through", RemoteResponse{Color: "blue", Level: "danger"}, SeverityDanger},
		{"empty color falls through", RemoteResponse{Color: "", Status: "danger"}, SeverityDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Normalize(tt.resp, "https://example.com", time.Now())
			assert.Equal(t, tt.want, v.Severity)
		})
	}
}

func TestNormalizeStampsFields(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	score := 0.83
	v := Normalize(RemoteResponse{
		Status: "Dangerous",
		Color:  "danger",
		Reason: "known phishing kit",
		Score:  &score,
	}, "http://example.com", now)

	assert.Equal(t, "http://example.com", v.URL)
	assert.Equal(t, SeverityDanger, v.Severity)
	assert.Equal(t, "Dangerous", v.RawStatus)
	assert.Equal(t, "known phishing kit", v.Reason)
	require.NotNil(t, v.Score)
	assert.Equal(t, 0.83, *v.Score)
	assert.Equal(t, now, v.ObservedAt)
}

func TestNormalizeSanitizesReason(t *testing.T) {
	v := Normalize(RemoteResponse{
		Color:  "danger",
		Reason: `<script>alert(1)</script>known <b>phishing</b> kit`,
	}, "http://example.com", time.Now())

	assert.Equal(t, "known phishing kit", v.Reason)
}

func TestFallback(t *testing.T) {
	now := time.Now()
	v := Fallback("https://example.com", now)

	assert.Equal(t, SeverityWarning, v.Severity)
	assert.Equal(t, "classifier unreachable", v.Reason)
	assert.Equal(t, "Server Offline", v.RawStatus)
	assert.Nil(t, v.Score)
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeveritySafe, ParseSeverity("safe"))
	assert.Equal(t, SeverityDanger, ParseSeverity(" DANGER "))
	assert.Equal(t, SeverityInfo, ParseSeverity("whatever"))
}
