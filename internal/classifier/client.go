// Package classifier talks to the remote risk classifier. The classifier is
// a black box reachable over HTTP; its failures are never surfaced as
// errors, only as fallback verdicts.
package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/harees/navguard/internal/agent"
	"github.com/harees/navguard/internal/logging"
	"github.com/harees/navguard/internal/resilience"
	"github.com/harees/navguard/internal/verdict"
)

// Config holds classifier client configuration.
type Config struct {
	// BaseURL of the classifier service, e.g. "http://127.0.0.1:5000".
	BaseURL string
	// Timeout per request. Zero disables the timeout: a hung classifier
	// then stalls only that navigation's sequence, never other tabs.
	Timeout time.Duration
	// RequestsPerSecond limits outbound calls. Zero means unlimited.
	RequestsPerSecond float64
}

// analyzeRequest is the wire body of POST /analyze.
type analyzeRequest struct {
	URL         string         `json:"url"`
	PageSignals *agent.Signals `json:"pageSignals"`
}

// Client is the HTTP classifier client. All failure paths degrade to the
// fallback verdict.
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
	limiter *rate.Limiter
	log     *logging.Logger
	baseURL string
}

// New creates a classifier client with transport-level retries and a
// circuit breaker in front of the endpoint.
func New(cfg Config, log *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "NavGuard/1.0").
		SetHeader("Content-Type", "application/json")
	httpClient.SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &Client{
		http:    httpClient,
		breaker: resilience.New(resilience.Settings{FailureThreshold: 5, Cooldown: 30 * time.Second}),
		limiter: limiter,
		log:     log,
		baseURL: cfg.BaseURL,
	}
}

// Check classifies a URL with optional page signals. It always returns a
// verdict: transport failures, bad statuses, undecodable bodies, and an
// open breaker all map to the fallback.
func (c *Client) Check(ctx context.Context, url string, signals *agent.Signals) verdict.Verdict {
	resp, err := c.analyze(ctx, url, signals)
	if err != nil {
		c.log.Warn("classifier unreachable, using fallback verdict",
			zap.String("url", url),
			zap.Error(err))
		return verdict.Fallback(url, time.Now())
	}
	return verdict.Normalize(*resp, url, time.Now())
}

func (c *Client) analyze(ctx context.Context, url string, signals *agent.Signals) (*verdict.RemoteResponse, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.breaker.Record(err)
		return nil, err
	}

	var remote verdict.RemoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(analyzeRequest{URL: url, PageSignals: signals}).
		SetResult(&remote).
		Post(c.baseURL + "/analyze")

	switch {
	case err != nil:
		c.breaker.Record(err)
		return nil, fmt.Errorf("call classifier: %w", err)
	case resp.IsError():
		httpErr := fmt.Errorf("classifier returned %s", resp.Status())
		c.breaker.Record(httpErr)
		return nil, httpErr
	}

	c.breaker.Record(nil)
	return &remote, nil
}
