package chatads

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/getchatads/chatads-relay/internal/config"
	log "github.com/getchatads/chatads-relay/internal/logging"
)

// credentialHeader is the only place the API key ever appears on the wire.
const credentialHeader = "x-api-key"

// Client posts payloads to the ChatAds API with per-attempt timeouts,
// exponential backoff and an optional circuit breaker. One client serves one
// credential; the registry hands out and reuses instances.
type Client struct {
	key       string
	maskedKey string
	url       string
	cfg       config.ChatAdsConfig

	httpClient *http.Client
	breaker    *Breaker
	metrics    *MetricsCollector

	// sleep is swappable so retry tests run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOption customizes a Client beyond its config.
type ClientOption func(*Client)

// WithBreaker replaces the breaker built from config, or disables gating when
// passed nil.
func WithBreaker(b *Breaker) ClientOption {
	return func(c *Client) { c.breaker = b }
}

// WithMetrics attaches a collector; a nil collector records nothing.
func WithMetrics(m *MetricsCollector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithSleep replaces the inter-attempt delay function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for one credential. The per-attempt timeout comes
// from cfg; the breaker is created from cfg when enabled.
func NewClient(key string, cfg config.ChatAdsConfig, opts ...ClientOption) *Client {
	c := &Client{
		key:       key,
		maskedKey: log.MaskCredential(key),
		url:       cfg.URL(),
		cfg:       cfg,
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   cfg.Timeout(),
		},
		sleep: sleepContext,
	}
	if cfg.CircuitBreaker.Enabled {
		c.breaker = NewBreaker(cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.Cooldown())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the upstream endpoint this client posts to.
func (c *Client) URL() string {
	return c.url
}

// BreakerState returns the breaker's current state; closed when no breaker is
// configured so callers need not special-case disabled gating.
func (c *Client) BreakerState() BreakerState {
	if c.breaker == nil {
		return StateClosed
	}
	return c.breaker.State()
}

// BreakerEnabled reports whether calls go through a breaker gate.
func (c *Client) BreakerEnabled() bool {
	return c.breaker != nil
}

// Fetch posts payload to the upstream endpoint. Transport failures and 5xx
// responses are retried up to the configured total attempt count with
// exponential backoff; every other status is returned to the caller together
// with the decoded body. The returned error, when non-nil, is always an
// *APIError with sanitized text.
func (c *Client) Fetch(ctx context.Context, payload []byte) ([]byte, int, float64, error) {
	if c.breaker != nil && !c.breaker.Available() {
		c.metrics.RecordBreakerState(c.maskedKey, c.breaker.State())
		log.Warnf("chatads call rejected for %s: circuit breaker open", c.maskedKey)
		return nil, 0, 0, newUnavailableError(
			"ChatAds is temporarily unavailable: circuit breaker is open", 0, nil)
	}

	maxAttempts := c.cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.RecordRetry(strconv.Itoa(attempt))
		}
		attempts = attempt

		body, status, latencyMS, err := c.attempt(ctx, payload)
		if err == nil && status < 500 {
			if status >= 200 && status < 300 {
				c.recordSuccess()
			}
			return body, status, latencyMS, nil
		}

		if err == nil {
			lastErr = fmt.Errorf("upstream returned HTTP %d", status)
		} else {
			lastErr = err
		}
		c.recordFailure()
		log.Warnf("chatads attempt %d/%d for %s failed: %s",
			attempt, maxAttempts, c.maskedKey, SanitizeErrorText(lastErr.Error(), c.key))

		if attempt == maxAttempts {
			break
		}
		delay := backoffDelay(c.cfg.BackoffBase(), attempt)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	message := fmt.Sprintf("ChatAds is temporarily unavailable: %s",
		SanitizeErrorText(lastErr.Error(), c.key))
	return nil, 0, 0, newUnavailableError(message, attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, payload []byte) ([]byte, int, float64, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set(credentialHeader, c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		c.metrics.RecordAttempt("error", elapsed)
		return nil, 0, elapsedMS(elapsed), err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	elapsed := time.Since(start)
	c.metrics.RecordAttempt(strconv.Itoa(resp.StatusCode), elapsed)
	if err != nil {
		return nil, resp.StatusCode, elapsedMS(elapsed), err
	}
	return body, resp.StatusCode, elapsedMS(elapsed), nil
}

func (c *Client) recordSuccess() {
	if c.breaker == nil {
		return
	}
	c.breaker.RecordSuccess()
	c.metrics.RecordBreakerState(c.maskedKey, c.breaker.State())
}

func (c *Client) recordFailure() {
	if c.breaker == nil {
		return
	}
	c.breaker.RecordFailure()
	c.metrics.RecordBreakerState(c.maskedKey, c.breaker.State())
}

// backoffDelay returns base * 2^(attempt-1) for the 1-based attempt that just
// failed.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return base * time.Duration(1<<uint(attempt-1))
}

// sleepContext waits for d or until ctx is cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func elapsedMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
