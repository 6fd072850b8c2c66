// Package chatads implements the request pipeline between tool-calling
// callers and the ChatAds affiliate-matching API: input validation, payload
// building, a retrying HTTP client behind a per-credential circuit breaker,
// envelope normalization and quota monitoring. Every call resolves to a
// normalized Result; failures of any kind become error results rather than
// returned errors.
package chatads

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/getchatads/chatads-relay/internal/config"
	log "github.com/getchatads/chatads-relay/internal/logging"
)

// Relay sequences the pipeline stages. It is safe for concurrent use; calls
// share nothing beyond the per-credential clients and the metrics collector.
type Relay struct {
	cfg      config.ChatAdsConfig
	registry *Registry
	metrics  *MetricsCollector
	probes   singleflight.Group
}

// NewRelay wires a relay from config. metrics may be nil to disable
// instrumentation; clientOpts are applied to every client the relay creates.
func NewRelay(cfg config.ChatAdsConfig, metrics *MetricsCollector, clientOpts ...ClientOption) *Relay {
	opts := append([]ClientOption{WithMetrics(metrics)}, clientOpts...)
	return &Relay{
		cfg:      cfg,
		registry: NewRegistry(cfg, opts...),
		metrics:  metrics,
	}
}

// Registry exposes the client cache, mainly so config reloads can clear it.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Send runs one message through the pipeline and always returns a Result.
// apiKeyOverride takes precedence over the environment credential; an empty
// resolved credential yields a CONFIGURATION_ERROR result without any
// network traffic.
func (r *Relay) Send(ctx context.Context, req Request, apiKeyOverride string) Result {
	key := config.ResolveAPIKey(apiKeyOverride)

	if apiErr := ValidateRequest(req, key); apiErr != nil {
		log.Debugf("chatads request rejected locally: %s", apiErr.Code)
		return r.errorResult(apiErr)
	}

	payload := BuildPayload(req)
	client := r.registry.Get(key)

	body, status, latencyMS, err := client.Fetch(ctx, payload)
	if err != nil {
		apiErr, ok := AsAPIError(err)
		if !ok {
			apiErr = newUnavailableError(SanitizeErrorText(err.Error(), key), 0, err)
		}
		return r.errorResult(apiErr)
	}

	result := Normalize(body, status, latencyMS, client.URL())
	if notes := QuotaWarnings(result.Metadata.Usage, r.cfg.MinuteWarnRatio); notes != "" {
		result.Metadata.Notes = notes
		log.Warnf("chatads quota warning: %s", notes)
	}
	r.metrics.RecordResult(result.Status)
	log.Debugf("chatads result %s (request_id=%s status=%d latency=%.2fms)",
		result.Status, result.Metadata.RequestID, status, result.Metadata.LatencyMS)
	return result
}

// errorResult maps a typed failure onto the error result shape. Local
// failures carry no HTTP status, so their status_code is omitted from JSON.
func (r *Relay) errorResult(apiErr *APIError) Result {
	r.metrics.RecordResult(StatusError)
	return Result{
		Status:       StatusError,
		ErrorCode:    apiErr.Code,
		ErrorMessage: apiErr.Message,
		Metadata: Metadata{
			RequestID:  LocalRequestID(),
			StatusCode: apiErr.StatusCode,
		},
	}
}
