package chatads

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/getchatads/chatads-relay/internal/config"
	log "github.com/getchatads/chatads-relay/internal/logging"
)

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// healthProbeMessage is the minimal valid payload for a probe call.
const healthProbeMessage = "health check"

// HealthStatus reports upstream reachability as seen from this process.
type HealthStatus struct {
	Status              string  `json:"status"`
	APIReachable        bool    `json:"api_reachable"`
	CircuitBreakerState string  `json:"circuit_breaker_state"`
	LatencyMS           float64 `json:"latency_ms,omitempty"`
	ErrorCode           string  `json:"error_code,omitempty"`
	ErrorMessage        string  `json:"error_message,omitempty"`
}

// Health probes the upstream API with a minimal message. A 2xx answer is
// healthy, any answered non-2xx is degraded (the API is reachable but
// rejecting), and transport-level failure or an open breaker is unhealthy.
// Concurrent calls share one probe through singleflight.
func (r *Relay) Health(ctx context.Context) HealthStatus {
	v, _, _ := r.probes.Do("probe", func() (any, error) {
		return r.probe(ctx), nil
	})
	return v.(HealthStatus)
}

func (r *Relay) probe(ctx context.Context) HealthStatus {
	key := config.ResolveAPIKey("")
	if key == "" {
		state := "disabled"
		if r.cfg.CircuitBreaker.Enabled {
			state = StateClosed.String()
		}
		return HealthStatus{
			Status:              HealthUnhealthy,
			APIReachable:        false,
			CircuitBreakerState: state,
			ErrorCode:           CodeConfigurationError,
			ErrorMessage:        MissingCredentialText,
		}
	}

	client := r.registry.Get(key)
	body, status, latencyMS, err := client.Fetch(ctx, BuildPayload(Request{Message: healthProbeMessage}))

	health := HealthStatus{CircuitBreakerState: breakerStateLabel(client)}
	switch {
	case err != nil:
		apiErr, ok := AsAPIError(err)
		if !ok {
			apiErr = newUnavailableError(SanitizeErrorText(err.Error(), key), 0, err)
		}
		health.Status = HealthUnhealthy
		health.APIReachable = false
		health.ErrorCode = apiErr.Code
		health.ErrorMessage = apiErr.Message
		log.Warnf("chatads health probe failed: %s", apiErr.Code)
	case status >= 200 && status < 300:
		health.Status = HealthHealthy
		health.APIReachable = true
		health.LatencyMS = round2(latencyMS)
	default:
		root := gjson.ParseBytes(body)
		code := root.Get("error.code").String()
		if code == "" {
			code = CodeUpstreamError
		}
		health.Status = HealthDegraded
		health.APIReachable = true
		health.LatencyMS = round2(latencyMS)
		health.ErrorCode = code
		health.ErrorMessage = errorMessage(code, root.Get("error.message").String())
		log.Warnf("chatads health probe degraded: status=%d code=%s", status, code)
	}
	return health
}

func breakerStateLabel(client *Client) string {
	if !client.BreakerEnabled() {
		return "disabled"
	}
	return client.BreakerState().String()
}
