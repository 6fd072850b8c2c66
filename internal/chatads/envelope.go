package chatads

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	log "github.com/getchatads/chatads-relay/internal/logging"
)

// Result status values. Every relay call resolves to exactly one of them.
const (
	StatusSuccess = "success"
	StatusNoMatch = "no_match"
	StatusError   = "error"
)

// Result is the normalized outcome of one relay call. The offer fields are
// set only for success, Reason only for no_match, the error pair only for
// error. Metadata is always present.
type Result struct {
	Status           string   `json:"status"`
	Matched          bool     `json:"matched"`
	Product          string   `json:"product,omitempty"`
	Category         string   `json:"category,omitempty"`
	AffiliateLink    string   `json:"affiliate_link,omitempty"`
	AffiliateMessage string   `json:"affiliate_message,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	ErrorCode        string   `json:"error_code,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	Metadata         Metadata `json:"metadata"`
}

// Metadata describes the exchange behind a result. StatusCode is zero, and
// therefore absent from JSON, when the failure happened before any exchange.
type Metadata struct {
	RequestID  string        `json:"request_id"`
	LatencyMS  float64       `json:"latency_ms"`
	StatusCode int           `json:"status_code,omitempty"`
	Country    string        `json:"country,omitempty"`
	Language   string        `json:"language,omitempty"`
	Usage      *UsageSummary `json:"usage_summary,omitempty"`
	Notes      string        `json:"notes,omitempty"`
}

// genericUpstreamText covers error envelopes with no usable code or message.
const genericUpstreamText = "ChatAds could not process this request. Please try again later."

// friendlyHints replace empty upstream error messages for known codes. A
// non-empty upstream message always wins over the hint.
var friendlyHints = map[string]string{
	"UNAUTHORIZED": "Your ChatAds API key is missing or invalid. Check the " +
		"x-api-key header configuration.",
	"FORBIDDEN":      "Your ChatAds API key was rejected. Verify the key is active.",
	"QUOTA_EXCEEDED": "Your monthly ChatAds quota is exhausted. Upgrade the plan or wait for the window to reset.",
	"RATE_LIMITED":   "Too many requests in a short window. Slow down and retry.",
}

// Normalize converts a raw upstream envelope plus transport facts into a
// Result. It never fails; unrecognized shapes collapse into the error variant
// with a generic message.
func Normalize(body []byte, statusCode int, latencyMS float64, sourceURL string) Result {
	root := gjson.ParseBytes(body)
	meta := buildMetadata(root.Get("meta"), statusCode, latencyMS)

	success := root.Get("success")
	if statusCode < 200 || statusCode >= 300 || (success.Exists() && !success.Bool()) {
		code := strings.TrimSpace(root.Get("error.code").String())
		if code == "" {
			code = CodeUpstreamError
		}
		message := errorMessage(code, root.Get("error.message").String())
		log.Debugf("chatads error envelope from %s: status=%d code=%s", sourceURL, statusCode, code)
		return Result{Status: StatusError, ErrorCode: code, ErrorMessage: message, Metadata: meta}
	}

	data := root.Get("data")
	if !data.IsObject() {
		log.Debugf("chatads envelope from %s has no data object (status=%d)", sourceURL, statusCode)
		return Result{
			Status:       StatusError,
			ErrorCode:    CodeUpstreamError,
			ErrorMessage: genericUpstreamText,
			Metadata:     meta,
		}
	}

	if !data.Get("matched").Bool() {
		return Result{
			Status:   StatusNoMatch,
			Reason:   normalizeReason(data.Get("reason").String()),
			Metadata: meta,
		}
	}

	ad := data.Get("ad")
	if !ad.IsObject() {
		log.Debugf("chatads envelope from %s claims a match without an ad object", sourceURL)
		return Result{
			Status:       StatusError,
			ErrorCode:    CodeUpstreamError,
			ErrorMessage: genericUpstreamText,
			Metadata:     meta,
		}
	}
	return Result{
		Status:           StatusSuccess,
		Matched:          true,
		Product:          ad.Get("product").String(),
		Category:         ad.Get("category").String(),
		AffiliateLink:    ad.Get("link").String(),
		AffiliateMessage: ad.Get("message").String(),
		Metadata:         meta,
	}
}

func buildMetadata(meta gjson.Result, statusCode int, latencyMS float64) Metadata {
	requestID := strings.TrimSpace(meta.Get("request_id").String())
	if requestID == "" {
		requestID = LocalRequestID()
	}
	md := Metadata{
		RequestID:  requestID,
		LatencyMS:  round2(latencyMS),
		StatusCode: statusCode,
		Country:    meta.Get("country").String(),
		Language:   meta.Get("language").String(),
	}
	md.Usage = SummarizeUsage(meta.Get("usage"))
	return md
}

// errorMessage picks the upstream message when it carries information,
// otherwise a friendly hint for known codes, otherwise the generic fallback.
// Upstream text is scanned for credential-shaped content before use; the
// hints themselves are trusted and never scanned.
func errorMessage(code, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		return SanitizeErrorText(raw, "")
	}
	if hint, ok := friendlyHints[code]; ok {
		return hint
	}
	return genericUpstreamText
}

// normalizeReason rewrites machine reasons like "no_match: insufficient
// context" into "No match: insufficient context". Everything after the first
// colon is kept verbatim; a reason without a colon passes through unchanged.
func normalizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ""
	}
	head, tail, found := strings.Cut(reason, ":")
	if !found {
		return reason
	}
	head = strings.ReplaceAll(head, "_", " ")
	return capitalize(head) + ":" + tail
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}

// LocalRequestID marks results whose request never produced an upstream id.
func LocalRequestID() string {
	return "local-" + uuid.NewString()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
