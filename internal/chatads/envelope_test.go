package chatads

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/getchatads/chatads-relay/internal/json"
)

const matchedEnvelope = `{
	"success": true,
	"data": {
		"matched": true,
		"ad": {
			"product": "MacBook Pro M3",
			"link": "https://amazon.com/macbook-pro",
			"category": "laptops",
			"message": "Perfect for developers!"
		},
		"reason": "exact_match: high confidence"
	},
	"meta": {"request_id": "req_abc123", "country": "US", "language": "en"}
}`

func TestNormalizeSuccessWithMatch(t *testing.T) {
	result := Normalize([]byte(matchedEnvelope), 200, 123.456, "https://api.test")

	if result.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s (%+v)", result.Status, result)
	}
	if !result.Matched {
		t.Error("Expected matched=true")
	}
	if result.Product != "MacBook Pro M3" {
		t.Errorf("Expected product, got %q", result.Product)
	}
	if result.Category != "laptops" {
		t.Errorf("Expected category, got %q", result.Category)
	}
	if result.AffiliateLink != "https://amazon.com/macbook-pro" {
		t.Errorf("Expected affiliate link, got %q", result.AffiliateLink)
	}
	if result.AffiliateMessage != "Perfect for developers!" {
		t.Errorf("Expected affiliate message, got %q", result.AffiliateMessage)
	}
	if result.ErrorCode != "" || result.Reason != "" {
		t.Errorf("Expected no error or reason on success, got %+v", result)
	}

	meta := result.Metadata
	if meta.RequestID != "req_abc123" {
		t.Errorf("Expected upstream request id, got %q", meta.RequestID)
	}
	if meta.LatencyMS != 123.46 {
		t.Errorf("Expected latency rounded to 123.46, got %v", meta.LatencyMS)
	}
	if meta.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", meta.StatusCode)
	}
	if meta.Country != "US" || meta.Language != "en" {
		t.Errorf("Expected echoed country/language, got %q/%q", meta.Country, meta.Language)
	}
}

func TestNormalizeNoMatch(t *testing.T) {
	body := `{
		"success": true,
		"data": {"matched": false, "reason": "no_match: insufficient context"},
		"meta": {"request_id": "req_xyz789"}
	}`
	result := Normalize([]byte(body), 200, 50.0, "https://api.test")

	if result.Status != StatusNoMatch {
		t.Fatalf("Expected no_match, got %s", result.Status)
	}
	if result.Matched {
		t.Error("Expected matched=false")
	}
	if result.Reason != "No match: insufficient context" {
		t.Errorf("Expected normalized reason, got %q", result.Reason)
	}
	if result.Product != "" {
		t.Errorf("Expected no offer fields, got %q", result.Product)
	}
}

func TestNormalizeReasonRules(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"colon", "no_match: insufficient data", "No match: insufficient data"},
		{"no colon passes through", "fallback_used", "fallback_used"},
		{"empty", "", ""},
		{"multiple colons", "error: failed: retry", "Error: failed: retry"},
		{"whitespace", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeReason(tt.reason); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeErrorEnvelope(t *testing.T) {
	body := `{
		"success": false,
		"error": {"code": "QUOTA_EXCEEDED", "message": "Monthly quota reached"},
		"meta": {"request_id": "req_quota123"}
	}`
	result := Normalize([]byte(body), 429, 50.0, "https://api.test")

	if result.Status != StatusError {
		t.Fatalf("Expected error, got %s", result.Status)
	}
	if result.ErrorCode != "QUOTA_EXCEEDED" {
		t.Errorf("Expected upstream code, got %q", result.ErrorCode)
	}
	// The upstream message is informative and wins over the friendly hint.
	if result.ErrorMessage != "Monthly quota reached" {
		t.Errorf("Expected upstream message, got %q", result.ErrorMessage)
	}
	if result.Metadata.StatusCode != 429 {
		t.Errorf("Expected status 429, got %d", result.Metadata.StatusCode)
	}
}

func TestNormalizeErrorHints(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
		want string
	}{
		{
			"known code without message gets a hint",
			`{"success": false, "error": {"code": "UNAUTHORIZED"}}`,
			"UNAUTHORIZED",
			"API key is missing",
		},
		{
			"unknown code without message gets the generic text",
			`{"success": false, "error": {"code": "SOMETHING_NEW"}}`,
			"SOMETHING_NEW",
			"ChatAds could not process this request",
		},
		{
			"missing error object defaults entirely",
			`{"success": false}`,
			CodeUpstreamError,
			"ChatAds could not process this request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize([]byte(tt.body), 401, 10.0, "https://api.test")
			if result.Status != StatusError {
				t.Fatalf("Expected error, got %s", result.Status)
			}
			if result.ErrorCode != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, result.ErrorCode)
			}
			if !strings.Contains(result.ErrorMessage, tt.want) {
				t.Errorf("Expected message containing %q, got %q", tt.want, result.ErrorMessage)
			}
		})
	}
}

func TestNormalizeNon2xxWinsOverSuccessFlag(t *testing.T) {
	// A 5xx with a success-shaped body is still an error.
	result := Normalize([]byte(matchedEnvelope), 502, 10.0, "https://api.test")
	if result.Status != StatusError {
		t.Errorf("Expected error for 502, got %s", result.Status)
	}
	if result.ErrorCode != CodeUpstreamError {
		t.Errorf("Expected UPSTREAM_ERROR, got %s", result.ErrorCode)
	}
}

func TestNormalizeUnrecognizedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>bad gateway</html>`},
		{"empty body", ``},
		{"data is not an object", `{"success": true, "data": "yes"}`},
		{"matched without ad", `{"success": true, "data": {"matched": true}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize([]byte(tt.body), 200, 10.0, "https://api.test")
			if result.Status != StatusError {
				t.Fatalf("Expected error, got %s", result.Status)
			}
			if result.ErrorCode != CodeUpstreamError {
				t.Errorf("Expected UPSTREAM_ERROR, got %s", result.ErrorCode)
			}
			if result.ErrorMessage != genericUpstreamText {
				t.Errorf("Expected generic message, got %q", result.ErrorMessage)
			}
		})
	}
}

func TestNormalizeGeneratesLocalRequestID(t *testing.T) {
	body := `{"success": true, "data": {"matched": false}, "meta": {}}`
	result := Normalize([]byte(body), 200, 10.0, "https://api.test")

	if !strings.HasPrefix(result.Metadata.RequestID, "local-") {
		t.Errorf("Expected locally generated request id, got %q", result.Metadata.RequestID)
	}

	other := Normalize([]byte(body), 200, 10.0, "https://api.test")
	if other.Metadata.RequestID == result.Metadata.RequestID {
		t.Error("Expected fresh id per call")
	}
}

func TestNormalizeSanitizesUpstreamErrorText(t *testing.T) {
	body := `{"success": false, "error": {"code": "BAD_REQUEST", "message": "missing x-api-key header"}}`
	result := Normalize([]byte(body), 400, 10.0, "https://api.test")

	if result.ErrorMessage != RedactedErrorText {
		t.Errorf("Expected redacted message, got %q", result.ErrorMessage)
	}
}

func TestResultJSONShape(t *testing.T) {
	success := Normalize([]byte(matchedEnvelope), 200, 100.0, "https://api.test")
	data, err := json.Marshal(success)
	if err != nil {
		t.Fatalf("Expected marshal to succeed, got %v", err)
	}
	root := gjson.ParseBytes(data)
	for _, key := range []string{"status", "matched", "product", "affiliate_link", "metadata.request_id", "metadata.latency_ms", "metadata.status_code"} {
		if !root.Get(key).Exists() {
			t.Errorf("Expected key %s in %s", key, data)
		}
	}
	for _, key := range []string{"error_code", "error_message", "reason", "metadata.notes"} {
		if root.Get(key).Exists() {
			t.Errorf("Expected key %s to be omitted in %s", key, data)
		}
	}

	local := Result{
		Status:       StatusError,
		ErrorCode:    CodeInvalidInput,
		ErrorMessage: "Invalid IP address",
		Metadata:     Metadata{RequestID: "local-test", LatencyMS: 0},
	}
	data, err = json.Marshal(local)
	if err != nil {
		t.Fatalf("Expected marshal to succeed, got %v", err)
	}
	root = gjson.ParseBytes(data)
	if root.Get("metadata.status_code").Exists() {
		t.Errorf("Expected status_code omitted for local errors, got %s", data)
	}
	if !root.Get("metadata.latency_ms").Exists() {
		t.Errorf("Expected latency_ms always present, got %s", data)
	}
	if root.Get("error_code").String() != CodeInvalidInput {
		t.Errorf("Expected error_code, got %s", data)
	}
}
