package chatads

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

const fullUsageBlock = `{
	"monthly_requests": 100,
	"free_tier_limit": 1000,
	"free_tier_remaining": 900,
	"daily_requests": 10,
	"daily_limit": 100,
	"minute_requests": 1,
	"minute_limit": 5,
	"is_free_tier": true,
	"has_credit_card": false
}`

func usageResult(raw string) gjson.Result {
	return gjson.Parse(raw)
}

func TestSummarizeUsageComplete(t *testing.T) {
	summary := SummarizeUsage(usageResult(fullUsageBlock))
	if summary == nil {
		t.Fatal("Expected a summary")
	}

	if summary.Monthly == nil || summary.Monthly.Used != 100 ||
		summary.Monthly.Limit != 1000 || summary.Monthly.Remaining != 900 {
		t.Errorf("Expected monthly 100/1000 remaining 900, got %+v", summary.Monthly)
	}
	if summary.Daily == nil || summary.Daily.Used != 10 || summary.Daily.Limit != 100 {
		t.Errorf("Expected daily 10/100, got %+v", summary.Daily)
	}
	if summary.Minute == nil || summary.Minute.Used != 1 || summary.Minute.Limit != 5 {
		t.Errorf("Expected minute 1/5, got %+v", summary.Minute)
	}
	if !summary.IsFreeTier {
		t.Error("Expected free tier flag")
	}
	if summary.HasCreditCard {
		t.Error("Expected no credit card flag")
	}
}

func TestSummarizeUsageComputesRemaining(t *testing.T) {
	raw := `{"monthly_requests": 40, "free_tier_limit": 100, "daily_requests": 120, "daily_limit": 100}`
	summary := SummarizeUsage(usageResult(raw))
	if summary == nil {
		t.Fatal("Expected a summary")
	}
	if summary.Monthly.Remaining != 60 {
		t.Errorf("Expected computed monthly remaining 60, got %d", summary.Monthly.Remaining)
	}
	// Overshooting a window never yields negative remaining.
	if summary.Daily.Remaining != 0 {
		t.Errorf("Expected clamped daily remaining 0, got %d", summary.Daily.Remaining)
	}
}

func TestSummarizeUsageRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"absent", `null`},
		{"not an object", `"not a dict"`},
		{"array", `[1, 2, 3]`},
		{"empty object", `{}`},
		{"flags only", `{"is_free_tier": true}`},
		{"half a window", `{"monthly_requests": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if summary := SummarizeUsage(usageResult(tt.raw)); summary != nil {
				t.Errorf("Expected nil summary, got %+v", summary)
			}
		})
	}
}

func TestSummarizeUsageMissingField(t *testing.T) {
	var root gjson.Result
	if summary := SummarizeUsage(root); summary != nil {
		t.Errorf("Expected nil summary for zero value, got %+v", summary)
	}
}

func TestQuotaWarningsHealthyUsage(t *testing.T) {
	summary := &UsageSummary{
		Monthly: &UsageWindow{Used: 100, Limit: 1000, Remaining: 900},
		Daily:   &UsageWindow{Used: 10, Limit: 100, Remaining: 90},
		Minute:  &UsageWindow{Used: 1, Limit: 5, Remaining: 4},
	}
	if warning := QuotaWarnings(summary, 0.8); warning != "" {
		t.Errorf("Expected no warning, got %q", warning)
	}
}

func TestQuotaWarningsMonthlyLow(t *testing.T) {
	summary := &UsageSummary{
		Monthly: &UsageWindow{Used: 995, Limit: 1000, Remaining: 5},
		Daily:   &UsageWindow{Used: 10, Limit: 100, Remaining: 90},
	}
	warning := QuotaWarnings(summary, 0.8)
	if !strings.Contains(warning, "5 requests remaining") {
		t.Errorf("Expected exact remaining count in warning, got %q", warning)
	}
}

func TestQuotaWarningsDailyHigh(t *testing.T) {
	summary := &UsageSummary{
		Daily: &UsageWindow{Used: 95, Limit: 100, Remaining: 5},
	}
	warning := QuotaWarnings(summary, 0.8)
	if !strings.Contains(warning, "95%") {
		t.Errorf("Expected percentage in warning, got %q", warning)
	}
	if !strings.Contains(warning, "Daily quota") {
		t.Errorf("Expected daily warning, got %q", warning)
	}
}

func TestQuotaWarningsMinuteApproaching(t *testing.T) {
	tests := []struct {
		name string
		used int64
		want bool
	}{
		{"at ratio", 4, true},
		{"at limit", 5, true},
		{"well under", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := &UsageSummary{Minute: &UsageWindow{Used: tt.used, Limit: 5}}
			warning := QuotaWarnings(summary, 0.8)
			if tt.want && !strings.Contains(strings.ToLower(warning), "minute") {
				t.Errorf("Expected per-minute warning, got %q", warning)
			}
			if !tt.want && warning != "" {
				t.Errorf("Expected no warning, got %q", warning)
			}
		})
	}
}

func TestQuotaWarningsNearLimitAbsolute(t *testing.T) {
	// used == limit-1 fires even when the ratio threshold is set high.
	summary := &UsageSummary{Minute: &UsageWindow{Used: 9, Limit: 10}}
	warning := QuotaWarnings(summary, 0.99)
	if !strings.Contains(strings.ToLower(warning), "minute") {
		t.Errorf("Expected near-limit warning, got %q", warning)
	}
}

func TestQuotaWarningsCombined(t *testing.T) {
	summary := &UsageSummary{
		Monthly: &UsageWindow{Used: 995, Limit: 1000, Remaining: 5},
		Daily:   &UsageWindow{Used: 95, Limit: 100, Remaining: 5},
		Minute:  &UsageWindow{Used: 4, Limit: 5, Remaining: 1},
	}
	warning := QuotaWarnings(summary, 0.8)
	if count := strings.Count(warning, " | "); count != 2 {
		t.Errorf("Expected three warnings joined by separators, got %q", warning)
	}
}

func TestQuotaWarningsNilAndZeroLimit(t *testing.T) {
	if warning := QuotaWarnings(nil, 0.8); warning != "" {
		t.Errorf("Expected no warning for nil summary, got %q", warning)
	}
	summary := &UsageSummary{Monthly: &UsageWindow{Used: 0, Limit: 0, Remaining: 0}}
	if warning := QuotaWarnings(summary, 0.8); warning != "" {
		t.Errorf("Expected no warning for zero-limit window, got %q", warning)
	}
}
