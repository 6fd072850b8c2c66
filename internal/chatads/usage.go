package chatads

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// UsageWindow is one quota-counting period.
type UsageWindow struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// UsageSummary condenses the upstream usage block into per-window counts.
type UsageSummary struct {
	Monthly       *UsageWindow `json:"monthly,omitempty"`
	Daily         *UsageWindow `json:"daily,omitempty"`
	Minute        *UsageWindow `json:"minute,omitempty"`
	IsFreeTier    bool         `json:"is_free_tier"`
	HasCreditCard bool         `json:"has_credit_card"`
}

// SummarizeUsage maps the upstream meta.usage object onto a summary. A window
// appears only when both its counters are present; a missing or non-object
// usage block, or one with no complete window, yields nil rather than a
// partial summary.
func SummarizeUsage(usage gjson.Result) *UsageSummary {
	if !usage.IsObject() {
		return nil
	}

	summary := &UsageSummary{
		IsFreeTier:    usage.Get("is_free_tier").Bool(),
		HasCreditCard: usage.Get("has_credit_card").Bool(),
	}

	if used, limit := usage.Get("monthly_requests"), usage.Get("free_tier_limit"); used.Exists() && limit.Exists() {
		window := &UsageWindow{Used: used.Int(), Limit: limit.Int()}
		if remaining := usage.Get("free_tier_remaining"); remaining.Exists() {
			window.Remaining = remaining.Int()
		} else {
			window.Remaining = clampRemaining(window.Limit - window.Used)
		}
		summary.Monthly = window
	}
	if used, limit := usage.Get("daily_requests"), usage.Get("daily_limit"); used.Exists() && limit.Exists() {
		summary.Daily = &UsageWindow{
			Used:      used.Int(),
			Limit:     limit.Int(),
			Remaining: clampRemaining(limit.Int() - used.Int()),
		}
	}
	if used, limit := usage.Get("minute_requests"), usage.Get("minute_limit"); used.Exists() && limit.Exists() {
		summary.Minute = &UsageWindow{
			Used:      used.Int(),
			Limit:     limit.Int(),
			Remaining: clampRemaining(limit.Int() - used.Int()),
		}
	}

	if summary.Monthly == nil && summary.Daily == nil && summary.Minute == nil {
		return nil
	}
	return summary
}

func clampRemaining(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Quota warning cutoffs. The monthly and daily ones mirror upstream's
// documented limits; the minute ratio is a heuristic and stays configurable.
const (
	monthlyWarnRemaining   = 10
	dailyWarnRatio         = 0.9
	defaultMinuteWarnRatio = 0.8
)

// QuotaWarnings checks each window independently and joins the warnings that
// fire with " | ". An empty string means no window is near its limit or the
// summary is nil.
func QuotaWarnings(summary *UsageSummary, minuteWarnRatio float64) string {
	if summary == nil {
		return ""
	}
	if minuteWarnRatio <= 0 || minuteWarnRatio > 1 {
		minuteWarnRatio = defaultMinuteWarnRatio
	}

	var warnings []string
	if w := summary.Monthly; w != nil && w.Limit > 0 && w.Remaining <= monthlyWarnRemaining {
		warnings = append(warnings,
			fmt.Sprintf("Monthly quota low: %d requests remaining", w.Remaining))
	}
	if w := summary.Daily; w != nil && w.Limit > 0 && float64(w.Used) >= dailyWarnRatio*float64(w.Limit) {
		percent := int(math.Round(float64(w.Used) / float64(w.Limit) * 100))
		warnings = append(warnings,
			fmt.Sprintf("Daily quota at %d%% (%d/%d)", percent, w.Used, w.Limit))
	}
	if w := summary.Minute; w != nil && w.Limit > 0 &&
		(float64(w.Used) >= minuteWarnRatio*float64(w.Limit) || w.Used == w.Limit-1) {
		warnings = append(warnings,
			fmt.Sprintf("Approaching the per-minute rate limit (%d/%d)", w.Used, w.Limit))
	}
	return strings.Join(warnings, " | ")
}
