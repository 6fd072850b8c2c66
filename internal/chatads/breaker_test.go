package chatads

import (
	"testing"
	"time"
)

// newTestBreaker returns a breaker plus a function that advances its clock.
func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, func(time.Duration)) {
	current := time.Unix(1700000000, 0)
	b := NewBreaker(threshold, cooldown)
	b.now = func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return b, advance
}

func TestBreakerInitialState(t *testing.T) {
	b := NewBreaker(3, 10*time.Second)
	if b.State() != StateClosed {
		t.Errorf("Expected closed, got %s", b.State())
	}
	if !b.Available() {
		t.Error("Expected new breaker to be available")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Errorf("Expected closed below threshold, got %s", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("Expected open at threshold, got %s", b.State())
	}
	if b.Available() {
		t.Error("Expected open breaker to reject calls")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// The counter restarted, so two more failures must not open the breaker.
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Errorf("Expected closed after reset, got %s", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("Expected open after three consecutive failures, got %s", b.State())
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b, advance := newTestBreaker(2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	if b.Available() {
		t.Fatal("Expected open breaker to reject before cooldown")
	}

	advance(9 * time.Second)
	if b.Available() {
		t.Error("Expected breaker to stay open inside the cooldown window")
	}

	advance(1 * time.Second)
	if !b.Available() {
		t.Error("Expected trial call after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("Expected half_open after cooldown check, got %s", b.State())
	}
}

func TestBreakerHalfOpenClosesOnSuccess(t *testing.T) {
	b, advance := newTestBreaker(2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	advance(10 * time.Second)
	b.Available()

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("Expected closed after half-open success, got %s", b.State())
	}
	if !b.Available() {
		t.Error("Expected closed breaker to be available")
	}
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	b, advance := newTestBreaker(2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	advance(10 * time.Second)
	b.Available()

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("Expected open after half-open failure, got %s", b.State())
	}

	// The failure restarted the cooldown window.
	advance(9 * time.Second)
	if b.Available() {
		t.Error("Expected reopened breaker to reject inside the new cooldown")
	}
	advance(1 * time.Second)
	if !b.Available() {
		t.Error("Expected trial call after the restarted cooldown")
	}
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("Expected open, got %s", b.State())
	}
	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("Expected closed after reset, got %s", b.State())
	}
	if !b.Available() {
		t.Error("Expected reset breaker to be available")
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker(0, 0)
	if b.failureThreshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", b.failureThreshold)
	}
	if b.cooldown != 30*time.Second {
		t.Errorf("Expected default cooldown 30s, got %s", b.cooldown)
	}
}

func TestBreakerStateStrings(t *testing.T) {
	tests := []struct {
		state BreakerState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
		{BreakerState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}
