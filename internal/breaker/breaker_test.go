package breaker

import (
	"testing"
	"time"
)

func TestBreakerTripsAfterThresholdFailures(t *testing.T) {
	t.Parallel()
	b := New(Config{FailureThreshold: 3, TriggerWindow: time.Minute, OpenDuration: time.Minute, HalfOpenSuccessesToClose: 2})
	now := time.Now()
	if s := b.Trigger(now); s != StateClosed {
		t.Fatalf("after 1 failure got %s, want CLOSED", s)
	}
	if s := b.Trigger(now); s != StateClosed {
		t.Fatalf("after 2 failures got %s, want CLOSED", s)
	}
	if s := b.Trigger(now); s != StateOpen {
		t.Fatalf("after 3 failures got %s, want OPEN", s)
	}
}

func TestBreakerFailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	t.Parallel()
	b := New(Config{FailureThreshold: 2, TriggerWindow: time.Second, OpenDuration: time.Minute, HalfOpenSuccessesToClose: 1})
	base := time.Now()
	b.Trigger(base)
	if s := b.Trigger(base.Add(2 * time.Second)); s != StateClosed {
		t.Fatalf("got %s, want CLOSED since first failure aged out of the window", s)
	}
}

func TestBreakerTransitionsToHalfOpenAfterOpenDuration(t *testing.T) {
	t.Parallel()
	b := New(Config{FailureThreshold: 1, TriggerWindow: time.Minute, OpenDuration: 20 * time.Millisecond, HalfOpenSuccessesToClose: 1})
	b.Trigger(time.Now())
	if s := b.State(); s != StateOpen {
		t.Fatalf("got %s, want OPEN immediately after trip", s)
	}
	time.Sleep(30 * time.Millisecond)
	if s := b.State(); s != StateHalfOpen {
		t.Fatalf("got %s, want HALF_OPEN after open duration elapses", s)
	}
}

func TestBreakerClosesAfterEnoughHalfOpenSuccesses(t *testing.T) {
	t.Parallel()
	b := New(Config{FailureThreshold: 1, TriggerWindow: time.Minute, OpenDuration: 10 * time.Millisecond, HalfOpenSuccessesToClose: 2})
	b.Trigger(time.Now())
	time.Sleep(15 * time.Millisecond)
	if s := b.State(); s != StateHalfOpen {
		t.Fatalf("got %s, want HALF_OPEN", s)
	}
	b.RecordSuccess()
	if s := b.State(); s != StateHalfOpen {
		t.Fatalf("got %s, want still HALF_OPEN after only one success", s)
	}
	if s := b.RecordSuccess(); s != StateClosed {
		t.Fatalf("got %s, want CLOSED after enough successes", s)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	b := New(Config{FailureThreshold: 1, TriggerWindow: time.Minute, OpenDuration: 10 * time.Millisecond, HalfOpenSuccessesToClose: 2})
	b.Trigger(time.Now())
	time.Sleep(15 * time.Millisecond)
	if s := b.State(); s != StateHalfOpen {
		t.Fatalf("got %s, want HALF_OPEN", s)
	}
	if s := b.Trigger(time.Now()); s != StateOpen {
		t.Fatalf("got %s, want OPEN again after a half-open failure", s)
	}
}

func TestBreakerResetForcesClosed(t *testing.T) {
	t.Parallel()
	b := New(Config{FailureThreshold: 1, TriggerWindow: time.Minute, OpenDuration: time.Minute, HalfOpenSuccessesToClose: 1})
	b.Trigger(time.Now())
	if s := b.State(); s != StateOpen {
		t.Fatalf("got %s, want OPEN", s)
	}
	b.Reset()
	if s := b.State(); s != StateClosed {
		t.Fatalf("got %s, want CLOSED after reset", s)
	}
}
