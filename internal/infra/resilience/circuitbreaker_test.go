package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, OpenDuration: time.Minute})
	cb.RecordFailure()
	if cb.State() != Closed {
		t.Fatalf("got %v, want Closed after 1 failure", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatalf("got %v, want Open after threshold", cb.State())
	}
	if cb.Allow() {
		t.Fatal("expected Allow() to refuse while Open and before OpenDuration elapses")
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewWithClock(Config{FailureThreshold: 1, OpenDuration: 10 * time.Second}, func() time.Time { return now })
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatalf("got %v, want Open", cb.State())
	}

	now = now.Add(11 * time.Second)
	if !cb.Allow() {
		t.Fatal("expected probe to be allowed after OpenDuration elapses")
	}
	if cb.State() != HalfOpen {
		t.Fatalf("got %v, want HalfOpen", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != Closed {
		t.Fatalf("got %v, want Closed after successful probe", cb.State())
	}
}

func TestCheckedCallRefusesWhenOpen(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, OpenDuration: time.Hour})
	_ = CheckedCall(cb, func() error { return errors.New("boom") })
	if cb.State() != Open {
		t.Fatalf("got %v, want Open", cb.State())
	}
	err := CheckedCall(cb, func() error { return nil })
	if !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
}

func TestQuarantineManagerEscalates(t *testing.T) {
	q := NewQuarantineManager()
	if q.IsQuarantined("dx1") {
		t.Fatal("expected dx1 not quarantined initially")
	}

	q.RecordFailure("dx1")
	if !q.IsQuarantined("dx1") {
		t.Fatal("expected dx1 quarantined after first failure")
	}
	q.AdvanceActivity()
	if q.IsQuarantined("dx1") {
		t.Fatal("expected dx1 released after 1 activity (first offense length 1)")
	}

	q.RecordFailure("dx1")
	q.AdvanceActivity()
	if !q.IsQuarantined("dx1") {
		t.Fatal("expected dx1 still quarantined after 1 activity (second offense length 2)")
	}
	q.AdvanceActivity()
	if q.IsQuarantined("dx1") {
		t.Fatal("expected dx1 released after 2 activities")
	}
}
