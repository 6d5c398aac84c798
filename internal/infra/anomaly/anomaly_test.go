package anomaly

import (
	"testing"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

func TestRecordFlagsFlapping(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewWithClock(Config{WindowSize: 10, MaxTransitions: 3, MaxSilence: time.Minute}, func() time.Time { return clock })

	healthy := []bool{true, false, true, false, true}
	var last Verdict
	for _, h := range healthy {
		clock = clock.Add(time.Second)
		last = d.Record("dx1", domain.Status{Healthy: h})
	}
	if !last.Flagged || last.Reason != "flapping" {
		t.Fatalf("expected flapping verdict, got %+v", last)
	}
}

func TestRecordDoesNotFlagStableHistory(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewWithClock(DefaultConfig(), func() time.Time { return clock })

	var last Verdict
	for i := 0; i < 8; i++ {
		clock = clock.Add(time.Second)
		last = d.Record("dx1", domain.Status{Healthy: true})
	}
	if last.Flagged {
		t.Fatalf("expected no anomaly on a stable history, got %+v", last)
	}
}

func TestRecordFlagsStaleGap(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewWithClock(Config{WindowSize: 10, MaxTransitions: 100, MaxSilence: 5 * time.Second}, func() time.Time { return clock })

	d.Record("dx1", domain.Status{Healthy: true})
	clock = clock.Add(time.Minute)
	verdict := d.Record("dx1", domain.Status{Healthy: true})
	if !verdict.Flagged || verdict.Reason != "stale" {
		t.Fatalf("expected stale verdict after long silence, got %+v", verdict)
	}
}

func TestForgetResetsHistory(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewWithClock(Config{WindowSize: 10, MaxTransitions: 1, MaxSilence: time.Minute}, func() time.Time { return clock })

	d.Record("dx1", domain.Status{Healthy: true})
	clock = clock.Add(time.Second)
	d.Record("dx1", domain.Status{Healthy: false})
	d.Forget("dx1")

	if _, ok := d.LastSeen("dx1"); ok {
		t.Fatal("expected history cleared after Forget")
	}

	clock = clock.Add(time.Second)
	verdict := d.Record("dx1", domain.Status{Healthy: true})
	if verdict.Flagged {
		t.Fatalf("expected fresh history after Forget, got %+v", verdict)
	}
}
