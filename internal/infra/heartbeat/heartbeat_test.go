package heartbeat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerFiresRepeatedly(t *testing.T) {
	var count int32
	tk := New(Config{Interval: 5 * time.Millisecond, Repeat: true}, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&count) < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", count)
	}
}

func TestTickerNonRepeatingFiresOnce(t *testing.T) {
	var count int32
	tk := New(Config{Interval: 2 * time.Millisecond, Repeat: false}, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	done := make(chan struct{})
	go func() {
		tk.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not self-stop after single fire")
	}
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("got %d fires, want exactly 1", count)
	}
}

func TestTickerStopIsIdempotent(t *testing.T) {
	tk := New(Config{Interval: time.Hour, Repeat: true}, func(context.Context) {})
	tk.Stop()
	tk.Stop() // must not panic
}
