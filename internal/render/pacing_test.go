package render

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNilPacerNeverWaits(t *testing.T) {
	var p *Pacer
	if NewPacer(0) != nil {
		t.Fatal("expected nil pacer for zero interval")
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestPacerSpacesOperations(t *testing.T) {
	p := NewPacer(20 * time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Fatalf("expected at least two intervals, got %v", elapsed)
	}
}

func TestPacerRespectsCancellation(t *testing.T) {
	p := NewPacer(time.Hour)
	_ = p.Wait(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestPacerWaitsUntilDeadline(t *testing.T) {
	p := NewPacer(time.Hour)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("Wait gave up after %v, before the deadline", elapsed)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, Backoff: time.Second, MaxBackoff: 5 * time.Second}
	want := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for attempt, expected := range want {
		if got := policy.Delay(attempt); got != expected {
			t.Fatalf("attempt %d: got %v want %v", attempt, got, expected)
		}
	}
	if (RetryPolicy{}).Delay(3) != 0 {
		t.Fatal("zero policy should not delay")
	}
}
