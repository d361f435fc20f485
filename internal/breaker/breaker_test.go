package breaker

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{Threshold: 3, OpenTimeout: 20 * time.Millisecond, MaxLatency: 100 * time.Millisecond}
}

func TestClosedToOpenAtThreshold(t *testing.T) {
	b := New(testConfig())
	for i := 0; i < 2; i++ {
		if b.ShouldTrip(200 * time.Millisecond) {
			t.Fatalf("tripped early at failure %d", i+1)
		}
	}
	if !b.ShouldTrip(200 * time.Millisecond) {
		t.Fatal("expected breaker to trip open at threshold")
	}
	if b.State() != Open {
		t.Fatalf("expected state Open, got %s", b.State())
	}
}

func TestOpenToHalfOpenAfterTimeout(t *testing.T) {
	cfg := testConfig()
	b := New(cfg)
	for i := 0; i < cfg.Threshold; i++ {
		b.ShouldTrip(200 * time.Millisecond)
	}
	if b.State() != Open {
		t.Fatal("expected Open before timeout elapses")
	}
	time.Sleep(cfg.OpenTimeout + 5*time.Millisecond)
	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen after timeout, got %s", b.State())
	}
}

func TestHalfOpenToClosedOnSuccess(t *testing.T) {
	cfg := testConfig()
	b := New(cfg)
	for i := 0; i < cfg.Threshold; i++ {
		b.ShouldTrip(200 * time.Millisecond)
	}
	time.Sleep(cfg.OpenTimeout + 5*time.Millisecond)
	b.State() // promote to HalfOpen
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected Closed after success, got %s", b.State())
	}
	if b.Failures() != 0 {
		t.Fatalf("expected failure count reset, got %d", b.Failures())
	}
}

func TestHalfOpenToOpenOnFailure(t *testing.T) {
	cfg := testConfig()
	b := New(cfg)
	for i := 0; i < cfg.Threshold; i++ {
		b.ShouldTrip(200 * time.Millisecond)
	}
	time.Sleep(cfg.OpenTimeout + 5*time.Millisecond)
	b.State() // promote to HalfOpen
	b.ShouldTrip(200 * time.Millisecond)
	if b.State() != Open {
		t.Fatalf("expected Open after half-open failure, got %s", b.State())
	}
}

func TestGoodLatencyNeverTrips(t *testing.T) {
	b := New(testConfig())
	for i := 0; i < 50; i++ {
		if b.ShouldTrip(10 * time.Millisecond) {
			t.Fatal("good latency should never trip the breaker")
		}
	}
}
