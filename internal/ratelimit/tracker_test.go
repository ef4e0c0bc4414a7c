package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"repairshop-api/internal/clock"
)

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		count int
		want  time.Duration
	}{
		{0, 0},
		{1, 0},
		{2, 5 * time.Second},
		{3, 30 * time.Second},
		{4, 300 * time.Second},
		{7, 300 * time.Second},
	}

	for _, tc := range cases {
		if got := backoffFor(tc.count); got != tc.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tc.count, got, tc.want)
		}
	}
}

func TestBackoffProgression(t *testing.T) {
	clk := clock.Fake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewFailureTracker(4, clk)
	ip := "203.0.113.7"

	// One failure: no backoff yet.
	tracker.RecordFailure(ip)
	if _, inBackoff := tracker.Backoff(ip); inBackoff {
		t.Fatal("in backoff after a single failure")
	}

	// Second failure: 5s wait.
	tracker.RecordFailure(ip)
	remaining, inBackoff := tracker.Backoff(ip)
	if !inBackoff || remaining != 5 {
		t.Fatalf("after 2 failures: remaining=%d inBackoff=%v, want 5 true", remaining, inBackoff)
	}

	// Partial elapse rounds the remainder up.
	clk.Advance(2500 * time.Millisecond)
	remaining, inBackoff = tracker.Backoff(ip)
	if !inBackoff || remaining != 3 {
		t.Fatalf("after 2.5s elapsed: remaining=%d inBackoff=%v, want 3 true", remaining, inBackoff)
	}

	// Wait out the rest.
	clk.Advance(3 * time.Second)
	if _, inBackoff := tracker.Backoff(ip); inBackoff {
		t.Fatal("still in backoff after the 5s window elapsed")
	}

	// Third failure: 30s. Fourth and beyond: 300s.
	tracker.RecordFailure(ip)
	if remaining, _ := tracker.Backoff(ip); remaining != 30 {
		t.Errorf("after 3 failures remaining = %d, want 30", remaining)
	}
	clk.Advance(30 * time.Second)
	tracker.RecordFailure(ip)
	if remaining, _ := tracker.Backoff(ip); remaining != 300 {
		t.Errorf("after 4 failures remaining = %d, want 300", remaining)
	}
}

func TestRecordSuccessResets(t *testing.T) {
	clk := clock.Fake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewFailureTracker(4, clk)
	ip := "203.0.113.7"

	for i := 0; i < 4; i++ {
		tracker.RecordFailure(ip)
	}
	if tracker.FailureCount(ip) != 4 {
		t.Fatalf("count = %d, want 4", tracker.FailureCount(ip))
	}

	tracker.RecordSuccess(ip)
	if tracker.FailureCount(ip) != 0 {
		t.Errorf("count after success = %d, want 0", tracker.FailureCount(ip))
	}
	if _, inBackoff := tracker.Backoff(ip); inBackoff {
		t.Error("still in backoff after success reset")
	}
}

func TestTrackerIsolatesIPs(t *testing.T) {
	clk := clock.Fake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewFailureTracker(4, clk)

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("198.51.100.1")
	}
	if _, inBackoff := tracker.Backoff("198.51.100.2"); inBackoff {
		t.Error("failures against one IP leaked into another")
	}
}

func TestConcurrentRecordFailure(t *testing.T) {
	clk := clock.Fake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewFailureTracker(8, clk)
	ip := "203.0.113.99"

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			tracker.RecordFailure(ip)
		}()
	}
	wg.Wait()

	if got := tracker.FailureCount(ip); got != workers {
		t.Errorf("failure count = %d, want %d (lost updates)", got, workers)
	}
}

func TestConcurrentMixedAccess(t *testing.T) {
	clk := clock.Fake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	tracker := NewFailureTracker(8, clk)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		ip := fmt.Sprintf("10.0.0.%d", i%8)
		wg.Add(2)
		go func() {
			defer wg.Done()
			tracker.RecordFailure(ip)
		}()
		go func() {
			defer wg.Done()
			tracker.Backoff(ip)
			tracker.FailureCount(ip)
		}()
	}
	wg.Wait()
}
