package cancel

import (
	"errors"
	"testing"
	"time"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

func TestTimerWaitsThenCancelIsSticky(t *testing.T) {
	timer := NewTimer()
	start := time.Now()
	if err := timer.WaitForExpiryAfter(5 * time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatal("expected wait to actually block for the requested delta")
	}

	timer.Cancel()
	timer.Cancel() // idempotent

	for i := 0; i < 3; i++ {
		err := timer.WaitForExpiryAfter(time.Hour)
		if !errors.Is(err, errkind.IsCancelled) {
			t.Fatalf("expected Cancelled after cancel, got %v", err)
		}
	}
}

func TestTimerCancelDuringWaitResolvesPromptly(t *testing.T) {
	timer := NewTimer()
	done := make(chan error, 1)
	go func() {
		done <- timer.WaitForExpiryAfter(time.Hour)
	}()
	time.Sleep(2 * time.Millisecond)
	timer.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errkind.IsCancelled) {
			t.Fatalf("expected Cancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timer wait did not resolve within one tick of cancel")
	}
}

func TestEventTriggerThenWaitConsumesOneUnit(t *testing.T) {
	ev := NewEvent()
	ev.TriggerWithValue(2)

	if err := ev.WaitForEvent(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ev.WaitForEvent(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ev.WaitForEvent() }()
	time.Sleep(2 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("expected WaitForEvent to block with no pending units")
	default:
	}
	ev.TriggerWithValue(1)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected pending wait to wake after trigger")
	}
}

func TestEventCancelWakesBlockedWaiter(t *testing.T) {
	ev := NewEvent()
	done := make(chan error, 1)
	go func() { done <- ev.WaitForEvent() }()
	time.Sleep(2 * time.Millisecond)
	ev.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errkind.IsCancelled) {
			t.Fatalf("expected Cancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not wake blocked waiter")
	}

	if err := ev.WaitForEvent(); !errors.Is(err, errkind.IsCancelled) {
		t.Fatalf("expected sticky Cancelled after cancel, got %v", err)
	}
}
