package backlog

import (
	"testing"
	"time"
)

func TestObserveUnderBudgetNoBacklogChange(t *testing.T) {
	var tr Tracker
	frameTime := 16 * time.Millisecond
	missed, delta := tr.Observe(10*time.Millisecond, frameTime)
	if missed != 0 {
		t.Fatalf("expected 0 missed frames, got %d", missed)
	}
	if tr.Count() != 0 {
		t.Fatalf("expected backlog 0, got %d", tr.Count())
	}
	if delta != 6*time.Millisecond {
		t.Fatalf("expected delta 6ms, got %v", delta)
	}
}

func TestObserveTwoFrameOverrunNoWait(t *testing.T) {
	var tr Tracker
	frameTime := 16 * time.Millisecond
	missed, delta := tr.Observe(32*time.Millisecond, frameTime)
	if missed != 2 {
		t.Fatalf("expected 2 missed frames, got %d", missed)
	}
	if tr.Count() != 2 {
		t.Fatalf("expected backlog 2, got %d", tr.Count())
	}
	if delta != 0 {
		t.Fatalf("expected delta 0 when backlog > 0, got %v", delta)
	}
}

func TestDecrementStopsAtZero(t *testing.T) {
	var tr Tracker
	tr.Observe(32*time.Millisecond, 16*time.Millisecond)
	tr.Decrement()
	if tr.Count() != 1 {
		t.Fatalf("expected backlog 1, got %d", tr.Count())
	}
	tr.Decrement()
	if tr.Count() != 0 {
		t.Fatalf("expected backlog 0, got %d", tr.Count())
	}
	tr.Decrement()
	if tr.Count() != 0 {
		t.Fatalf("expected backlog to stay 0, got %d", tr.Count())
	}
}

func TestDrainResetsAndReportsBacklog(t *testing.T) {
	var tr Tracker
	tr.Observe(48*time.Millisecond, 16*time.Millisecond)
	n := tr.Drain()
	if n != 3 {
		t.Fatalf("expected drained backlog 3, got %d", n)
	}
	if tr.Count() != 0 {
		t.Fatalf("expected backlog reset to 0, got %d", tr.Count())
	}
}
