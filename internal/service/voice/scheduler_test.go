package voice

import (
	"testing"
	"time"
)

func TestScheduleQueuesChunksBackToBack(t *testing.T) {
	ps := NewPlaybackScheduler()

	first := ps.Schedule("a", 500*time.Millisecond, 0)
	second := ps.Schedule("b", 300*time.Millisecond, 10*time.Millisecond)

	if first != 0 {
		t.Fatalf("first chunk start = %v, want 0", first)
	}
	if second != 500*time.Millisecond {
		t.Fatalf("second chunk start = %v, want 500ms", second)
	}
	if ps.Active() != 2 {
		t.Fatalf("active = %d, want 2", ps.Active())
	}
}

func TestScheduleAfterGapStartsAtNow(t *testing.T) {
	ps := NewPlaybackScheduler()

	ps.Schedule("a", 100*time.Millisecond, 0)
	start := ps.Schedule("b", 100*time.Millisecond, 2*time.Second)

	if start != 2*time.Second {
		t.Fatalf("start = %v, want 2s", start)
	}
}

func TestInterruptDropsQueueAndRewindsCursor(t *testing.T) {
	ps := NewPlaybackScheduler()

	ps.Schedule("a", time.Second, 0)
	ps.Schedule("b", time.Second, 0)

	dropped := ps.Interrupt()
	if len(dropped) != 2 {
		t.Fatalf("dropped %d chunks, want 2", len(dropped))
	}
	if ps.Active() != 0 {
		t.Fatalf("active = %d after interrupt, want 0", ps.Active())
	}

	// Cursor rewound: next chunk plays immediately.
	if start := ps.Schedule("c", time.Second, 0); start != 0 {
		t.Fatalf("start after interrupt = %v, want 0", start)
	}
}

func TestFinishRemovesChunk(t *testing.T) {
	ps := NewPlaybackScheduler()
	ps.Schedule("a", time.Second, 0)
	ps.Finish("a")
	if ps.Active() != 0 {
		t.Fatalf("active = %d, want 0", ps.Active())
	}
}
