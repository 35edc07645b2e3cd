package voice

import (
	"sync"
	"time"
)

// PlaybackScheduler assigns start times to synthesized audio chunks so they
// play back gaplessly. The cursor only moves forward; an interruption resets
// it and drops everything queued.
type PlaybackScheduler struct {
	mu        sync.Mutex
	nextStart time.Duration
	active    map[string]struct{}
}

func NewPlaybackScheduler() *PlaybackScheduler {
	return &PlaybackScheduler{active: make(map[string]struct{})}
}

// Schedule reserves a playback slot for a chunk of the given duration. The
// returned offset is relative to the playback clock origin; chunks arriving
// faster than real time queue behind the cursor, chunks arriving after a gap
// start at now.
func (ps *PlaybackScheduler) Schedule(id string, duration, now time.Duration) time.Duration {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	start := ps.nextStart
	if start < now {
		start = now
	}
	ps.nextStart = start + duration
	ps.active[id] = struct{}{}
	return start
}

// Finish marks a scheduled chunk as done playing.
func (ps *PlaybackScheduler) Finish(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.active, id)
}

// Active reports how many chunks are queued or playing.
func (ps *PlaybackScheduler) Active() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.active)
}

// Interrupt drops all pending chunks and rewinds the cursor so the next
// chunk starts immediately.
func (ps *PlaybackScheduler) Interrupt() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	dropped := make([]string, 0, len(ps.active))
	for id := range ps.active {
		dropped = append(dropped, id)
	}
	ps.active = make(map[string]struct{})
	ps.nextStart = 0
	return dropped
}
