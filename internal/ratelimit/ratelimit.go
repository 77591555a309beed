package ratelimit

import (
	"sync"
	"time"
)

// Window is the span over which accepted requests are counted.
const Window = time.Second

// Limiter admits or rejects a request for a profile.
type Limiter interface {
	Allow(profileID int64, maxRPS int) bool
}

// SlidingWindow keeps the timestamps of accepted requests per profile. State
// is process-local, so N instances admit up to N*maxRPS in aggregate.
type SlidingWindow struct {
	mu      sync.Mutex
	windows map[int64]*window
	now     func() time.Time
}

type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewSlidingWindow creates an empty limiter.
func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{
		windows: make(map[int64]*window),
		now:     time.Now,
	}
}

// Allow drops stamps older than Window, rejects without recording when the
// remaining count already reaches maxRPS and otherwise records now.
func (l *SlidingWindow) Allow(profileID int64, maxRPS int) bool {
	if maxRPS < 1 {
		maxRPS = 1
	}

	w := l.window(profileID)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if now.Sub(ts) < Window {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= maxRPS {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

func (l *SlidingWindow) window(profileID int64) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[profileID]
	if !ok {
		w = &window{}
		l.windows[profileID] = w
	}
	return w
}
