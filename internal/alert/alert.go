// Package alert keeps the timed, dismissible notification of each browser.
package alert

import (
	"sync"
	"time"

	"github.com/dgellow/authfront/internal/log"
)

// DefaultTimeout is how long an alert stays visible without dismissal
const DefaultTimeout = 3 * time.Second

// Alert is the notification shown to one browser
type Alert struct {
	Message   string
	Visible   bool
	ExpiresAt time.Time
}

// Remaining returns how long the alert stays visible after now
func (a Alert) Remaining(now time.Time) time.Duration {
	if !a.Visible {
		return 0
	}
	if d := a.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type entry struct {
	alert Alert
	timer *time.Timer
	gen   uint64
}

// Board holds one alert per browser and hides each after a fixed timeout
type Board struct {
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
	closed  bool
}

// NewBoard creates a board whose alerts expire after timeout.
// A non-positive timeout uses DefaultTimeout.
func NewBoard(timeout time.Duration) *Board {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Board{
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Timeout returns the visibility window of a freshly shown alert
func (b *Board) Timeout() time.Duration {
	return b.timeout
}

// Show makes msg the visible alert of owner and restarts its timer
func (b *Board) Show(owner, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	e, ok := b.entries[owner]
	if !ok {
		e = &entry{}
		b.entries[owner] = e
	} else if e.timer != nil {
		e.timer.Stop()
	}

	b.gen++
	gen := b.gen
	e.gen = gen
	e.alert = Alert{Message: msg, Visible: true, ExpiresAt: b.now().Add(b.timeout)}
	e.timer = time.AfterFunc(b.timeout, func() { b.expire(owner, gen) })

	log.LogTraceWithFields("alert", "Alert shown", map[string]any{
		"timeout": b.timeout.String(),
	})
}

// Dismiss hides the alert of owner immediately
func (b *Board) Dismiss(owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[owner]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(b.entries, owner)
	}
}

// Get returns the current alert of owner. The zero Alert means nothing is shown.
func (b *Board) Get(owner string) Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[owner]; ok {
		return e.alert
	}
	return Alert{}
}

// Close stops every pending timer. Show is a no-op afterwards.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for owner, e := range b.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(b.entries, owner)
	}
	b.closed = true
}

// expire runs on the timer goroutine. Generations are unique across the
// board, so a timer that fired before a Dismiss or a re-arming Show never
// matches the entry that replaced its own.
func (b *Board) expire(owner string, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[owner]; ok && e.gen == gen {
		delete(b.entries, owner)
	}
}
