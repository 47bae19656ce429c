// Package typing implements the "is typing" debounce shared by server
// sessions and the Go client: the first keystroke of a burst starts typing,
// and typing stops once no keystroke has been seen for the idle window.
package typing

import (
	"sync"
	"time"
)

// DefaultIdle is how long after the last keystroke typing is considered over.
const DefaultIdle = 3 * time.Second

type Debouncer struct {
	mu      sync.Mutex
	idle    time.Duration
	last    time.Time
	active  bool
	closed  bool
	timer   *time.Timer
	onStart func()
	onStop  func()
	now     func() time.Time
}

// New returns a debouncer. onStart runs when a burst begins, onStop when it
// ends by idling out or by an explicit Stop. Callbacks run without the
// debouncer's lock held and may call back into it.
func New(idle time.Duration, onStart, onStop func()) *Debouncer {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Debouncer{
		idle:    idle,
		onStart: onStart,
		onStop:  onStop,
		now:     time.Now,
	}
}

// Touch records a keystroke. It reports whether this keystroke started a
// new burst.
func (d *Debouncer) Touch() bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.last = d.now()
	if d.active {
		d.mu.Unlock()
		return false
	}
	d.active = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.idle, d.fire)
	} else {
		d.timer.Reset(d.idle)
	}
	d.mu.Unlock()

	if d.onStart != nil {
		d.onStart()
	}
	return true
}

// Stop ends the current burst immediately. It reports whether a burst was
// active.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	if d.closed || !d.active {
		d.mu.Unlock()
		return false
	}
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	if d.onStop != nil {
		d.onStop()
	}
	return true
}

// Active reports whether a burst is in progress.
func (d *Debouncer) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active && !d.closed
}

// Close cancels any pending timer. After Close no callback fires again.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.closed || !d.active {
		d.mu.Unlock()
		return
	}
	// A keystroke may have landed after the timer was armed; only stop once
	// the full idle window has actually elapsed since the last one.
	if elapsed := d.now().Sub(d.last); elapsed < d.idle {
		d.timer.Reset(d.idle - elapsed)
		d.mu.Unlock()
		return
	}
	d.active = false
	d.mu.Unlock()

	if d.onStop != nil {
		d.onStop()
	}
}
