package typing

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestTouchStartsBurstOnce(t *testing.T) {
	var starts, stops int32
	d := New(time.Hour, func() { atomic.AddInt32(&starts, 1) }, func() { atomic.AddInt32(&stops, 1) })
	defer d.Close()

	if !d.Touch() {
		t.Errorf("Expected first touch to start a burst")
	}
	for i := 0; i < 5; i++ {
		if d.Touch() {
			t.Errorf("Repeated touch %d started a new burst", i)
		}
	}
	if got := atomic.LoadInt32(&starts); got != 1 {
		t.Errorf("Expected 1 start, got %d", got)
	}
	if got := atomic.LoadInt32(&stops); got != 0 {
		t.Errorf("Expected 0 stops, got %d", got)
	}
}

func TestIdleFiresStop(t *testing.T) {
	var stops int32
	d := New(30*time.Millisecond, nil, func() { atomic.AddInt32(&stops, 1) })
	defer d.Close()

	d.Touch()
	waitFor(t, func() bool { return atomic.LoadInt32(&stops) == 1 }, time.Second)
	if d.Active() {
		t.Errorf("Debouncer still active after idle stop")
	}
}

func TestKeystrokeExtendsDeadline(t *testing.T) {
	var stops int32
	d := New(60*time.Millisecond, nil, func() { atomic.AddInt32(&stops, 1) })
	defer d.Close()

	start := time.Now()
	d.Touch()
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		d.Touch()
	}
	if got := atomic.LoadInt32(&stops); got != 0 {
		t.Fatalf("Stop fired while keystrokes kept arriving (after %s)", time.Since(start))
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&stops) == 1 }, time.Second)
}

func TestStaleTimerDoesNotFireEarly(t *testing.T) {
	var stops int32
	now := time.Now()
	d := New(50*time.Millisecond, nil, func() { atomic.AddInt32(&stops, 1) })
	defer d.Close()

	// The clock says the last keystroke just happened, so a timer firing now
	// must re-arm instead of stopping.
	d.now = func() time.Time { return now }
	d.Touch()
	d.fire()
	if got := atomic.LoadInt32(&stops); got != 0 {
		t.Errorf("Stale fire stopped typing, got %d stops", got)
	}
	if !d.Active() {
		t.Errorf("Expected debouncer to remain active")
	}
}

func TestExplicitStop(t *testing.T) {
	var stops int32
	d := New(time.Hour, nil, func() { atomic.AddInt32(&stops, 1) })
	defer d.Close()

	if d.Stop() {
		t.Errorf("Stop without a burst should report false")
	}
	d.Touch()
	if !d.Stop() {
		t.Errorf("Stop during a burst should report true")
	}
	d.Stop()
	if got := atomic.LoadInt32(&stops); got != 1 {
		t.Errorf("Expected exactly 1 stop, got %d", got)
	}
}

func TestCloseMakesCallbacksInert(t *testing.T) {
	var stops, starts int32
	d := New(20*time.Millisecond, func() { atomic.AddInt32(&starts, 1) }, func() { atomic.AddInt32(&stops, 1) })

	d.Touch()
	d.Close()
	time.Sleep(60 * time.Millisecond)
	d.Touch()

	if got := atomic.LoadInt32(&stops); got != 0 {
		t.Errorf("Stop fired after Close, got %d", got)
	}
	if got := atomic.LoadInt32(&starts); got != 1 {
		t.Errorf("Touch after Close started a burst, starts=%d", got)
	}
}
