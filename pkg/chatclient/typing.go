package chatclient

import (
	"sync"
	"time"

	"chatflow/internal/models"
	"chatflow/pkg/typing"
)

// Typing turns raw keystrokes into "typing" / "stop typing" events: one
// "typing" per burst, and "stop typing" once the user has been idle for the
// debounce window.
type Typing struct {
	emitter Emitter
	d       *typing.Debouncer

	mu        sync.Mutex
	channelID string
}

func NewTyping(emitter Emitter, idle time.Duration) *Typing {
	t := &Typing{emitter: emitter}
	t.d = typing.New(idle, t.started, t.stopped)
	return t
}

// Keystroke records input in channelID. Switching channels mid-burst ends
// the burst in the old channel first.
func (t *Typing) Keystroke(channelID string) {
	t.mu.Lock()
	prev := t.channelID
	t.mu.Unlock()

	if prev != channelID && t.d.Active() {
		t.d.Stop()
	}
	t.mu.Lock()
	t.channelID = channelID
	t.mu.Unlock()
	t.d.Touch()
}

// Stop ends the current burst, e.g. when the message is sent.
func (t *Typing) Stop() {
	t.d.Stop()
}

func (t *Typing) Close() {
	t.d.Close()
}

func (t *Typing) current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelID
}

func (t *Typing) started() {
	t.emitter.Emit(models.EventTyping, t.current())
}

func (t *Typing) stopped() {
	t.emitter.Emit(models.EventStopTyping, t.current())
}
