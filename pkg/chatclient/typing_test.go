package chatclient

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEmitter) Emit(event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s:%v", event, data))
	return nil
}

func (r *recordingEmitter) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestTypingOncePerBurst(t *testing.T) {
	em := &recordingEmitter{}
	ty := NewTyping(em, 40*time.Millisecond)
	defer ty.Close()

	for i := 0; i < 5; i++ {
		ty.Keystroke("c1")
		time.Sleep(5 * time.Millisecond)
	}
	if got := em.list(); len(got) != 1 || got[0] != "typing:c1" {
		t.Fatalf("Expected a single typing event, got %v", got)
	}

	time.Sleep(120 * time.Millisecond)
	if got := em.list(); len(got) != 2 || got[1] != "stop typing:c1" {
		t.Errorf("Expected stop after idle, got %v", got)
	}
}

func TestTypingStopAndSwitch(t *testing.T) {
	em := &recordingEmitter{}
	ty := NewTyping(em, time.Second)
	defer ty.Close()

	ty.Keystroke("c1")
	ty.Keystroke("c2")
	ty.Stop()
	ty.Stop()

	want := []string{"typing:c1", "stop typing:c1", "typing:c2", "stop typing:c2"}
	got := em.list()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
