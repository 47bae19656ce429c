package websocket

import (
	"reflect"
	"testing"
)

func TestPresenceMultipleConnections(t *testing.T) {
	p := NewPresence()

	for _, conn := range []string{"c1", "c2", "c3"} {
		if !p.Register("alice", conn) {
			t.Fatalf("Register(%s) returned false", conn)
		}
	}
	if p.Register("alice", "c1") {
		t.Errorf("Duplicate registration should return false")
	}
	p.Register("bob", "c4")

	if got := p.Snapshot(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("Unexpected snapshot %v", got)
	}

	for i, conn := range []string{"c1", "c2"} {
		userID, ok := p.Unregister(conn)
		if !ok || userID != "alice" {
			t.Fatalf("Unregister(%s) = %q, %v", conn, userID, ok)
		}
		if !p.IsOnline("alice") {
			t.Errorf("alice offline after %d of 3 disconnects", i+1)
		}
	}

	p.Unregister("c3")
	if p.IsOnline("alice") {
		t.Errorf("alice still online after last disconnect")
	}
	if _, ok := p.Unregister("c3"); ok {
		t.Errorf("Second Unregister should report false")
	}
	if got := p.Snapshot(); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Errorf("Unexpected snapshot %v", got)
	}
}
