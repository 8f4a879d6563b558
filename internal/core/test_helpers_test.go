package core

import (
	"testing"
	"time"
)

func mustEvent(t *testing.T, c *Client, kind EventKind) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return Event{}
		}
	}
}

func mustNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.Events():
		t.Fatalf("expected no event, got kind %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}
