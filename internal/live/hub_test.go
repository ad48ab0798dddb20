package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	hub := NewHub(nil)
	a := &Client{email: "a@example.org", hub: hub, send: make(chan Event, 4)}
	b := &Client{email: "b@example.org", hub: hub, send: make(chan Event, 4)}
	hub.register(a)
	hub.register(b)

	event := Event{Type: EventCheckin, Badge: "B-001", At: time.Now()}
	hub.Publish(event)

	for _, c := range []*Client{a, b} {
		select {
		case got := <-c.send:
			assert.Equal(t, event, got)
		default:
			t.Fatalf("%s received nothing", c.email)
		}
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{email: "slow@example.org", hub: hub, send: make(chan Event, 1)}
	hub.register(slow)

	hub.Publish(Event{Type: EventEntry})
	// The buffer is full; this must not block the desk.
	done := make(chan struct{})
	go func() {
		hub.Publish(Event{Type: EventExit})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client buffer")
	}

	got := <-slow.send
	assert.Equal(t, EventEntry, got.Type)
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{email: "c@example.org", hub: hub, send: make(chan Event, 1)}
	hub.register(c)
	hub.unregister(c)

	_, open := <-c.send
	require.False(t, open)

	// A second unregister is harmless.
	hub.unregister(c)
	hub.Publish(Event{Type: EventPass})
}
