package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Emit(SessionConnected, "test")

	select {
	case evt := <-ch:
		if evt.Kind != SessionConnected {
			t.Errorf("got kind %q, want %s", evt.Kind, SessionConnected)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Emit must stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("comms.", 10)
	defer unsub()

	b.Publish(Event{Kind: SessionStatusChanged})
	b.Publish(Event{Kind: RoomChanged})

	select {
	case evt := <-ch:
		if evt.Kind != RoomChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, RoomChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAny(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeAny(10, SessionConnected, RoomChanged)
	defer unsub()

	b.Emit(SessionConnected, nil)
	b.Emit(SessionLoggedOut, nil)
	b.Emit(RoomChanged, nil)

	got := []string{(<-ch).Kind, (<-ch).Kind}
	if got[0] != SessionConnected || got[1] != RoomChanged {
		t.Errorf("kinds = %v, want [%s %s]", got, SessionConnected, RoomChanged)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()
	unsub()

	b.Emit(SessionStatusChanged, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("renderer.", 1)
	defer unsub()

	b.Emit("renderer.AddFriends", nil)
	b.Emit("renderer.UpdateTotalFriends", nil)

	evt := <-ch
	if evt.Kind != "renderer.AddFriends" {
		t.Errorf("got %q, want renderer.AddFriends", evt.Kind)
	}
}

func TestOnDropReportsMissedEvents(t *testing.T) {
	b := New()
	var dropped []string
	b.OnDrop(func(namespace string, evt Event) {
		dropped = append(dropped, namespace+" "+evt.Kind)
	})
	_, unsub := b.Subscribe(RendererPrefix, 1)
	defer unsub()

	b.Emit("renderer.AddFriends", nil)
	b.Emit("renderer.UpdateTotalFriends", nil)
	b.Emit(SessionConnected, nil)

	if len(dropped) != 1 || dropped[0] != "renderer. renderer.UpdateTotalFriends" {
		t.Errorf("dropped = %v, want [renderer. renderer.UpdateTotalFriends]", dropped)
	}
}
