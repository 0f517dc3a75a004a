package transport

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for transport event")
		return nil // unreachable
	}
}

func TestMemoryHubConnectEmitsConnected(t *testing.T) {
	hub := NewMemoryHub(ChannelPlan{})

	clientEnd := hub.Connect(100)

	ev := recvEvent(t, hub.Events())
	connected, ok := ev.(Connected)
	if !ok {
		t.Fatalf("want Connected, got %T", ev)
	}
	if connected.Conn.ClientId() != 100 {
		t.Fatalf("wrong client id: %d", connected.Conn.ClientId())
	}

	if err := clientEnd.Send(ChannelMessages, []byte{42}); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, ok := connected.Conn.Receive(ChannelMessages)
	if !ok || got[0] != 42 {
		t.Fatalf("server end missed payload: %v (ok=%v)", got, ok)
	}
}

func TestMemoryCleanCloseEmitsDisconnected(t *testing.T) {
	hub := NewMemoryHub(ChannelPlan{})
	clientEnd := hub.Connect(100)
	recvEvent(t, hub.Events()) // Connected

	clientEnd.Close()

	ev := recvEvent(t, hub.Events())
	disconnected, ok := ev.(Disconnected)
	if !ok {
		t.Fatalf("want Disconnected, got %T", ev)
	}
	if disconnected.ClientId != 100 {
		t.Fatalf("wrong client id: %d", disconnected.ClientId)
	}
}

func TestMemoryVanishOnlySignalsGenericError(t *testing.T) {
	hub := NewMemoryHub(ChannelPlan{})
	clientEnd := hub.Connect(100)
	connected := recvEvent(t, hub.Events()).(Connected)

	clientEnd.Vanish()

	ev := recvEvent(t, hub.Events())
	if _, ok := ev.(TransportError); !ok {
		t.Fatalf("want TransportError, got %T", ev)
	}

	// The server end must not error, traffic just goes nowhere.
	if err := connected.Conn.Send(ChannelSnapshot, []byte{1}); err != nil {
		t.Fatalf("send to vanished peer errored: %v", err)
	}
	if _, ok := clientEnd.Receive(ChannelSnapshot); ok {
		t.Fatalf("vanished peer received traffic")
	}

	// And no Disconnected is ever produced for a vanished peer.
	select {
	case ev := <-hub.Events():
		t.Fatalf("unexpected event after vanish: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemorySnapshotChannelKeepsNewest(t *testing.T) {
	hub := NewMemoryHub(ChannelPlan{})
	clientEnd := hub.Connect(100)
	connected := recvEvent(t, hub.Events()).(Connected)

	for i := byte(1); i <= 3; i++ {
		if err := connected.Conn.Send(ChannelSnapshot, []byte{i}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	var last []byte
	for {
		payload, ok := clientEnd.Receive(ChannelSnapshot)
		if !ok {
			break
		}
		last = payload
	}
	if last == nil || last[0] != 3 {
		t.Fatalf("newest snapshot not last: %v", last)
	}
}
