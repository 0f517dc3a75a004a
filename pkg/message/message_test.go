package message

import (
	"testing"

	"github.com/cadyn/pong-netcode/pkg/errors"
	"github.com/cadyn/pong-netcode/pkg/game"
)

func serverSerializer() ServerMessageSerializer {
	return ServerMessageSerializer{MagicNumber: DefaultMagicNumber, Version: DefaultVersion}
}

func TestServerMessageRoundTrip(t *testing.T) {
	s := serverSerializer()

	msgs := []*ServerMessage{
		{MessageType: ServerMessageType_Welcome, Welcome: &Welcome{Slot: game.SlotRight}},
		{MessageType: ServerMessageType_PeerConnected, PeerConnected: &PeerConnected{ClientId: 100, Slot: game.SlotLeft}},
		{MessageType: ServerMessageType_PeerDisconnected, PeerDisconnected: &PeerDisconnected{ClientId: 200}},
		{MessageType: ServerMessageType_LivenessProbe, LivenessProbe: &LivenessProbe{Nonce: 0xDEADBEEF}},
	}

	for _, want := range msgs {
		raw, err := s.Serialize(want)
		if err != nil {
			t.Fatalf("serialize %v: %v", want.MessageType, err)
		}
		got, err := s.Parse(raw)
		if err != nil {
			t.Fatalf("parse %v: %v", want.MessageType, err)
		}
		if got.MessageType != want.MessageType {
			t.Fatalf("message type mismatch: want %v, got %v", want.MessageType, got.MessageType)
		}
		switch want.MessageType {
		case ServerMessageType_Welcome:
			if got.Welcome == nil || got.Welcome.Slot != want.Welcome.Slot {
				t.Fatalf("welcome mismatch: %+v", got.Welcome)
			}
		case ServerMessageType_PeerConnected:
			if got.PeerConnected == nil || *got.PeerConnected != *want.PeerConnected {
				t.Fatalf("peer connected mismatch: %+v", got.PeerConnected)
			}
		case ServerMessageType_PeerDisconnected:
			if got.PeerDisconnected == nil || got.PeerDisconnected.ClientId != 200 {
				t.Fatalf("peer disconnected mismatch: %+v", got.PeerDisconnected)
			}
		case ServerMessageType_LivenessProbe:
			if got.LivenessProbe == nil || got.LivenessProbe.Nonce != 0xDEADBEEF {
				t.Fatalf("probe mismatch: %+v", got.LivenessProbe)
			}
		}
	}
}

func TestParseRejectsWrongMagicNumber(t *testing.T) {
	s := serverSerializer()
	raw, err := s.Serialize(&ServerMessage{
		MessageType:      ServerMessageType_PeerDisconnected,
		PeerDisconnected: &PeerDisconnected{ClientId: 1},
	})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	raw[0] ^= 0xFF

	_, err = s.Parse(raw)
	if _, ok := err.(*errors.InvalidHeaderVersion); !ok {
		t.Fatalf("want InvalidHeaderVersion, got %v", err)
	}
}

func TestParseTruncatedPeerConnectedUnderflows(t *testing.T) {
	s := serverSerializer()
	raw, err := s.Serialize(&ServerMessage{
		MessageType:   ServerMessageType_PeerConnected,
		PeerConnected: &PeerConnected{ClientId: 100, Slot: game.SlotLeft},
	})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	_, err = s.Parse(raw[:len(raw)-4])
	if _, ok := err.(*errors.Underflow); !ok {
		t.Fatalf("want Underflow, got %v", err)
	}
}

func TestCheckResponseRoundTrip(t *testing.T) {
	s := ClientMessageSerializer{MagicNumber: DefaultMagicNumber, Version: DefaultVersion}

	raw, err := s.Serialize(&ClientMessage{
		MessageType:   ClientMessageType_CheckResponse,
		CheckResponse: &CheckResponse{ClaimedId: 100, Nonce: 42},
	})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := s.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.CheckResponse.ClaimedId != 100 || got.CheckResponse.Nonce != 42 {
		t.Fatalf("check response mismatch: %+v", got.CheckResponse)
	}
}

func TestInputSampleRoundTrip(t *testing.T) {
	s := InputSerializer{MagicNumber: DefaultMagicNumber, Version: DefaultVersion}

	want := game.InputSample{Up: true, Right: true}
	got, err := s.Parse(s.Serialize(want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("input mismatch: want %+v, got %+v", want, got)
	}
}

func TestSnapshotRoundTripAndTruncation(t *testing.T) {
	s := SnapshotSerializer{MagicNumber: DefaultMagicNumber, Version: DefaultVersion}

	want := game.Snapshot{
		BallPos:     game.Vec2{X: 1.5, Y: -2.25},
		BallVel:     game.Vec2{X: 400, Y: -200},
		PaddleLeft:  game.Vec2{X: -390, Y: 12},
		PaddleRight: game.Vec2{X: 390, Y: -99},
		ScoreLeft:   -1,
		ScoreRight:  10,
		Playing:     true,
	}
	raw := s.Serialize(want)

	got, err := s.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("snapshot mismatch: want %+v, got %+v", want, got)
	}

	if _, err := s.Parse(raw[:len(raw)-1]); err == nil {
		t.Fatalf("expected truncated snapshot to fail parsing")
	}
}
