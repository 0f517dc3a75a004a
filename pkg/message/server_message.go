package message

import (
	"encoding/binary"

	"github.com/cadyn/pong-netcode/pkg/errors"
	"github.com/cadyn/pong-netcode/pkg/game"
)

type ServerMessageType uint8

const (
	ServerMessageType_Welcome ServerMessageType = iota
	ServerMessageType_PeerConnected
	ServerMessageType_PeerDisconnected
	ServerMessageType_LivenessProbe

	ServerMessageType_NONE
)

func serverHeaderIdToMessageType(headerId uint8) ServerMessageType {
	switch headerId {
	case 0x0:
		return ServerMessageType_Welcome
	case 0x1:
		return ServerMessageType_PeerConnected
	case 0x2:
		return ServerMessageType_PeerDisconnected
	case 0x3:
		return ServerMessageType_LivenessProbe
	}

	return ServerMessageType_NONE
}

// Welcome tells a freshly admitted client which slot it was given.
type Welcome struct {
	Slot game.Slot
}

// PeerConnected announces a peer and the slot it occupies. Sent to a new
// client once per already-connected peer, and broadcast when a peer joins.
type PeerConnected struct {
	ClientId uint64
	Slot     game.Slot
}

type PeerDisconnected struct {
	ClientId uint64
}

// LivenessProbe asks every client to positively reconfirm it is reachable.
// The nonce identifies the probe cycle; a CheckResponse must echo it.
type LivenessProbe struct {
	Nonce uint64
}

// ServerMessage is anything the server sends on the reliable channels.
// Channel 0 carries the lobby notices, channel 2 carries liveness probes.
type ServerMessage struct {
	MessageType      ServerMessageType
	Welcome          *Welcome
	PeerConnected    *PeerConnected
	PeerDisconnected *PeerDisconnected
	LivenessProbe    *LivenessProbe
}

type ServerMessageSerializer struct {
	MagicNumber uint32
	Version     uint8
}

func (s ServerMessageSerializer) Parse(msg []byte) (*ServerMessage, error) {
	msgTypeNum, headerErr := parseHeader(msg, "ServerMessage", s.MagicNumber, s.Version)
	if headerErr != nil {
		return nil, headerErr
	}

	body := msg[headerSize:]
	parsed := &ServerMessage{
		MessageType: serverHeaderIdToMessageType(msgTypeNum),
	}

	switch parsed.MessageType {
	case ServerMessageType_Welcome:
		if len(body) < 1 {
			return nil, &errors.Underflow{MessageName: "ServerMessage::Welcome", MsgSize: len(body), MinimumSize: 1}
		}
		slot, slotErr := parseSlot(body[0])
		if slotErr != nil {
			return nil, slotErr
		}
		parsed.Welcome = &Welcome{Slot: slot}
	case ServerMessageType_PeerConnected:
		if len(body) < 9 {
			return nil, &errors.Underflow{MessageName: "ServerMessage::PeerConnected", MsgSize: len(body), MinimumSize: 9}
		}
		slot, slotErr := parseSlot(body[8])
		if slotErr != nil {
			return nil, slotErr
		}
		parsed.PeerConnected = &PeerConnected{
			ClientId: binary.LittleEndian.Uint64(body[0:8]),
			Slot:     slot,
		}
	case ServerMessageType_PeerDisconnected:
		if len(body) < 8 {
			return nil, &errors.Underflow{MessageName: "ServerMessage::PeerDisconnected", MsgSize: len(body), MinimumSize: 8}
		}
		parsed.PeerDisconnected = &PeerDisconnected{
			ClientId: binary.LittleEndian.Uint64(body[0:8]),
		}
	case ServerMessageType_LivenessProbe:
		if len(body) < 8 {
			return nil, &errors.Underflow{MessageName: "ServerMessage::LivenessProbe", MsgSize: len(body), MinimumSize: 8}
		}
		parsed.LivenessProbe = &LivenessProbe{
			Nonce: binary.LittleEndian.Uint64(body[0:8]),
		}
	case ServerMessageType_NONE:
		fallthrough
	default:
		return nil, &errors.InvalidEnumValue{
			EnumName: "ServerMessageType",
			IntValue: msgTypeNum,
		}
	}

	return parsed, nil
}

func (s ServerMessageSerializer) Serialize(msg *ServerMessage) ([]byte, error) {
	switch msg.MessageType {
	case ServerMessageType_Welcome:
		if msg.Welcome == nil {
			return nil, &errors.MissingFieldError{MessageName: "ServerMessage", FieldName: "Welcome"}
		}
		buf := make([]byte, headerSize+1)
		serializeHeader(buf, s.MagicNumber, s.Version, uint8(msg.MessageType))
		buf[headerSize] = uint8(msg.Welcome.Slot)
		return buf, nil
	case ServerMessageType_PeerConnected:
		if msg.PeerConnected == nil {
			return nil, &errors.MissingFieldError{MessageName: "ServerMessage", FieldName: "PeerConnected"}
		}
		buf := make([]byte, headerSize+9)
		serializeHeader(buf, s.MagicNumber, s.Version, uint8(msg.MessageType))
		binary.LittleEndian.PutUint64(buf[headerSize:headerSize+8], msg.PeerConnected.ClientId)
		buf[headerSize+8] = uint8(msg.PeerConnected.Slot)
		return buf, nil
	case ServerMessageType_PeerDisconnected:
		if msg.PeerDisconnected == nil {
			return nil, &errors.MissingFieldError{MessageName: "ServerMessage", FieldName: "PeerDisconnected"}
		}
		buf := make([]byte, headerSize+8)
		serializeHeader(buf, s.MagicNumber, s.Version, uint8(msg.MessageType))
		binary.LittleEndian.PutUint64(buf[headerSize:headerSize+8], msg.PeerDisconnected.ClientId)
		return buf, nil
	case ServerMessageType_LivenessProbe:
		if msg.LivenessProbe == nil {
			return nil, &errors.MissingFieldError{MessageName: "ServerMessage", FieldName: "LivenessProbe"}
		}
		buf := make([]byte, headerSize+8)
		serializeHeader(buf, s.MagicNumber, s.Version, uint8(msg.MessageType))
		binary.LittleEndian.PutUint64(buf[headerSize:headerSize+8], msg.LivenessProbe.Nonce)
		return buf, nil
	}

	return nil, &errors.InvalidEnumValue{
		EnumName: "ServerMessageType",
		IntValue: uint8(msg.MessageType),
	}
}

func parseSlot(b byte) (game.Slot, error) {
	if b > uint8(game.SlotRight) {
		return 0, &errors.InvalidEnumValue{EnumName: "Slot", IntValue: b}
	}
	return game.Slot(b), nil
}
