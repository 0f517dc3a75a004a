package message

import (
	"encoding/binary"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

type ClientMessageType uint8

const (
	ClientMessageType_CheckResponse ClientMessageType = iota

	ClientMessageType_NONE
)

func clientHeaderIdToMessageType(headerId uint8) ClientMessageType {
	if headerId == 0x0 {
		return ClientMessageType_CheckResponse
	}
	return ClientMessageType_NONE
}

// CheckResponse answers a liveness probe on channel 2. The claimed id is
// only trusted when it matches the authenticated sender of the connection
// the message arrived on.
type CheckResponse struct {
	ClaimedId uint64
	Nonce     uint64
}

// ClientMessage is anything the client sends on channel 2.
type ClientMessage struct {
	MessageType   ClientMessageType
	CheckResponse *CheckResponse
}

type ClientMessageSerializer struct {
	MagicNumber uint32
	Version     uint8
}

func (s ClientMessageSerializer) Parse(msg []byte) (*ClientMessage, error) {
	msgTypeNum, headerErr := parseHeader(msg, "ClientMessage", s.MagicNumber, s.Version)
	if headerErr != nil {
		return nil, headerErr
	}

	msgType := clientHeaderIdToMessageType(msgTypeNum)
	if msgType != ClientMessageType_CheckResponse {
		return nil, &errors.InvalidEnumValue{
			EnumName: "ClientMessageType",
			IntValue: msgTypeNum,
		}
	}

	body := msg[headerSize:]
	if len(body) < 16 {
		return nil, &errors.Underflow{
			MessageName: "ClientMessage::CheckResponse",
			MsgSize:     len(body),
			MinimumSize: 16,
		}
	}

	return &ClientMessage{
		MessageType: msgType,
		CheckResponse: &CheckResponse{
			ClaimedId: binary.LittleEndian.Uint64(body[0:8]),
			Nonce:     binary.LittleEndian.Uint64(body[8:16]),
		},
	}, nil
}

func (s ClientMessageSerializer) Serialize(msg *ClientMessage) ([]byte, error) {
	if msg.MessageType != ClientMessageType_CheckResponse {
		return nil, &errors.InvalidEnumValue{
			EnumName: "ClientMessageType",
			IntValue: uint8(msg.MessageType),
		}
	}
	if msg.CheckResponse == nil {
		return nil, &errors.MissingFieldError{MessageName: "ClientMessage", FieldName: "CheckResponse"}
	}

	buf := make([]byte, headerSize+16)
	serializeHeader(buf, s.MagicNumber, s.Version, uint8(msg.MessageType))
	binary.LittleEndian.PutUint64(buf[headerSize:headerSize+8], msg.CheckResponse.ClaimedId)
	binary.LittleEndian.PutUint64(buf[headerSize+8:headerSize+16], msg.CheckResponse.Nonce)
	return buf, nil
}
