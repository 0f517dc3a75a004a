package message

import (
	"github.com/cadyn/pong-netcode/pkg/errors"
	"github.com/cadyn/pong-netcode/pkg/game"
)

// Input samples are the only client-to-server traffic on channel 0, so they
// get their own single-type codec. The four directions pack into one byte.
const inputMessageTypeId uint8 = 0x1

const (
	inputBitUp = 1 << iota
	inputBitDown
	inputBitLeft
	inputBitRight
)

type InputSerializer struct {
	MagicNumber uint32
	Version     uint8
}

func (s InputSerializer) Parse(msg []byte) (game.InputSample, error) {
	msgTypeNum, headerErr := parseHeader(msg, "InputSample", s.MagicNumber, s.Version)
	if headerErr != nil {
		return game.InputSample{}, headerErr
	}
	if msgTypeNum != inputMessageTypeId {
		return game.InputSample{}, &errors.InvalidEnumValue{
			EnumName: "InputSample::MessageType",
			IntValue: msgTypeNum,
		}
	}

	body := msg[headerSize:]
	if len(body) < 1 {
		return game.InputSample{}, &errors.Underflow{
			MessageName: "InputSample",
			MsgSize:     len(body),
			MinimumSize: 1,
		}
	}

	bits := body[0]
	return game.InputSample{
		Up:    bits&inputBitUp != 0,
		Down:  bits&inputBitDown != 0,
		Left:  bits&inputBitLeft != 0,
		Right: bits&inputBitRight != 0,
	}, nil
}

func (s InputSerializer) Serialize(in game.InputSample) []byte {
	buf := make([]byte, headerSize+1)
	serializeHeader(buf, s.MagicNumber, s.Version, inputMessageTypeId)

	var bits byte
	if in.Up {
		bits |= inputBitUp
	}
	if in.Down {
		bits |= inputBitDown
	}
	if in.Left {
		bits |= inputBitLeft
	}
	if in.Right {
		bits |= inputBitRight
	}
	buf[headerSize] = bits
	return buf
}
