package message

import (
	"encoding/binary"
	"math"

	"github.com/cadyn/pong-netcode/pkg/errors"
	"github.com/cadyn/pong-netcode/pkg/game"
)

// Snapshots are the only traffic on channel 1, single-type codec like the
// input sample. Layout after the header: four Vec2s, two int32 scores, one
// playing byte.
const snapshotMessageTypeId uint8 = 0x2

const snapshotBodySize = 4*8 + 4 + 4 + 1

type SnapshotSerializer struct {
	MagicNumber uint32
	Version     uint8
}

func (s SnapshotSerializer) Parse(msg []byte) (game.Snapshot, error) {
	msgTypeNum, headerErr := parseHeader(msg, "Snapshot", s.MagicNumber, s.Version)
	if headerErr != nil {
		return game.Snapshot{}, headerErr
	}
	if msgTypeNum != snapshotMessageTypeId {
		return game.Snapshot{}, &errors.InvalidEnumValue{
			EnumName: "Snapshot::MessageType",
			IntValue: msgTypeNum,
		}
	}

	body := msg[headerSize:]
	if len(body) < snapshotBodySize {
		return game.Snapshot{}, &errors.Underflow{
			MessageName: "Snapshot",
			MsgSize:     len(body),
			MinimumSize: snapshotBodySize,
		}
	}

	snap := game.Snapshot{}
	ptr := 0
	snap.BallPos, ptr = parseVec2(body, ptr)
	snap.BallVel, ptr = parseVec2(body, ptr)
	snap.PaddleLeft, ptr = parseVec2(body, ptr)
	snap.PaddleRight, ptr = parseVec2(body, ptr)
	snap.ScoreLeft = int32(binary.LittleEndian.Uint32(body[ptr : ptr+4]))
	snap.ScoreRight = int32(binary.LittleEndian.Uint32(body[ptr+4 : ptr+8]))
	snap.Playing = body[ptr+8] != 0
	return snap, nil
}

func (s SnapshotSerializer) Serialize(snap game.Snapshot) []byte {
	buf := make([]byte, headerSize+snapshotBodySize)
	serializeHeader(buf, s.MagicNumber, s.Version, snapshotMessageTypeId)

	body := buf[headerSize:]
	ptr := 0
	ptr = putVec2(body, ptr, snap.BallPos)
	ptr = putVec2(body, ptr, snap.BallVel)
	ptr = putVec2(body, ptr, snap.PaddleLeft)
	ptr = putVec2(body, ptr, snap.PaddleRight)
	binary.LittleEndian.PutUint32(body[ptr:ptr+4], uint32(snap.ScoreLeft))
	binary.LittleEndian.PutUint32(body[ptr+4:ptr+8], uint32(snap.ScoreRight))
	if snap.Playing {
		body[ptr+8] = 1
	}
	return buf
}

func parseVec2(body []byte, ptr int) (game.Vec2, int) {
	v := game.Vec2{
		X: math.Float32frombits(binary.LittleEndian.Uint32(body[ptr : ptr+4])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(body[ptr+4 : ptr+8])),
	}
	return v, ptr + 8
}

func putVec2(body []byte, ptr int, v game.Vec2) int {
	binary.LittleEndian.PutUint32(body[ptr:ptr+4], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(body[ptr+4:ptr+8], math.Float32bits(v.Y))
	return ptr + 8
}
