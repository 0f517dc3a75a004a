// Package message holds the wire codecs for every logical channel. All
// messages share a 5-byte header: a little-endian magic number and a packed
// version/type byte (version in the high nibble, message type in the low
// nibble).
package message

import (
	"encoding/binary"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

const (
	// DefaultMagicNumber spells "PONG".
	DefaultMagicNumber uint32 = 0x504F4E47
	DefaultVersion     uint8  = 0

	headerSize = 5
)

func serializeHeader(buf []byte, magicNumber uint32, version uint8, msgType uint8) {
	binary.LittleEndian.PutUint32(buf[0:4], magicNumber)
	buf[4] = (version&0xF)<<4 | (msgType & 0xF)
}

func parseHeader(msg []byte, messageName string, magicNumber uint32, version uint8) (uint8, error) {
	if len(msg) < headerSize {
		return 0, &errors.Underflow{
			MessageName: messageName,
			MsgSize:     len(msg),
			MinimumSize: headerSize,
		}
	}

	actualMagicNumber := binary.LittleEndian.Uint32(msg[0:4])
	versionTypeByte := msg[4]
	actualVersion := versionTypeByte & 0xF0 >> 4
	msgType := versionTypeByte & 0xF

	if actualMagicNumber != magicNumber || actualVersion != version {
		return 0, &errors.InvalidHeaderVersion{
			ExpectedMagicNumber: magicNumber,
			ExpectedVersion:     version,
			ActualMagicNumber:   actualMagicNumber,
			ActualVersion:       actualVersion,
		}
	}

	return msgType, nil
}
