package internal

import "time"

// NewWallClockId derives a client identifier from wall-clock milliseconds at
// connect time. Two clients connecting in the same millisecond collide; the
// transport refuses the later duplicate at admission, but nothing here makes
// the ids unique.
func NewWallClockId() uint64 {
	return uint64(time.Now().UnixMilli())
}
