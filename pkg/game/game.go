// Package game defines the boundary between the session layer and the
// deterministic pong simulation. The session layer only ever talks to the
// simulation through the Simulation interface: it pulls full snapshots to
// broadcast, pushes received snapshots verbatim, hands over per-tick input
// samples, and flips the playing/reset flags.
package game

import "time"

// PollRate controls how often the server and client update each other.
const PollRate = time.Second / 60

// Slot is one of exactly two fixed game-side positions a client can occupy.
type Slot uint8

const (
	SlotLeft Slot = iota
	SlotRight
)

func (s Slot) String() string {
	if s == SlotLeft {
		return "left"
	}
	return "right"
}

// Vec2 is a 2D position or velocity in arena units.
type Vec2 struct {
	X float32
	Y float32
}

// InputSample is one tick's worth of directional input from a client.
type InputSample struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// Snapshot is the complete authoritative copy of all mutable game state at
// one instant. Clients apply it by full overwrite, never a partial merge.
type Snapshot struct {
	BallPos     Vec2
	BallVel     Vec2
	PaddleLeft  Vec2
	PaddleRight Vec2
	ScoreLeft   int32
	ScoreRight  int32
	Playing     bool
}

// Simulation is the session layer's view of the game. Implementations are
// not required to be safe for concurrent use; the session tick loop is the
// only caller on the server, and the client runtime is the only caller on
// the client.
type Simulation interface {
	// Snapshot produces the current authoritative state.
	Snapshot() Snapshot

	// Apply overwrites all mutable state with the given snapshot.
	Apply(s Snapshot)

	Playing() bool
	SetPlaying(playing bool)

	// RequestReset raises a one-shot flag; the simulation recenters
	// paddles and ball on its next Advance. The caller only signals
	// intent here, it never mutates entities directly.
	RequestReset()

	// SetInput records the authoritative input sample for one slot. The
	// sample is consumed by the next Advance.
	SetInput(slot Slot, in InputSample)

	// Advance integrates movement for one fixed tick.
	Advance(dt time.Duration)

	Scores() (left, right int32)
	ResetScores()
}
