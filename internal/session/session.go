// Package session is the authoritative server-side session layer: it owns
// the lobby, relays per-tick inputs into the simulation, replicates state
// back out, and runs the liveness protocol that reclaims slots from peers
// that vanished without a disconnect.
package session

import (
	"github.com/cadyn/pong-netcode/pkg/game"
	"github.com/cadyn/pong-netcode/pkg/transport"
)

type SessionState uint8

const (
	// StateConnecting covers the window between transport admission and
	// slot assignment within the same tick.
	StateConnecting SessionState = iota
	StateActive
	// StateAwaitingLivenessResponse marks sessions probed by the current
	// liveness cycle; only these are candidates for eviction when the
	// window expires.
	StateAwaitingLivenessResponse
)

// ClientSession is one admitted client. Owned exclusively by the tick loop;
// created on admission, destroyed on explicit or forced disconnect.
type ClientSession struct {
	ClientId uint64
	Conn     transport.Conn
	Slot     game.Slot
	State    SessionState

	// lastInput is the authoritative sample for this tick; newer arrivals
	// within the same tick supersede it, they never accumulate.
	lastInput game.InputSample
	hasInput  bool
}
