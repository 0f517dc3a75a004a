package session

import (
	"math/rand"
	"time"
)

// DefaultLivenessWindow is how long a probe cycle collects responses before
// resolving.
const DefaultLivenessWindow = 3 * time.Second

type LivenessState uint8

const (
	LivenessIdle LivenessState = iota
	LivenessProbing
	LivenessCollecting
)

// LivenessMonitor resolves ambiguous transport errors into confirmed-alive
// or forcibly-evicted peers. One shared cycle covers the whole session set:
// the transport cannot say which peer failed, so the monitor never guesses.
//
// The machine moves Idle -> Probing -> Collecting -> Idle; re-arming inside
// a burst of errors is impossible by construction because only Idle arms.
type LivenessMonitor struct {
	state    LivenessState
	window   time.Duration
	deadline time.Time

	nonce     uint64
	collected map[uint64]struct{}
}

func NewLivenessMonitor(window time.Duration) *LivenessMonitor {
	if window <= 0 {
		window = DefaultLivenessWindow
	}
	return &LivenessMonitor{
		state:     LivenessIdle,
		window:    window,
		collected: make(map[uint64]struct{}),
	}
}

func (m *LivenessMonitor) State() LivenessState {
	return m.state
}

// Arm begins a probe cycle on the first transport-error signal. Signals
// arriving while a cycle is already in flight are ignored - edge-triggered,
// not level-triggered. The returned nonce identifies this cycle and must be
// echoed by every check response.
func (m *LivenessMonitor) Arm(now time.Time) (nonce uint64, armed bool) {
	if m.state != LivenessIdle {
		return 0, false
	}

	m.state = LivenessProbing
	m.nonce = rand.Uint64()
	m.deadline = now.Add(m.window)
	return m.nonce, true
}

// BeginCollecting moves Probing to Collecting once the caller has broadcast
// the probe.
func (m *LivenessMonitor) BeginCollecting() {
	if m.state == LivenessProbing {
		m.state = LivenessCollecting
	}
}

// Collect accepts one check response. The claimed id must match the
// authenticated sender of the channel it arrived on - one client can never
// vouch for another's liveness - and the nonce must belong to this cycle.
func (m *LivenessMonitor) Collect(senderId, claimedId, nonce uint64) bool {
	if m.state != LivenessCollecting {
		return false
	}
	if claimedId != senderId || nonce != m.nonce {
		return false
	}

	m.collected[senderId] = struct{}{}
	return true
}

// Expire resolves the cycle once the window has elapsed: it hands back the
// collected set and returns to Idle, ready to re-arm on a future signal.
func (m *LivenessMonitor) Expire(now time.Time) (map[uint64]struct{}, bool) {
	if m.state != LivenessCollecting || now.Before(m.deadline) {
		return nil, false
	}

	collected := m.collected
	m.collected = make(map[uint64]struct{})
	m.state = LivenessIdle
	m.nonce = 0
	return collected, true
}
