// Package transport provides the channel-multiplexed session transport: three
// logical channels with distinct delivery semantics riding on one WebSocket
// connection per client, admission gated by a sealed credential. The session
// layer consumes it through the Conn contract and the server event stream.
package transport

// Channel identifiers, fixed for the lifetime of a session.
const (
	// ChannelMessages carries per-tick input samples (client to server)
	// and lobby notices (server to client). Reliable, ordered.
	ChannelMessages uint8 = 0
	// ChannelSnapshot carries full game snapshots, server to client.
	// Unreliable, sequenced, bounded queue depth.
	ChannelSnapshot uint8 = 1
	// ChannelLiveness carries liveness probes and check responses.
	// Reliable, ordered, used for nothing else.
	ChannelLiveness uint8 = 2

	ChannelCount = 3
)

type Delivery uint8

const (
	ReliableOrdered Delivery = iota
	UnreliableSequenced
)

type ChannelConfig struct {
	Id       uint8
	Delivery Delivery

	// QueueDepth bounds the receive queue for UnreliableSequenced
	// channels. Overflow drops the oldest queued message.
	QueueDepth int
}

type ChannelPlan [ChannelCount]ChannelConfig

// DefaultChannelPlan is two reliable ordered channels bracketing one
// unreliable sequenced channel with a 2048 message queue.
func DefaultChannelPlan() ChannelPlan {
	return ChannelPlan{
		{Id: ChannelMessages, Delivery: ReliableOrdered},
		{Id: ChannelSnapshot, Delivery: UnreliableSequenced, QueueDepth: 2048},
		{Id: ChannelLiveness, Delivery: ReliableOrdered},
	}
}

// Conn is one admitted client session as seen from either end.
// Send and Receive are safe to call from a single owning goroutine per end;
// the session tick loop is that owner on the server.
type Conn interface {
	// ClientId is the authenticated identity bound at admission. It comes
	// from the credential, never from message contents.
	ClientId() uint64

	// Send queues one payload on the given channel. Unreliable sends are
	// best-effort: a lost or dropped payload is not an error.
	Send(channel uint8, payload []byte) error

	// Receive pops the next pending payload on the given channel,
	// returning false when the channel is drained.
	Receive(channel uint8) ([]byte, bool)

	// Close tears the connection down. Server side this is the eviction
	// path; client side it sends the best-effort graceful-exit notice.
	Close() error
}

// Event is the transport-to-session notification stream.
type Event interface{ isTransportEvent() }

// Connected fires once a client passes credential admission.
type Connected struct {
	Conn Conn
}

// Disconnected fires on a clean close initiated by the peer.
type Disconnected struct {
	ClientId uint64
}

// TransportError is the catch-all failure signal. It deliberately carries no
// peer identity: the underlying transport conflates malformed packets, abrupt
// disconnects and transient faults, and the liveness monitor must treat every
// signal as "verify the whole session set".
type TransportError struct {
	Err error
}

func (Connected) isTransportEvent()      {}
func (Disconnected) isTransportEvent()   {}
func (TransportError) isTransportEvent() {}
