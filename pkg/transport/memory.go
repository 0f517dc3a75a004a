package transport

import (
	goerrs "errors"
	"sync"
	"sync/atomic"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

// MemoryHub is an in-process stand-in for the WebSocket transport: same
// channel plan, same event contract, no sockets. It exists for tests and
// local experiments, with fault hooks the real network provides for free -
// silent peer loss and identityless error signals.
type MemoryHub struct {
	plan   ChannelPlan
	events chan Event
}

func NewMemoryHub(plan ChannelPlan) *MemoryHub {
	var emptyPlan ChannelPlan
	if plan == emptyPlan {
		plan = DefaultChannelPlan()
	}
	return &MemoryHub{
		plan:   plan,
		events: make(chan Event, 64),
	}
}

func (h *MemoryHub) Events() <-chan Event {
	return h.events
}

// SignalError injects the catch-all transport error signal, exactly as
// identityless as the real one.
func (h *MemoryHub) SignalError(err error) {
	h.events <- TransportError{Err: err}
}

// Connect admits a client and returns the client-side end. The server-side
// end arrives through the event stream, as with the real transport.
func (h *MemoryHub) Connect(clientId uint64) *MemoryConn {
	vanished := &atomic.Bool{}

	serverEnd := &MemoryConn{
		hub:      h,
		clientId: clientId,
		inbound:  newInboundQueues(h.plan),
		vanished: vanished,
		isServer: true,
	}
	clientEnd := &MemoryConn{
		hub:      h,
		clientId: clientId,
		inbound:  newInboundQueues(h.plan),
		vanished: vanished,
	}
	serverEnd.peer = clientEnd
	clientEnd.peer = serverEnd

	h.events <- Connected{Conn: serverEnd}
	return clientEnd
}

// MemoryConn is one end of an in-memory session.
type MemoryConn struct {
	hub      *MemoryHub
	clientId uint64
	peer     *MemoryConn

	inbound [ChannelCount]*inboundQueue

	mut_send sync.Mutex
	sendSeq  [ChannelCount]uint16

	closed   atomic.Bool
	vanished *atomic.Bool

	isServer bool
}

var _ Conn = (*MemoryConn)(nil)

func (c *MemoryConn) ClientId() uint64 {
	return c.clientId
}

func (c *MemoryConn) Send(channel uint8, payload []byte) error {
	if int(channel) >= ChannelCount {
		return &errors.InvalidEnumValue{EnumName: "Channel", IntValue: channel}
	}
	if c.closed.Load() {
		return &ConnClosedError{ClientId: c.clientId}
	}

	c.mut_send.Lock()
	defer c.mut_send.Unlock()

	var seq uint16
	if c.hub.plan[channel].Delivery == UnreliableSequenced {
		c.sendSeq[channel]++
		seq = c.sendSeq[channel]
	}

	// A vanished peer swallows traffic without erroring, like datagrams
	// sent to a host that is no longer there.
	if c.vanished.Load() {
		return nil
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.peer.inbound[channel].push(seq, cp)
	return nil
}

func (c *MemoryConn) Receive(channel uint8) ([]byte, bool) {
	if int(channel) >= ChannelCount {
		return nil, false
	}
	return c.inbound[channel].pop()
}

// Close on the client end is a clean disconnect: the server learns about it.
// Close on the server end is the eviction path and emits nothing.
func (c *MemoryConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.peer.closed.Store(true)

	if !c.isServer && !c.vanished.Load() {
		c.hub.events <- Disconnected{ClientId: c.clientId}
	}
	return nil
}

// Vanish simulates a force-quit: the peer is gone, no disconnect notice is
// ever sent, and the only evidence is a generic transport error.
func (c *MemoryConn) Vanish() {
	c.vanished.Store(true)
	c.hub.SignalError(errPeerVanished)
}

var errPeerVanished = goerrs.New("transport: i/o failure on datagram exchange")
