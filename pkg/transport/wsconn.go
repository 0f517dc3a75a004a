package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

type ConnClosedError struct {
	ClientId uint64
}

func (e *ConnClosedError) Error() string {
	return fmt.Sprintf("Connection for client %d is closed", e.ClientId)
}

// wsConn multiplexes the three logical channels over one WebSocket. The
// socket itself is reliable and ordered, so channels 0 and 2 get their
// guarantees for free; channel 1's unreliable-sequenced semantics come from
// sequence numbers and the bounded drop-oldest receive queue.
type wsConn struct {
	clientId uint64
	sock     *websocket.Conn
	plan     ChannelPlan

	inbound [ChannelCount]*inboundQueue

	mut_send sync.Mutex
	sendSeq  [ChannelCount]uint16

	closed atomic.Bool

	// onError funnels abnormal write failures to the owning side: the
	// server wraps them into identityless TransportError events, the
	// client just logs.
	onError func(error)
}

func newWsConn(clientId uint64, sock *websocket.Conn, plan ChannelPlan, emit func(Event)) *wsConn {
	conn := &wsConn{
		clientId: clientId,
		sock:     sock,
		plan:     plan,
		inbound:  newInboundQueues(plan),
	}
	if emit != nil {
		conn.onError = func(err error) { emit(TransportError{Err: err}) }
	}
	return conn
}

func (c *wsConn) ClientId() uint64 {
	return c.clientId
}

func (c *wsConn) Send(channel uint8, payload []byte) error {
	if int(channel) >= ChannelCount {
		return &errors.InvalidEnumValue{EnumName: "Channel", IntValue: channel}
	}
	if c.closed.Load() {
		return &ConnClosedError{ClientId: c.clientId}
	}

	c.mut_send.Lock()
	defer c.mut_send.Unlock()

	cfg := c.plan[channel]
	var seq uint16
	if cfg.Delivery == UnreliableSequenced {
		c.sendSeq[channel]++
		seq = c.sendSeq[channel]
	}

	writeErr := c.sock.WriteMessage(websocket.BinaryMessage, encodeFrame(cfg, seq, payload))
	if writeErr != nil {
		if c.onError != nil {
			c.onError(writeErr)
		}
		if cfg.Delivery == UnreliableSequenced {
			// Best-effort channel: a lost snapshot is not an error.
			return nil
		}
		return writeErr
	}
	return nil
}

func (c *wsConn) Receive(channel uint8) ([]byte, bool) {
	if int(channel) >= ChannelCount {
		return nil, false
	}
	return c.inbound[channel].pop()
}

func (c *wsConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Best-effort close notice; provides no delivery guarantee on its own.
	c.mut_send.Lock()
	c.sock.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.mut_send.Unlock()

	return c.sock.Close()
}
