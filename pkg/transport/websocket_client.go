package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

type DialParams struct {
	// Url is the WebSocket endpoint, e.g. "ws://127.0.0.1:5000/play".
	Url string

	// ClientId must match the identity sealed inside the credential; it
	// is what the local side reports from Conn.ClientId.
	ClientId uint64

	// Credential is the sealed blob from the bootstrap handshake,
	// consumed exactly once here.
	Credential []byte

	Plan ChannelPlan

	Logger *zap.Logger
}

// ClientConn is the client end of an admitted session.
type ClientConn struct {
	*wsConn

	log  *zap.Logger
	done chan struct{}
}

// Done is closed when the server ends the session or the socket dies.
func (c *ClientConn) Done() <-chan struct{} {
	return c.done
}

// Dial connects, presents the credential, and waits for the admission
// verdict before handing the connection over.
func Dial(ctx context.Context, params DialParams) (*ClientConn, error) {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	log := logger.With(zap.String("handler", "WebSocketClient"), zap.Uint64("clientId", params.ClientId))

	var emptyPlan ChannelPlan
	if params.Plan == emptyPlan {
		params.Plan = DefaultChannelPlan()
	}

	sock, _, dialErr := websocket.DefaultDialer.DialContext(ctx, params.Url, nil)
	if dialErr != nil {
		return nil, dialErr
	}

	if writeErr := sock.WriteMessage(websocket.BinaryMessage, params.Credential); writeErr != nil {
		sock.Close()
		return nil, writeErr
	}

	msgType, payload, readErr := sock.ReadMessage()
	if readErr != nil {
		sock.Close()
		return nil, readErr
	}
	if msgType != websocket.BinaryMessage {
		sock.Close()
		return nil, &NonBinaryMessage{}
	}

	accepted, reason, verdictErr := decodeVerdict(payload)
	if verdictErr != nil {
		sock.Close()
		return nil, verdictErr
	}
	if !accepted {
		sock.Close()
		return nil, &errors.CredentialRejected{Reason: fmt.Sprintf("server refused admission: %s", reason)}
	}

	conn := &ClientConn{
		wsConn: newWsConn(params.ClientId, sock, params.Plan, nil),
		log:    log,
		done:   make(chan struct{}),
	}
	conn.onError = func(err error) {
		log.Warn("Socket write failure", zap.Error(err))
	}

	go conn.readLoop()

	log.Info("Admitted to server")
	return conn, nil
}

func (c *ClientConn) readLoop() {
	defer close(c.done)

	expectedCloseErrors := []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived}

	for {
		msgType, payload, msgErr := c.sock.ReadMessage()
		if msgErr != nil {
			if websocket.IsCloseError(msgErr, expectedCloseErrors...) {
				c.log.Info("Server closed the session")
				return
			}
			if strings.Contains(msgErr.Error(), "use of closed network connection") {
				return
			}
			c.log.Warn("Socket read failure, session over", zap.Error(msgErr))
			return
		}

		if msgType != websocket.BinaryMessage {
			continue
		}

		channel, seq, framePayload, frameErr := decodeFrame(c.plan, payload)
		if frameErr != nil {
			c.log.Warn("Failed to decode frame, dropping", zap.Error(frameErr))
			continue
		}

		c.inbound[channel].push(seq, framePayload)
	}
}
