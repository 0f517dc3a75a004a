package transport

import (
	"context"
	goerrs "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cadyn/pong-netcode/pkg/credential"
	utils "github.com/cadyn/pong-netcode/pkg/util"
)

type DuplicateClientIdError struct {
	Id uint64
}

func (e *DuplicateClientIdError) Error() string {
	return fmt.Sprintf("Attempted to admit client with duplicate ID %d", e.Id)
}

type WebsocketServerParams struct {
	ListenAddress  string
	ListenEndpoint string

	// ProtocolId and ServerAddr are checked against credential claims at
	// admission. An empty ServerAddr disables the address check (useful
	// behind NAT or in tests).
	ProtocolId uint64
	ServerAddr string

	Plan ChannelPlan

	MaxReadMessageSize int64
	EventBufferLength  int

	Logger *zap.Logger
}

type websocketServer struct {
	upgrader *websocket.Upgrader

	params WebsocketServerParams
	key    *credential.Key

	events chan Event

	mut_connections sync.RWMutex
	connections     map[uint64]*wsConn

	log       *zap.Logger
	stringGen *utils.RandomStringGenerator
}

// CreateWebsocketServer builds the server side of the channel transport.
// Admission contract: the first binary message on a fresh socket must be a
// credential blob sealed with the process key; everything after the verdict
// is channel-framed traffic.
func CreateWebsocketServer(key *credential.Key, params WebsocketServerParams) (*websocketServer, error) {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	eventBufferLength := 64
	if params.EventBufferLength > 0 {
		eventBufferLength = params.EventBufferLength
	}

	var emptyPlan ChannelPlan
	if params.Plan == emptyPlan {
		params.Plan = DefaultChannelPlan()
	}

	return &websocketServer{
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		params: params,
		key:    key,
		events: make(chan Event, eventBufferLength),

		mut_connections: sync.RWMutex{},
		connections:     make(map[uint64]*wsConn),

		log:       logger.With(zap.String("handler", "WebSocket")),
		stringGen: utils.CreateRandomStringGenerator(time.Now().UnixMicro()),
	}, nil
}

// Events is the notification stream consumed by the session tick loop.
func (ws *websocketServer) Events() <-chan Event {
	return ws.events
}

func (ws *websocketServer) emit(ev Event) {
	// The session loop drains every tick; if it somehow stalls, shedding
	// an event is still better than wedging a reader goroutine.
	select {
	case ws.events <- ev:
	default:
		ws.log.Warn("Transport event buffer full, dropping event")
	}
}

func (ws *websocketServer) onWsRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := ws.log.With(
		zap.String("wsConnId", ws.stringGen.GetRandomString(6)),
	)

	log.Info("New WebSocket request")
	c, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade HTTP request to WebSocket connection", zap.Error(err))
		return
	}

	defer c.Close()

	if ws.params.MaxReadMessageSize > 0 {
		c.SetReadLimit(ws.params.MaxReadMessageSize)
	}

	conn, admitErr := ws.admit(log, c)
	if admitErr != nil {
		log.Warn("Client refused at admission", zap.Error(admitErr))
		c.WriteMessage(websocket.BinaryMessage, encodeVerdict(false, admitErr.Error()))
		return
	}

	log = log.With(zap.Uint64("clientId", conn.clientId))

	err = func() error {
		ws.mut_connections.Lock()
		defer ws.mut_connections.Unlock()

		if _, has := ws.connections[conn.clientId]; has {
			return &DuplicateClientIdError{Id: conn.clientId}
		}
		ws.connections[conn.clientId] = conn
		return nil
	}()
	if err != nil {
		// Client ids derive from wall-clock milliseconds at connect time,
		// so near-simultaneous connects can collide; refuse the later one
		// rather than corrupting the session table.
		log.Warn("Duplicate client id at admission", zap.Error(err))
		c.WriteMessage(websocket.BinaryMessage, encodeVerdict(false, err.Error()))
		return
	}
	defer func() {
		ws.mut_connections.Lock()
		defer ws.mut_connections.Unlock()
		delete(ws.connections, conn.clientId)
	}()

	if writeErr := c.WriteMessage(websocket.BinaryMessage, encodeVerdict(true, "")); writeErr != nil {
		log.Error("Failed to write admission verdict", zap.Error(writeErr))
		return
	}

	log.Info("Client admitted")
	ws.emit(Connected{Conn: conn})

	ws.readLoop(ctx, log, conn)
}

// admit enforces the credential gate: open the blob with the process key,
// then validate its claims against this server's identity and clock.
func (ws *websocketServer) admit(log *zap.Logger, c *websocket.Conn) (*wsConn, error) {
	msgType, payload, msgErr := c.ReadMessage()
	if msgErr != nil {
		return nil, msgErr
	}
	if msgType != websocket.BinaryMessage {
		return nil, &NonBinaryMessage{}
	}

	cred, openErr := credential.Open(ws.key, payload)
	if openErr != nil {
		return nil, openErr
	}
	if validateErr := cred.Validate(time.Now(), ws.params.ProtocolId, ws.params.ServerAddr); validateErr != nil {
		return nil, validateErr
	}

	log.Debug("Credential accepted", zap.Uint64("clientId", cred.ClientId))

	return newWsConn(cred.ClientId, c, ws.params.Plan, ws.emit), nil
}

// readLoop pumps frames into the per-channel receive queues until the socket
// dies. A clean close surfaces as Disconnected; anything abnormal surfaces as
// an identityless TransportError and leaves the session registered - only the
// liveness monitor may evict it.
func (ws *websocketServer) readLoop(ctx context.Context, log *zap.Logger, conn *wsConn) {
	expectedCloseErrors := []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived}

	for {
		msgType, payload, msgErr := conn.sock.ReadMessage()
		if msgErr != nil {
			if websocket.IsCloseError(msgErr, expectedCloseErrors...) {
				log.Info("Received close from client, treating as graceful exit")
				ws.emit(Disconnected{ClientId: conn.clientId})
				return
			}

			if strings.Contains(msgErr.Error(), "use of closed network connection") {
				log.Info("Connection closed locally, exiting read loop")
				return
			}

			if ctx.Err() != nil {
				return
			}

			log.Warn("Abnormal socket failure, raising transport error", zap.Error(msgErr))
			ws.emit(TransportError{Err: msgErr})
			return
		}

		if msgType != websocket.BinaryMessage {
			log.Info("Received non-binary message, ignoring", zap.Int("size", len(payload)))
			continue
		}

		channel, seq, framePayload, frameErr := decodeFrame(ws.params.Plan, payload)
		if frameErr != nil {
			// Recoverable: drop the one frame, keep the session.
			log.Warn("Failed to decode frame, dropping", zap.Error(frameErr))
			ws.emit(TransportError{Err: frameErr})
			continue
		}

		conn.inbound[channel].push(seq, framePayload)
	}
}

func (ws *websocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.params.ListenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		ws.onWsRequest(ctx, w, r)
	})

	server := &http.Server{
		Addr:    ws.params.ListenAddress,
		Handler: mux,
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()

		ws.log.Sugar().Infof("Starting WebSocket server at %s", ws.params.ListenAddress)
		if err := server.ListenAndServe(); !goerrs.Is(err, http.ErrServerClosed) {
			ws.log.Error("Unexpected WebSocket server close!", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()

		shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownRelease()
		ws.log.Info("Attempting to trigger shutdown of WebSocket server")

		if err := server.Shutdown(shutdownCtx); err != nil {
			ws.log.Error("Failed to gracefully shut down WebSocket server", zap.Error(err))
			return
		}
		ws.log.Info("Successfully shutdown WebSocket server")
	}()

	wg.Wait()
	return nil
}

type NonBinaryMessage struct{}

func (m *NonBinaryMessage) Error() string {
	return "Non binary message received"
}
