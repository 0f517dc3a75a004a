package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cadyn/pong-netcode/pkg/game"
	"github.com/cadyn/pong-netcode/pkg/message"
	"github.com/cadyn/pong-netcode/pkg/transport"
)

type ServerParams struct {
	Sim    game.Simulation
	Events <-chan transport.Event

	// TickRate is the fixed simulation and broadcast cadence.
	TickRate       time.Duration
	LivenessWindow time.Duration

	MagicNumber uint32
	Version     uint8

	Logger *zap.Logger
}

// Server runs the fixed-tick session loop. All session, lobby and liveness
// state lives here and is touched by no other goroutine: within one tick the
// loop drains every pending message before movement and broadcast, so no
// locking is needed anywhere in this package.
type Server struct {
	params ServerParams
	log    *zap.Logger

	sim      game.Simulation
	sessions map[uint64]*ClientSession
	lobby    *Lobby
	liveness *LivenessMonitor

	serverMessageSerializer message.ServerMessageSerializer
	clientMessageSerializer message.ClientMessageSerializer
	inputSerializer         message.InputSerializer
	snapshotSerializer      message.SnapshotSerializer

	now func() time.Time
}

func NewServer(params ServerParams) *Server {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.TickRate <= 0 {
		params.TickRate = game.PollRate
	}

	magicNumber := params.MagicNumber
	if magicNumber == 0 {
		magicNumber = message.DefaultMagicNumber
	}

	return &Server{
		params: params,
		log:    logger.With(zap.String("loop", "session")),

		sim:      params.Sim,
		sessions: make(map[uint64]*ClientSession),
		lobby:    NewLobby(),
		liveness: NewLivenessMonitor(params.LivenessWindow),

		serverMessageSerializer: message.ServerMessageSerializer{MagicNumber: magicNumber, Version: params.Version},
		clientMessageSerializer: message.ClientMessageSerializer{MagicNumber: magicNumber, Version: params.Version},
		inputSerializer:         message.InputSerializer{MagicNumber: magicNumber, Version: params.Version},
		snapshotSerializer:      message.SnapshotSerializer{MagicNumber: magicNumber, Version: params.Version},

		now: time.Now,
	}
}

// Run drives the tick loop until the context is canceled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.params.TickRate)
	defer ticker.Stop()

	s.log.Info("Session loop started", zap.Duration("tickRate", s.params.TickRate))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Session loop shutting down")
			s.shutdown()
			return
		case <-ticker.C:
			s.tick(s.now())
		}
	}
}

// tick runs one fixed simulation step: transport events, per-session message
// drains, liveness resolution, movement integration, snapshot broadcast.
func (s *Server) tick(now time.Time) {
	s.drainEvents(now)
	s.drainSessions()
	s.resolveLiveness(now)

	s.sim.Advance(s.params.TickRate)
	s.broadcastSnapshot()
}

func (s *Server) drainEvents(now time.Time) {
	for {
		select {
		case ev := <-s.params.Events:
			switch event := ev.(type) {
			case transport.Connected:
				s.handleConnected(event.Conn)
			case transport.Disconnected:
				s.disconnect(event.ClientId, "peer disconnected")
			case transport.TransportError:
				// Never fatal; the sole input to the liveness monitor.
				s.log.Warn("Transport error signal", zap.Error(event.Err))
				s.armProbe(now)
			}
		default:
			return
		}
	}
}

// handleConnected is the admission path after credential verification at the
// transport layer: find a free slot or turn the client away immediately.
func (s *Server) handleConnected(conn transport.Conn) {
	clientId := conn.ClientId()
	log := s.log.With(zap.Uint64("clientId", clientId))

	if _, already := s.sessions[clientId]; already {
		log.Warn("Client id already has a session, refusing")
		conn.Close()
		return
	}

	slot, assigned := s.lobby.Assign(clientId)
	if !assigned {
		// Normal control flow, not an error: capacity is two, no queue.
		log.Info("Lobby full, disconnecting new client")
		conn.Close()
		return
	}

	sess := &ClientSession{
		ClientId: clientId,
		Conn:     conn,
		Slot:     slot,
		State:    StateConnecting,
	}
	s.sessions[clientId] = sess

	// Tell the newcomer its own slot, then who is already here.
	s.send(sess, &message.ServerMessage{
		MessageType: message.ServerMessageType_Welcome,
		Welcome:     &message.Welcome{Slot: slot},
	})
	for _, member := range s.lobby.Members() {
		if member.ClientId == clientId {
			continue
		}
		s.send(sess, &message.ServerMessage{
			MessageType:   message.ServerMessageType_PeerConnected,
			PeerConnected: &message.PeerConnected{ClientId: member.ClientId, Slot: member.Slot},
		})
	}

	// Forward the connect notice to everyone else.
	s.broadcastMessage(&message.ServerMessage{
		MessageType:   message.ServerMessageType_PeerConnected,
		PeerConnected: &message.PeerConnected{ClientId: clientId, Slot: slot},
	}, clientId)

	sess.State = StateActive
	log.Info("Player connected", zap.String("slot", slot.String()))

	if s.lobby.Count() == 2 {
		// Signal intent only; the simulation performs the recenter on its
		// next step, never this system.
		s.sim.RequestReset()
		s.sim.SetPlaying(true)
		s.log.Info("Both slots occupied, gameplay active")
	}
}

// disconnect releases the slot and tells the survivors. Both the explicit
// path (clean close) and the forced path (liveness eviction) end up here.
func (s *Server) disconnect(clientId uint64, reason string) {
	sess, has := s.sessions[clientId]
	if !has {
		return
	}

	delete(s.sessions, clientId)
	s.lobby.Release(clientId)
	sess.Conn.Close()

	s.broadcastMessage(&message.ServerMessage{
		MessageType:      message.ServerMessageType_PeerDisconnected,
		PeerDisconnected: &message.PeerDisconnected{ClientId: clientId},
	}, clientId)

	s.log.Info("Player disconnected", zap.Uint64("clientId", clientId), zap.String("reason", reason))

	// Gameplay only proceeds with exactly two occupied slots.
	if s.lobby.Count() <= 1 {
		s.sim.SetPlaying(false)
		s.sim.ResetScores()
	}
}

// drainSessions empties every pending channel-0 and channel-2 message for
// every session. Order across sessions is unspecified; within a session the
// last input received this tick wins.
func (s *Server) drainSessions() {
	for _, sess := range s.sessions {
		for {
			raw, pending := sess.Conn.Receive(transport.ChannelMessages)
			if !pending {
				break
			}
			input, parseErr := s.inputSerializer.Parse(raw)
			if parseErr != nil {
				// Recoverable: drop the message, keep the session.
				s.log.Warn("Dropping malformed input message", zap.Uint64("clientId", sess.ClientId), zap.Error(parseErr))
				continue
			}
			sess.lastInput = input
			sess.hasInput = true
		}

		for {
			raw, pending := sess.Conn.Receive(transport.ChannelLiveness)
			if !pending {
				break
			}
			parsed, parseErr := s.clientMessageSerializer.Parse(raw)
			if parseErr != nil {
				s.log.Warn("Dropping malformed client message", zap.Uint64("clientId", sess.ClientId), zap.Error(parseErr))
				continue
			}
			if parsed.MessageType == message.ClientMessageType_CheckResponse {
				s.handleCheckResponse(sess, parsed.CheckResponse)
			}
		}

		if sess.hasInput {
			s.sim.SetInput(sess.Slot, sess.lastInput)
		}
	}
}

func (s *Server) handleCheckResponse(sess *ClientSession, resp *message.CheckResponse) {
	// The claimed id is only trusted when it matches the authenticated
	// sender; a client cannot vouch for another's liveness.
	if s.liveness.Collect(sess.ClientId, resp.ClaimedId, resp.Nonce) {
		sess.State = StateActive
		return
	}
	if resp.ClaimedId != sess.ClientId {
		s.log.Warn("Spoofed check response ignored",
			zap.Uint64("senderId", sess.ClientId),
			zap.Uint64("claimedId", resp.ClaimedId))
	}
}

// armProbe starts a liveness cycle unless one is already in flight.
func (s *Server) armProbe(now time.Time) {
	nonce, armed := s.liveness.Arm(now)
	if !armed {
		return
	}

	s.log.Info("Probing all sessions for liveness", zap.Int("sessions", len(s.sessions)))

	probe := &message.ServerMessage{
		MessageType:   message.ServerMessageType_LivenessProbe,
		LivenessProbe: &message.LivenessProbe{Nonce: nonce},
	}
	raw, serializeErr := s.serverMessageSerializer.Serialize(probe)
	if serializeErr != nil {
		s.log.Error("Failed to serialize liveness probe", zap.Error(serializeErr))
		return
	}

	for _, sess := range s.sessions {
		if sendErr := sess.Conn.Send(transport.ChannelLiveness, raw); sendErr != nil {
			s.log.Warn("Failed to send liveness probe", zap.Uint64("clientId", sess.ClientId), zap.Error(sendErr))
		}
		sess.State = StateAwaitingLivenessResponse
	}

	s.liveness.BeginCollecting()
}

// resolveLiveness evicts every probed session that failed to answer within
// the window. This is the only mechanism that reclaims slots from peers that
// vanished without an explicit disconnect.
func (s *Server) resolveLiveness(now time.Time) {
	collected, expired := s.liveness.Expire(now)
	if !expired {
		return
	}

	var evict []uint64
	for clientId, sess := range s.sessions {
		if sess.State != StateAwaitingLivenessResponse {
			continue
		}
		if _, responded := collected[clientId]; responded {
			sess.State = StateActive
			continue
		}
		evict = append(evict, clientId)
	}

	for _, clientId := range evict {
		s.disconnect(clientId, "liveness window expired")
	}
}

func (s *Server) broadcastSnapshot() {
	raw := s.snapshotSerializer.Serialize(s.sim.Snapshot())
	for _, sess := range s.sessions {
		if sess.State == StateConnecting {
			continue
		}
		// Best-effort by design; the client converges on whatever is
		// newest.
		sess.Conn.Send(transport.ChannelSnapshot, raw)
	}
}

func (s *Server) broadcastMessage(msg *message.ServerMessage, excludeClientId uint64) {
	raw, serializeErr := s.serverMessageSerializer.Serialize(msg)
	if serializeErr != nil {
		s.log.Error("Failed to serialize server message", zap.Error(serializeErr))
		return
	}
	for clientId, sess := range s.sessions {
		if clientId == excludeClientId {
			continue
		}
		if sendErr := sess.Conn.Send(transport.ChannelMessages, raw); sendErr != nil {
			s.log.Warn("Failed to send server message", zap.Uint64("clientId", clientId), zap.Error(sendErr))
		}
	}
}

func (s *Server) send(sess *ClientSession, msg *message.ServerMessage) {
	raw, serializeErr := s.serverMessageSerializer.Serialize(msg)
	if serializeErr != nil {
		s.log.Error("Failed to serialize server message", zap.Error(serializeErr))
		return
	}
	if sendErr := sess.Conn.Send(transport.ChannelMessages, raw); sendErr != nil {
		s.log.Warn("Failed to send server message", zap.Uint64("clientId", sess.ClientId), zap.Error(sendErr))
	}
}

func (s *Server) shutdown() {
	for clientId := range s.sessions {
		s.disconnect(clientId, "server shutdown")
	}
}
