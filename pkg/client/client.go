// Package client is the player-side session runtime: it pumps local input to
// the server every tick, answers liveness probes, and converges the local
// simulation on the newest server snapshot.
package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cadyn/pong-netcode/pkg/game"
	"github.com/cadyn/pong-netcode/pkg/message"
	"github.com/cadyn/pong-netcode/pkg/transport"
)

// InputSource samples the local player's controls once per tick.
type InputSource func() game.InputSample

type ClientParams struct {
	Conn  transport.Conn
	Sim   game.Simulation
	Input InputSource

	// OnTick, when set, observes the post-tick state. It runs on the loop
	// goroutine, which is the only goroutine allowed to touch the
	// simulation, so observers must not block.
	OnTick func(game.Snapshot)

	TickRate time.Duration

	MagicNumber uint32
	Version     uint8

	Logger *zap.Logger
}

// Client owns the per-tick exchange with the server. It never trusts its own
// simulation over the server's: every received snapshot overwrites local
// state wholesale, local stepping only smooths the frames in between.
type Client struct {
	params ClientParams
	log    *zap.Logger

	conn  transport.Conn
	sim   game.Simulation
	input InputSource

	slot    game.Slot
	hasSlot bool

	serverMessageSerializer message.ServerMessageSerializer
	clientMessageSerializer message.ClientMessageSerializer
	inputSerializer         message.InputSerializer
	snapshotSerializer      message.SnapshotSerializer
}

func NewClient(params ClientParams) *Client {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.TickRate <= 0 {
		params.TickRate = game.PollRate
	}
	if params.Input == nil {
		params.Input = func() game.InputSample { return game.InputSample{} }
	}

	magicNumber := params.MagicNumber
	if magicNumber == 0 {
		magicNumber = message.DefaultMagicNumber
	}

	return &Client{
		params: params,
		log:    logger.With(zap.String("loop", "client"), zap.Uint64("clientId", params.Conn.ClientId())),

		conn:  params.Conn,
		sim:   params.Sim,
		input: params.Input,

		serverMessageSerializer: message.ServerMessageSerializer{MagicNumber: magicNumber, Version: params.Version},
		clientMessageSerializer: message.ClientMessageSerializer{MagicNumber: magicNumber, Version: params.Version},
		inputSerializer:         message.InputSerializer{MagicNumber: magicNumber, Version: params.Version},
		snapshotSerializer:      message.SnapshotSerializer{MagicNumber: magicNumber, Version: params.Version},
	}
}

// Slot reports which side the server assigned, once the welcome arrives.
func (c *Client) Slot() (game.Slot, bool) {
	return c.slot, c.hasSlot
}

// Run drives the tick loop until the context is canceled, then closes the
// connection so the server sees a clean disconnect rather than a vanish.
func (c *Client) Run(ctx context.Context) {
	ticker := time.NewTicker(c.params.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Client loop shutting down")
			c.conn.Close()
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Client) tick() {
	c.drainNotices()
	c.drainProbes()
	c.applyNewestSnapshot()
	c.sendInput()
	c.sim.Advance(c.params.TickRate)

	if c.params.OnTick != nil {
		c.params.OnTick(c.sim.Snapshot())
	}
}

func (c *Client) drainNotices() {
	for {
		raw, pending := c.conn.Receive(transport.ChannelMessages)
		if !pending {
			return
		}
		parsed, parseErr := c.serverMessageSerializer.Parse(raw)
		if parseErr != nil {
			c.log.Warn("Dropping malformed server notice", zap.Error(parseErr))
			continue
		}

		switch parsed.MessageType {
		case message.ServerMessageType_Welcome:
			c.slot = parsed.Welcome.Slot
			c.hasSlot = true
			c.log.Info("Assigned slot", zap.String("slot", c.slot.String()))
		case message.ServerMessageType_PeerConnected:
			c.log.Info("Peer connected",
				zap.Uint64("peerId", parsed.PeerConnected.ClientId),
				zap.String("slot", parsed.PeerConnected.Slot.String()))
		case message.ServerMessageType_PeerDisconnected:
			c.log.Info("Peer disconnected", zap.Uint64("peerId", parsed.PeerDisconnected.ClientId))
		case message.ServerMessageType_LivenessProbe:
			// Probes belong on the liveness channel; tolerate strays.
			c.respondToProbe(parsed.LivenessProbe.Nonce)
		}
	}
}

func (c *Client) drainProbes() {
	for {
		raw, pending := c.conn.Receive(transport.ChannelLiveness)
		if !pending {
			return
		}
		parsed, parseErr := c.serverMessageSerializer.Parse(raw)
		if parseErr != nil {
			c.log.Warn("Dropping malformed probe", zap.Error(parseErr))
			continue
		}
		if parsed.MessageType != message.ServerMessageType_LivenessProbe {
			continue
		}
		c.respondToProbe(parsed.LivenessProbe.Nonce)
	}
}

// respondToProbe answers immediately with this client's own identity. The
// server discards claims made on behalf of anyone else.
func (c *Client) respondToProbe(nonce uint64) {
	raw, serializeErr := c.clientMessageSerializer.Serialize(&message.ClientMessage{
		MessageType:   message.ClientMessageType_CheckResponse,
		CheckResponse: &message.CheckResponse{ClaimedId: c.conn.ClientId(), Nonce: nonce},
	})
	if serializeErr != nil {
		c.log.Error("Failed to serialize check response", zap.Error(serializeErr))
		return
	}
	if sendErr := c.conn.Send(transport.ChannelLiveness, raw); sendErr != nil {
		c.log.Warn("Failed to answer liveness probe", zap.Error(sendErr))
	}
}

// applyNewestSnapshot drains the snapshot channel and overwrites local state
// with the last arrival. Older snapshots are skipped, never replayed.
func (c *Client) applyNewestSnapshot() {
	var newest game.Snapshot
	var any bool
	for {
		raw, pending := c.conn.Receive(transport.ChannelSnapshot)
		if !pending {
			break
		}
		snap, parseErr := c.snapshotSerializer.Parse(raw)
		if parseErr != nil {
			c.log.Warn("Dropping malformed snapshot", zap.Error(parseErr))
			continue
		}
		newest, any = snap, true
	}
	if any {
		c.sim.Apply(newest)
	}
}

func (c *Client) sendInput() {
	raw := c.inputSerializer.Serialize(c.input())
	if sendErr := c.conn.Send(transport.ChannelMessages, raw); sendErr != nil {
		c.log.Warn("Failed to send input sample", zap.Error(sendErr))
	}
}
