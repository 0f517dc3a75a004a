// Main package for a headless Pong client: it fetches a credential from the
// bootstrap service, joins the game transport, and plays a simple
// ball-tracking policy. Useful for exercising a server without a renderer.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cadyn/pong-netcode/internal"
	"github.com/cadyn/pong-netcode/pkg/client"
	"github.com/cadyn/pong-netcode/pkg/credential"
	"github.com/cadyn/pong-netcode/pkg/game"
	"github.com/cadyn/pong-netcode/pkg/transport"
)

func main() {
	logger := zap.Must(zap.NewProduction())
	if os.Getenv("APP_ENV") != "production" {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	//
	// Flags
	bootstrapAddr := flag.String("bootstrap-addr", "127.0.0.1:5001", "TCP address of the credential bootstrap service")
	wsUrl := flag.String("ws-url", "ws://127.0.0.1:5000/play", "WebSocket URL of the game transport")
	idle := flag.Bool("idle", false, "Hold the paddle still instead of tracking the ball")
	flag.Parse()

	clientId := internal.NewWallClockId()
	log := logger.With(zap.Uint64("clientId", clientId))

	blob, credErr := credential.Request(*bootstrapAddr, clientId)
	if credErr != nil {
		log.Error("Failed to fetch credential", zap.Error(credErr))
		return
	}
	log.Info("Credential issued", zap.Int("blobSize", len(blob)))

	ctx, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()

	conn, dialErr := transport.Dial(ctx, transport.DialParams{
		Url:        *wsUrl,
		ClientId:   clientId,
		Credential: blob,
		Logger:     logger,
	})
	if dialErr != nil {
		log.Error("Failed to join game transport", zap.Error(dialErr))
		return
	}

	sim := game.NewPong()
	var runtime *client.Client
	runtime = client.NewClient(client.ClientParams{
		Conn:   conn,
		Sim:    sim,
		Input:  ballTracker(sim, func() (game.Slot, bool) { return runtime.Slot() }, *idle),
		OnTick: scoreReporter(log),
		Logger: logger,
	})

	// Stop cleanly when the server ends the session out from under us.
	go func() {
		select {
		case <-conn.Done():
			log.Info("Session ended by server")
			release()
		case <-ctx.Done():
		}
	}()

	runtime.Run(ctx)
	log.Info("Client shut down cleanly")
}

// ballTracker moves the paddle toward the ball's height, with a small dead
// zone so it does not jitter around the target.
func ballTracker(sim game.Simulation, slot func() (game.Slot, bool), idle bool) client.InputSource {
	const deadZone = 12.0

	return func() game.InputSample {
		if idle {
			return game.InputSample{}
		}

		snap := sim.Snapshot()
		if !snap.Playing {
			return game.InputSample{}
		}

		side, assigned := slot()
		if !assigned {
			return game.InputSample{}
		}
		paddle := snap.PaddleLeft
		if side == game.SlotRight {
			paddle = snap.PaddleRight
		}

		diff := snap.BallPos.Y - paddle.Y
		switch {
		case diff > deadZone:
			return game.InputSample{Up: true}
		case diff < -deadZone:
			return game.InputSample{Down: true}
		default:
			return game.InputSample{}
		}
	}
}

// scoreReporter logs the score every few seconds. It runs inside the client
// tick loop, never against the simulation from a second goroutine.
func scoreReporter(log *zap.Logger) func(game.Snapshot) {
	var lastReport time.Time

	return func(snap game.Snapshot) {
		if time.Since(lastReport) < 5*time.Second {
			return
		}
		lastReport = time.Now()
		log.Info("Score",
			zap.Int32("left", snap.ScoreLeft),
			zap.Int32("right", snap.ScoreRight),
			zap.Bool("playing", snap.Playing))
	}
}
