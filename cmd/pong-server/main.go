// Main package for the authoritative Pong session server: a TCP bootstrap
// service that issues sealed credentials, a WebSocket transport that admits
// credential holders, and the fixed-tick session loop on top.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/cadyn/pong-netcode/internal/session"
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
	configPath := flag.String("config", "", "Path to a TOML config file; flags below override it")
	bootstrapAddr := flag.String("bootstrap-addr", "", "TCP address for the credential bootstrap service")
	wsAddr := flag.String("ws-addr", "", "Address for the WebSocket game transport")
	wsEndpoint := flag.String("ws-endpoint", "", "HTTP endpoint that listens for WebSocket connections")
	flag.Parse()

	cfg := defaultServerConfig()
	if *configPath != "" {
		loaded, loadErr := loadServerConfig(*configPath)
		if loadErr != nil {
			logger.Error("Failed to load config", zap.Error(loadErr))
			return
		}
		cfg = loaded
	}
	if *bootstrapAddr != "" {
		cfg.BootstrapAddr = *bootstrapAddr
	}
	if *wsAddr != "" {
		cfg.WsAddr = *wsAddr
	}
	if *wsEndpoint != "" {
		cfg.WsEndpoint = *wsEndpoint
	}

	// One sealing key shared by the issuing service and the admitting
	// transport; credentials from a previous process are worthless unless
	// the key is pinned in config.
	key, keyErr := cfg.sealingKey()
	if keyErr != nil {
		logger.Error("Failed to prepare sealing key", zap.Error(keyErr))
		return
	}

	shutdownCtx, shutdownRelease := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer shutdownRelease()

	wg := sync.WaitGroup{}

	//
	// Credential bootstrap service
	bootstrap := credential.NewService(key, credential.ServiceParams{
		ListenAddress: cfg.BootstrapAddr,
		ServerAddr:    cfg.ServerAddr,
		ProtocolId:    cfg.ProtocolId,
		TTL:           cfg.CredentialTTL,
		WorkerCount:   cfg.HandshakeWorkers,
		Logger:        logger,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting credential bootstrap service", zap.String("addr", cfg.BootstrapAddr))
		if err := bootstrap.Start(shutdownCtx); err != nil {
			logger.Error("Credential bootstrap service failed", zap.Error(err))
			shutdownRelease()
		}
	}()

	//
	// Game transport
	wsServer, wsServerErr := transport.CreateWebsocketServer(key, transport.WebsocketServerParams{
		ListenAddress:  cfg.WsAddr,
		ListenEndpoint: cfg.WsEndpoint,
		ProtocolId:     cfg.ProtocolId,
		ServerAddr:     cfg.ServerAddr,
		Plan:           transport.DefaultChannelPlan(),
		Logger:         logger,
	})
	if wsServerErr != nil {
		logger.Error("Failed to create WebSocket server", zap.Error(wsServerErr))
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting WebSocket game transport", zap.String("addr", cfg.WsAddr), zap.String("endpoint", cfg.WsEndpoint))
		if err := wsServer.Start(shutdownCtx); err != nil {
			logger.Error("WebSocket server failed", zap.Error(err))
			shutdownRelease()
		}
	}()

	//
	// Session loop
	srv := session.NewServer(session.ServerParams{
		Sim:            game.NewPong(),
		Events:         wsServer.Events(),
		TickRate:       game.PollRate,
		LivenessWindow: cfg.LivenessWindow,
		Logger:         logger,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.Run(shutdownCtx)
	}()

	wg.Wait()
	logger.Info("Server shut down cleanly")
}
