package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cadyn/pong-netcode/internal/session"
	"github.com/cadyn/pong-netcode/pkg/credential"
)

type serverConfig struct {
	BootstrapAddr string
	WsAddr        string
	WsEndpoint    string

	// ServerAddr is the address baked into issued credentials; empty
	// disables the address claim check at admission.
	ServerAddr string
	ProtocolId uint64

	CredentialTTL    time.Duration
	HandshakeWorkers int
	LivenessWindow   time.Duration

	// KeyHex optionally pins the sealing key so the bootstrap service and
	// the game transport can run in separate processes. Empty means a
	// fresh random key per process.
	KeyHex string
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		BootstrapAddr:    ":5001",
		WsAddr:           ":5000",
		WsEndpoint:       "/play",
		ProtocolId:       7,
		CredentialTTL:    credential.DefaultTTL,
		HandshakeWorkers: credential.DefaultWorkerCount,
		LivenessWindow:   session.DefaultLivenessWindow,
	}
}

// config.toml key mapping to server runtime settings.
type fileConfig struct {
	BootstrapAddr     string `toml:"bootstrap_addr"`
	WsAddr            string `toml:"ws_addr"`
	WsEndpoint        string `toml:"ws_endpoint"`
	ServerAddr        string `toml:"server_addr"`
	ProtocolId        uint64 `toml:"protocol_id"`
	CredentialTTLSecs int    `toml:"credential_ttl_seconds"`
	HandshakeWorkers  int    `toml:"handshake_workers"`
	LivenessWindowMs  int    `toml:"liveness_window_ms"`
	SealingKeyHex     string `toml:"sealing_key_hex"`
}

// loadServerConfig overlays config.toml values onto the defaults; keys left
// out of the file keep their default.
func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("bootstrap_addr") {
		cfg.BootstrapAddr = strings.TrimSpace(raw.BootstrapAddr)
	}
	if meta.IsDefined("ws_addr") {
		cfg.WsAddr = strings.TrimSpace(raw.WsAddr)
	}
	if meta.IsDefined("ws_endpoint") {
		cfg.WsEndpoint = strings.TrimSpace(raw.WsEndpoint)
	}
	if meta.IsDefined("server_addr") {
		cfg.ServerAddr = strings.TrimSpace(raw.ServerAddr)
	}
	if meta.IsDefined("protocol_id") {
		cfg.ProtocolId = raw.ProtocolId
	}
	if meta.IsDefined("credential_ttl_seconds") {
		if raw.CredentialTTLSecs <= 0 {
			return serverConfig{}, fmt.Errorf("load server config: credential_ttl_seconds must be positive, got %d", raw.CredentialTTLSecs)
		}
		cfg.CredentialTTL = time.Duration(raw.CredentialTTLSecs) * time.Second
	}
	if meta.IsDefined("handshake_workers") {
		if raw.HandshakeWorkers <= 0 {
			return serverConfig{}, fmt.Errorf("load server config: handshake_workers must be positive, got %d", raw.HandshakeWorkers)
		}
		cfg.HandshakeWorkers = raw.HandshakeWorkers
	}
	if meta.IsDefined("liveness_window_ms") {
		if raw.LivenessWindowMs <= 0 {
			return serverConfig{}, fmt.Errorf("load server config: liveness_window_ms must be positive, got %d", raw.LivenessWindowMs)
		}
		cfg.LivenessWindow = time.Duration(raw.LivenessWindowMs) * time.Millisecond
	}
	if meta.IsDefined("sealing_key_hex") {
		cfg.KeyHex = strings.TrimSpace(raw.SealingKeyHex)
	}

	return cfg, nil
}

// sealingKey returns the configured key, or mints a fresh one when the
// config leaves it open.
func (c serverConfig) sealingKey() (*credential.Key, error) {
	if c.KeyHex == "" {
		return credential.NewKey()
	}

	decoded, err := hex.DecodeString(c.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("sealing key: %w", err)
	}
	if len(decoded) != credential.KeySize {
		return nil, fmt.Errorf("sealing key: got %d bytes, want %d", len(decoded), credential.KeySize)
	}

	var key credential.Key
	copy(key[:], decoded)
	return &key, nil
}
