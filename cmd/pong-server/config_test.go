package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestMissingKeysKeepDefaults(t *testing.T) {
	path := writeConfigFile(t, `
ws_addr = ":9000"
`)

	cfg, err := loadServerConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	defaults := defaultServerConfig()
	if cfg.WsAddr != ":9000" {
		t.Fatalf("ws_addr is %q, want %q", cfg.WsAddr, ":9000")
	}
	if cfg.BootstrapAddr != defaults.BootstrapAddr {
		t.Fatalf("bootstrap_addr is %q, want default %q", cfg.BootstrapAddr, defaults.BootstrapAddr)
	}
	if cfg.LivenessWindow != defaults.LivenessWindow {
		t.Fatalf("liveness window is %v, want default %v", cfg.LivenessWindow, defaults.LivenessWindow)
	}
}

func TestAllKeysOverlay(t *testing.T) {
	path := writeConfigFile(t, `
bootstrap_addr = ":6001"
ws_addr = ":6000"
ws_endpoint = "/game"
server_addr = "pong.example.com:6000"
protocol_id = 42
credential_ttl_seconds = 30
handshake_workers = 8
liveness_window_ms = 1500
sealing_key_hex = "`+strings.Repeat("ab", 32)+`"
`)

	cfg, err := loadServerConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.BootstrapAddr != ":6001" || cfg.WsAddr != ":6000" || cfg.WsEndpoint != "/game" {
		t.Fatalf("address fields did not overlay: %+v", cfg)
	}
	if cfg.ServerAddr != "pong.example.com:6000" || cfg.ProtocolId != 42 {
		t.Fatalf("credential claim fields did not overlay: %+v", cfg)
	}
	if cfg.CredentialTTL != 30*time.Second {
		t.Fatalf("credential TTL is %v, want 30s", cfg.CredentialTTL)
	}
	if cfg.HandshakeWorkers != 8 {
		t.Fatalf("handshake workers is %d, want 8", cfg.HandshakeWorkers)
	}
	if cfg.LivenessWindow != 1500*time.Millisecond {
		t.Fatalf("liveness window is %v, want 1.5s", cfg.LivenessWindow)
	}

	key, keyErr := cfg.sealingKey()
	if keyErr != nil {
		t.Fatalf("failed to decode pinned sealing key: %v", keyErr)
	}
	if key[0] != 0xAB || key[31] != 0xAB {
		t.Fatal("pinned sealing key bytes do not match the configured hex")
	}
}

func TestInvalidValuesAreRejected(t *testing.T) {
	for name, contents := range map[string]string{
		"zero ttl":        `credential_ttl_seconds = 0`,
		"negative window": `liveness_window_ms = -5`,
		"zero workers":    `handshake_workers = 0`,
	} {
		if _, err := loadServerConfig(writeConfigFile(t, contents)); err == nil {
			t.Fatalf("%s: config loaded without error", name)
		}
	}
}

func TestShortSealingKeyIsRejected(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.KeyHex = "abcd"
	if _, err := cfg.sealingKey(); err == nil {
		t.Fatal("a 2-byte key was accepted")
	}

	cfg.KeyHex = "not hex at all"
	if _, err := cfg.sealingKey(); err == nil {
		t.Fatal("non-hex key material was accepted")
	}
}

func TestEmptyKeyHexMintsARandomKey(t *testing.T) {
	cfg := defaultServerConfig()
	first, err := cfg.sealingKey()
	if err != nil {
		t.Fatalf("failed to mint key: %v", err)
	}
	second, err := cfg.sealingKey()
	if err != nil {
		t.Fatalf("failed to mint second key: %v", err)
	}
	if *first == *second {
		t.Fatal("two minted keys are identical")
	}
}
