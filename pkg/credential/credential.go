// Package credential implements the bootstrap handshake: a client trades its
// 64-bit identifier for a signed, time-bounded connection credential over a
// plain TCP stream, and later presents that credential to the game transport
// for admission. Credentials are sealed with a process-wide symmetric key,
// so forging one requires the key itself.
package credential

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

const KeySize = chacha20poly1305.KeySize

// DefaultTTL is the fixed validity window for an issued credential.
const DefaultTTL = 120 * time.Second

// Key is the process-wide symmetric signing key. Generated once at startup,
// passed by reference into the credential service and the transport, never
// rotated or persisted.
type Key [KeySize]byte

func NewKey() (*Key, error) {
	key := &Key{}
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return key, nil
}

// Credential is the signed, time-bounded proof of authorization for one
// client identity to join one server. It is consumed exactly once by the
// transport and never persisted.
type Credential struct {
	ClientId   uint64
	ProtocolId uint64
	ServerAddr string
	IssuedAt   int64 // unix seconds
	ExpiresAt  int64 // unix seconds
}

func (c *Credential) encode() []byte {
	addr := []byte(c.ServerAddr)
	buf := make([]byte, 8+8+8+8+2+len(addr))
	binary.LittleEndian.PutUint64(buf[0:8], c.ClientId)
	binary.LittleEndian.PutUint64(buf[8:16], c.ProtocolId)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(c.IssuedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(c.ExpiresAt))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(len(addr)))
	copy(buf[34:], addr)
	return buf
}

func decode(buf []byte) (*Credential, error) {
	if len(buf) < 34 {
		return nil, &errors.Underflow{MessageName: "Credential", MsgSize: len(buf), MinimumSize: 34}
	}
	addrLen := int(binary.LittleEndian.Uint16(buf[32:34]))
	if len(buf) < 34+addrLen {
		return nil, &errors.Underflow{MessageName: "Credential::ServerAddr", MsgSize: len(buf) - 34, MinimumSize: addrLen}
	}
	return &Credential{
		ClientId:   binary.LittleEndian.Uint64(buf[0:8]),
		ProtocolId: binary.LittleEndian.Uint64(buf[8:16]),
		IssuedAt:   int64(binary.LittleEndian.Uint64(buf[16:24])),
		ExpiresAt:  int64(binary.LittleEndian.Uint64(buf[24:32])),
		ServerAddr: string(buf[34 : 34+addrLen]),
	}, nil
}

// Seal produces the opaque blob handed to the client. The client cannot read
// or alter it; only a holder of the key can.
func (c *Credential) Seal(key *Key) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("construct AEAD: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, c.encode(), nil), nil
}

// Open authenticates and decodes a sealed credential blob.
func Open(key *Key, blob []byte) (*Credential, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("construct AEAD: %w", err)
	}

	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, &errors.CredentialRejected{Reason: "blob shorter than nonce"}
	}
	nonce, ciphertext := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &errors.CredentialRejected{Reason: "authentication failed"}
	}

	return decode(plaintext)
}

// Validate checks the claims inside an already-authenticated credential
// against the admitting server's identity and clock.
func (c *Credential) Validate(now time.Time, protocolId uint64, serverAddr string) error {
	if c.ProtocolId != protocolId {
		return &errors.CredentialRejected{Reason: fmt.Sprintf("protocol id mismatch: %d", c.ProtocolId)}
	}
	if serverAddr != "" && c.ServerAddr != serverAddr {
		return &errors.CredentialRejected{Reason: fmt.Sprintf("server address mismatch: %s", c.ServerAddr)}
	}
	if now.Unix() >= c.ExpiresAt {
		return &errors.CredentialRejected{Reason: "credential expired"}
	}
	return nil
}
