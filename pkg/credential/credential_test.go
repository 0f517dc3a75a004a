package credential

import (
	"testing"
	"time"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

func testKey(t *testing.T) *Key {
	t.Helper()
	key, err := NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)

	want := &Credential{
		ClientId:   100,
		ProtocolId: 7,
		ServerAddr: "127.0.0.1:5000",
		IssuedAt:   time.Now().Unix(),
		ExpiresAt:  time.Now().Add(DefaultTTL).Unix(),
	}

	blob, err := want.Seal(key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := Open(key, blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if *got != *want {
		t.Fatalf("credential mismatch: want %+v, got %+v", want, got)
	}
}

func TestOpenRejectsTamperedBlob(t *testing.T) {
	key := testKey(t)

	cred := &Credential{ClientId: 100, ProtocolId: 7, ServerAddr: "a:1", ExpiresAt: time.Now().Add(time.Minute).Unix()}
	blob, err := cred.Seal(key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	blob[len(blob)-1] ^= 0x01
	if _, err := Open(key, blob); err == nil {
		t.Fatalf("expected tampered blob to be rejected")
	}
}

func TestOpenRejectsForeignKey(t *testing.T) {
	cred := &Credential{ClientId: 100, ProtocolId: 7, ServerAddr: "a:1", ExpiresAt: time.Now().Add(time.Minute).Unix()}
	blob, err := cred.Seal(testKey(t))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := Open(testKey(t), blob); err == nil {
		t.Fatalf("expected blob sealed under another key to be rejected")
	}
}

func TestValidateChecksClaims(t *testing.T) {
	now := time.Now()
	cred := &Credential{
		ClientId:   100,
		ProtocolId: 7,
		ServerAddr: "127.0.0.1:5000",
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(time.Minute).Unix(),
	}

	if err := cred.Validate(now, 7, "127.0.0.1:5000"); err != nil {
		t.Fatalf("valid credential rejected: %v", err)
	}

	if err := cred.Validate(now, 8, "127.0.0.1:5000"); err == nil {
		t.Fatalf("expected protocol id mismatch to be rejected")
	} else if _, ok := err.(*errors.CredentialRejected); !ok {
		t.Fatalf("want CredentialRejected, got %T", err)
	}

	if err := cred.Validate(now, 7, "10.0.0.1:5000"); err == nil {
		t.Fatalf("expected server address mismatch to be rejected")
	}

	if err := cred.Validate(now.Add(2*time.Minute), 7, "127.0.0.1:5000"); err == nil {
		t.Fatalf("expected expired credential to be rejected")
	}
}
