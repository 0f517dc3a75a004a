package credential

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

func startTestService(t *testing.T, workers int) (addr string, key *Key, stop func()) {
	t.Helper()

	key = testKey(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr = listener.Addr().String()
	listener.Close()

	svc := NewService(key, ServiceParams{
		ListenAddress: addr,
		ServerAddr:    "127.0.0.1:5000",
		ProtocolId:    7,
		WorkerCount:   workers,
		Logger:        zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Start(ctx)
	}()

	// Wait for the listener to come up.
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, dialErr := net.Dial("tcp", addr)
		if dialErr == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("credential service never came up: %v", dialErr)
		}
		time.Sleep(10 * time.Millisecond)
	}

	return addr, key, func() {
		cancel()
		<-done
	}
}

func TestRequestYieldsValidCredential(t *testing.T) {
	addr, key, stop := startTestService(t, 4)
	defer stop()

	blob, err := Request(addr, 100)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	cred, err := Open(key, blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cred.ClientId != 100 {
		t.Fatalf("credential bound to wrong client: %d", cred.ClientId)
	}
	if err := cred.Validate(time.Now(), 7, "127.0.0.1:5000"); err != nil {
		t.Fatalf("issued credential failed validation: %v", err)
	}
}

// A handshake stream that delivers only 5 bytes then closes must yield no
// credential, and must not affect a concurrently-in-progress handshake.
func TestTruncatedHandshakeIsIsolated(t *testing.T) {
	addr, key, stop := startTestService(t, 4)
	defer stop()

	short, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := short.Write([]byte{0, 0, 0, 0, 1}); err != nil {
		t.Fatalf("write short id: %v", err)
	}
	short.Close()

	blob, err := Request(addr, 200)
	if err != nil {
		t.Fatalf("concurrent handshake failed after truncated one: %v", err)
	}
	cred, err := Open(key, blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cred.ClientId != 200 {
		t.Fatalf("credential bound to wrong client: %d", cred.ClientId)
	}
}

// brokenListener fails its first Accept with a non-closed error, the way a
// listener does when the host runs out of file descriptors.
type brokenListener struct {
	err  error
	addr net.Addr
}

func (l *brokenListener) Accept() (net.Conn, error) { return nil, l.err }
func (l *brokenListener) Close() error              { return nil }
func (l *brokenListener) Addr() net.Addr            { return l.addr }

func TestAcceptFailureSurfacesInsteadOfWedging(t *testing.T) {
	svc := NewService(testKey(t), ServiceParams{
		ListenAddress: "127.0.0.1:0",
		ProtocolId:    7,
		WorkerCount:   2,
		Logger:        zap.NewNop(),
	})

	wantErr := errors.New("accept tcp: too many open files")
	result := make(chan error, 1)
	go func() {
		result <- svc.serve(context.Background(), &brokenListener{err: wantErr})
	}()

	select {
	case err := <-result:
		if !errors.Is(err, wantErr) {
			t.Fatalf("serve returned %v, want the accept error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve never returned after the accept failure")
	}
}

func TestClientIdIsReadBigEndian(t *testing.T) {
	addr, key, stop := startTestService(t, 1)
	defer stop()

	var want uint64 = 0x0102030405060708
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], want)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(idBytes[:]); err != nil {
		t.Fatalf("write id: %v", err)
	}

	var lenBytes [2]byte
	if _, err := io.ReadFull(conn, lenBytes[:]); err != nil {
		t.Fatalf("read frame length: %v", err)
	}
	blob := make([]byte, binary.BigEndian.Uint16(lenBytes[:]))
	if _, err := io.ReadFull(conn, blob); err != nil {
		t.Fatalf("read blob: %v", err)
	}

	cred, err := Open(key, blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cred.ClientId != want {
		t.Fatalf("big-endian id mangled: want %x, got %x", want, cred.ClientId)
	}
}
