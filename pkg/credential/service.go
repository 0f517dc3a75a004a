package credential

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultWorkerCount = 4

type ServiceParams struct {
	// ListenAddress is the bootstrap TCP endpoint, e.g. ":5001".
	ListenAddress string

	// ServerAddr and ProtocolId are baked into every issued credential
	// and checked again at transport admission.
	ServerAddr string
	ProtocolId uint64

	TTL         time.Duration
	WorkerCount int

	Logger *zap.Logger
}

// Service issues sealed credentials over the bootstrap stream protocol:
// the client writes exactly 8 bytes (big-endian client id), the service
// answers with one length-framed credential blob and closes the stream.
type Service struct {
	params ServiceParams
	key    *Key
	log    *zap.Logger
}

func NewService(key *Key, params ServiceParams) *Service {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if params.TTL <= 0 {
		params.TTL = DefaultTTL
	}
	if params.WorkerCount <= 0 {
		params.WorkerCount = DefaultWorkerCount
	}

	return &Service{
		params: params,
		key:    key,
		log:    logger.With(zap.String("service", "credential")),
	}
}

// Start runs the accept loop until the context is canceled. Accepted
// connections are handed to a fixed-size worker pool; pool saturation only
// queues further handshakes, it never grows memory without bound. There is
// no cancellation for an in-flight handshake: a stalled bootstrap client
// occupies one worker slot indefinitely.
func (s *Service) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.params.ListenAddress)
	if err != nil {
		return err
	}

	return s.serve(ctx, listener)
}

func (s *Service) serve(ctx context.Context, listener net.Listener) error {
	wg := sync.WaitGroup{}

	// acceptDone lets the watcher exit when the accept loop dies on its
	// own; otherwise a failed Accept would wedge in wg.Wait below until
	// the context is canceled.
	acceptDone := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-acceptDone:
		}
		listener.Close()
	}()

	conns := make(chan net.Conn)

	for i := 0; i < s.params.WorkerCount; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			log := s.log.With(zap.Int("worker", worker))
			for conn := range conns {
				s.handleHandshake(log, conn)
			}
		}(i)
	}

	s.log.Info("Credential service listening", zap.String("addr", s.params.ListenAddress))

	for {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			close(acceptDone)
			close(conns)
			wg.Wait()
			if errors.Is(acceptErr, net.ErrClosed) {
				s.log.Info("Credential service listener closed, exiting accept loop")
				return nil
			}
			s.log.Error("Credential service accept failed", zap.Error(acceptErr))
			return acceptErr
		}
		conns <- conn
	}
}

// handleHandshake runs one bootstrap exchange. Every failure here aborts
// this connection only; the accept loop and the other workers carry on.
func (s *Service) handleHandshake(log *zap.Logger, conn net.Conn) {
	defer conn.Close()

	var idBytes [8]byte
	if _, err := io.ReadFull(conn, idBytes[:]); err != nil {
		log.Warn("Malformed handshake, dropping connection", zap.Error(err))
		return
	}
	clientId := binary.BigEndian.Uint64(idBytes[:])

	now := time.Now()
	cred := &Credential{
		ClientId:   clientId,
		ProtocolId: s.params.ProtocolId,
		ServerAddr: s.params.ServerAddr,
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(s.params.TTL).Unix(),
	}

	blob, sealErr := cred.Seal(s.key)
	if sealErr != nil {
		log.Error("Failed to seal credential", zap.Uint64("clientId", clientId), zap.Error(sealErr))
		return
	}

	framed := make([]byte, 2+len(blob))
	binary.BigEndian.PutUint16(framed[0:2], uint16(len(blob)))
	copy(framed[2:], blob)

	if _, err := conn.Write(framed); err != nil {
		log.Warn("Failed to write credential blob", zap.Uint64("clientId", clientId), zap.Error(err))
		return
	}

	log.Info("Issued credential", zap.Uint64("clientId", clientId), zap.Time("expiresAt", time.Unix(cred.ExpiresAt, 0)))
}

// Request fetches a sealed credential blob from a bootstrap endpoint. This
// is the client half of the stream protocol.
func Request(addr string, clientId uint64) ([]byte, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], clientId)
	if _, err := conn.Write(idBytes[:]); err != nil {
		return nil, err
	}

	var lenBytes [2]byte
	if _, err := io.ReadFull(conn, lenBytes[:]); err != nil {
		return nil, err
	}
	blob := make([]byte, binary.BigEndian.Uint16(lenBytes[:]))
	if _, err := io.ReadFull(conn, blob); err != nil {
		return nil, err
	}
	return blob, nil
}
