package transport

import (
	"encoding/binary"
	"sync"

	"github.com/eapache/queue"

	"github.com/cadyn/pong-netcode/pkg/errors"
)

// Wire frame: one channel byte, a little-endian uint16 sequence number on
// unreliable-sequenced channels, then the payload.

func encodeFrame(cfg ChannelConfig, seq uint16, payload []byte) []byte {
	if cfg.Delivery == UnreliableSequenced {
		buf := make([]byte, 3+len(payload))
		buf[0] = cfg.Id
		binary.LittleEndian.PutUint16(buf[1:3], seq)
		copy(buf[3:], payload)
		return buf
	}

	buf := make([]byte, 1+len(payload))
	buf[0] = cfg.Id
	copy(buf[1:], payload)
	return buf
}

func decodeFrame(plan ChannelPlan, raw []byte) (channel uint8, seq uint16, payload []byte, err error) {
	if len(raw) < 1 {
		return 0, 0, nil, &errors.Underflow{MessageName: "Frame", MsgSize: 0, MinimumSize: 1}
	}

	channel = raw[0]
	if int(channel) >= ChannelCount {
		return 0, 0, nil, &errors.InvalidEnumValue{EnumName: "Frame::Channel", IntValue: channel}
	}

	if plan[channel].Delivery == UnreliableSequenced {
		if len(raw) < 3 {
			return 0, 0, nil, &errors.Underflow{MessageName: "Frame::Sequence", MsgSize: len(raw), MinimumSize: 3}
		}
		return channel, binary.LittleEndian.Uint16(raw[1:3]), raw[3:], nil
	}

	return channel, 0, raw[1:], nil
}

// inboundQueue is the receive side of one logical channel. Reliable channels
// queue everything in order; unreliable-sequenced channels discard stale
// sequence numbers and bound their depth by dropping the oldest entry.
type inboundQueue struct {
	mut sync.Mutex
	q   *queue.Queue
	cfg ChannelConfig

	lastSeq uint16
	hasSeq  bool
}

func newInboundQueue(cfg ChannelConfig) *inboundQueue {
	return &inboundQueue{
		q:   queue.New(),
		cfg: cfg,
	}
}

func (iq *inboundQueue) push(seq uint16, payload []byte) {
	iq.mut.Lock()
	defer iq.mut.Unlock()

	if iq.cfg.Delivery == UnreliableSequenced {
		// Sequence comparison tolerates uint16 wraparound.
		if iq.hasSeq && int16(seq-iq.lastSeq) <= 0 {
			return
		}
		iq.lastSeq = seq
		iq.hasSeq = true

		if iq.cfg.QueueDepth > 0 && iq.q.Length() >= iq.cfg.QueueDepth {
			iq.q.Remove()
		}
	}

	iq.q.Add(payload)
}

func (iq *inboundQueue) pop() ([]byte, bool) {
	iq.mut.Lock()
	defer iq.mut.Unlock()

	if iq.q.Length() == 0 {
		return nil, false
	}
	return iq.q.Remove().([]byte), true
}

func newInboundQueues(plan ChannelPlan) [ChannelCount]*inboundQueue {
	var queues [ChannelCount]*inboundQueue
	for i := range plan {
		queues[i] = newInboundQueue(plan[i])
	}
	return queues
}

// Admission verdict, sent by the server as the first frame after the client
// presents its credential: one accept byte, then an optional refusal reason.
const (
	verdictRefused  byte = 0x0
	verdictAccepted byte = 0x1
)

func encodeVerdict(accepted bool, reason string) []byte {
	if accepted {
		return []byte{verdictAccepted}
	}
	buf := make([]byte, 1+len(reason))
	buf[0] = verdictRefused
	copy(buf[1:], reason)
	return buf
}

func decodeVerdict(raw []byte) (accepted bool, reason string, err error) {
	if len(raw) < 1 {
		return false, "", &errors.Underflow{MessageName: "Verdict", MsgSize: 0, MinimumSize: 1}
	}
	return raw[0] == verdictAccepted, string(raw[1:]), nil
}
