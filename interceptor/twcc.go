package interceptor

import (
	"encoding/binary"
	"time"

	"github.com/opd-ai/rtcengine/rtcp"
	"github.com/opd-ai/rtcengine/rtp"
)

const (
	defaultTWCCInterval = 100 * time.Millisecond
	twccExtensionURI    = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"
)

// TWCCObserver records, on the receiving side, the arrival time of each
// transport-wide sequence number carried in a one-byte RFC 8285 header
// extension, and periodically emits transport-wide congestion-control
// feedback. It does not assign sequence numbers: the sender writes the
// extension (one sequence shared across every outbound SSRC on the
// transport) into the header before sealing.
type TWCCObserver struct {
	extensionID uint8
	senderSSRC  uint32
	mediaSSRC   uint32

	arrivals map[uint16]time.Time
	lowestUnreported uint16
	haveLowest       bool
	lastSent         time.Time
}

// NewTWCCObserver returns a factory usable with Registry.Register.
// extensionID is the negotiated RFC 8285 id for the transport-wide
// sequence number extension; senderSSRC/mediaSSRC identify this endpoint's
// feedback packets.
func NewTWCCObserver(extensionID uint8, senderSSRC, mediaSSRC uint32) Factory {
	return func() Interceptor {
		return &TWCCObserver{
			extensionID: extensionID,
			senderSSRC:  senderSSRC,
			mediaSSRC:   mediaSSRC,
			arrivals:    make(map[uint16]time.Time),
		}
	}
}

func (t *TWCCObserver) BindLocalStream(StreamInfo)       {}
func (t *TWCCObserver) BindRemoteStream(StreamInfo)      {}
func (t *TWCCObserver) UnbindLocalStream(uint32)         {}
func (t *TWCCObserver) UnbindRemoteStream(uint32)        {}
func (t *TWCCObserver) HandleInboundRTCP(time.Time, []byte) {}

// HandleOutboundRTP is a read-only observer: the transport-wide sequence
// number extension is inserted into the header before the packet reaches
// this chain (egress header-extension insertion has to happen before
// sealing, and interceptors only see the already-sealed wire bytes), so
// this interceptor has nothing left to assign here.
func (t *TWCCObserver) HandleOutboundRTP(now time.Time, packet []byte) {}

func (t *TWCCObserver) HandleInboundRTP(now time.Time, packet []byte) {
	h, _, err := rtp.Unmarshal(packet)
	if err != nil {
		return
	}
	seq, ok := extractTWCCSequence(h, t.extensionID)
	if !ok {
		return
	}
	t.arrivals[seq] = now
	if !t.haveLowest {
		t.lowestUnreported = seq
		t.haveLowest = true
	}
}

func extractTWCCSequence(h *rtp.Header, extensionID uint8) (uint16, bool) {
	exts, err := h.Extensions()
	if err != nil {
		return 0, false
	}
	for _, e := range exts {
		if e.ID == extensionID && len(e.Payload) == 2 {
			return binary.BigEndian.Uint16(e.Payload), true
		}
	}
	return 0, false
}

func (t *TWCCObserver) PollTimeout(now time.Time) time.Time {
	if t.lastSent.IsZero() {
		return now
	}
	return t.lastSent.Add(defaultTWCCInterval)
}

func (t *TWCCObserver) HandleTimeout(now time.Time) [][]byte {
	if !t.lastSent.IsZero() && now.Sub(t.lastSent) < defaultTWCCInterval {
		return nil
	}
	t.lastSent = now
	if !t.haveLowest || len(t.arrivals) == 0 {
		return nil
	}

	highest := t.lowestUnreported
	for seq := range t.arrivals {
		if seq-t.lowestUnreported < 0x8000 && (seq-highest) < 0x8000 {
			highest = seq
		}
	}

	var results []rtcp.PacketResult
	var prevArrival time.Time
	for seq := t.lowestUnreported; ; seq++ {
		arrival, ok := t.arrivals[seq]
		if !ok {
			results = append(results, rtcp.PacketResult{SequenceNumber: seq, Received: false})
		} else {
			var delta time.Duration
			if !prevArrival.IsZero() {
				delta = arrival.Sub(prevArrival)
			}
			results = append(results, rtcp.PacketResult{SequenceNumber: seq, Received: true, Delta: delta})
			prevArrival = arrival
			delete(t.arrivals, seq)
		}
		if seq == highest {
			break
		}
	}
	t.lowestUnreported = highest + 1
	if len(t.arrivals) == 0 {
		t.haveLowest = false
	}

	feedback := &rtcp.TWCC{
		SenderSSRC:         t.senderSSRC,
		MediaSSRC:          t.mediaSSRC,
		BaseSequenceNumber: results[0].SequenceNumber,
		ReferenceTime:      now.Sub(time.Unix(0, 0)),
		PacketResults:      results,
	}
	return [][]byte{feedback.Marshal()}
}
