package interceptor

import (
	"time"

	"github.com/opd-ai/rtcengine/rtcp"
	"github.com/opd-ai/rtcengine/rtp"
)

const sendBufferSize = 1024 // power-of-two ring buffer per outbound SSRC

// NackResponder holds recently-sent outbound packets per SSRC in a
// power-of-two ring buffer and retransmits them when a matching NACK
// arrives for a sequence number still held.
type NackResponder struct {
	buffers map[uint32]*ringBuffer
	pending [][]byte
}

type ringBuffer struct {
	slots [sendBufferSize][]byte
}

func (r *ringBuffer) store(seq uint16, packet []byte) {
	r.slots[seq%sendBufferSize] = append([]byte(nil), packet...)
}

func (r *ringBuffer) lookup(seq uint16) []byte {
	stored := r.slots[seq%sendBufferSize]
	if stored == nil {
		return nil
	}
	h, _, err := rtp.Unmarshal(stored)
	if err != nil || h.SequenceNumber != seq {
		return nil // slot was overwritten by a later packet
	}
	return stored
}

// NewNackResponder returns a factory usable with Registry.Register.
func NewNackResponder() Factory {
	return func() Interceptor { return &NackResponder{buffers: make(map[uint32]*ringBuffer)} }
}

func (n *NackResponder) BindLocalStream(info StreamInfo) {
	n.buffers[info.SSRC] = &ringBuffer{}
}

func (n *NackResponder) BindRemoteStream(StreamInfo)     {}
func (n *NackResponder) UnbindLocalStream(ssrc uint32)   { delete(n.buffers, ssrc) }
func (n *NackResponder) UnbindRemoteStream(uint32)       {}
func (n *NackResponder) HandleInboundRTP(time.Time, []byte) {}

func (n *NackResponder) HandleOutboundRTP(now time.Time, packet []byte) {
	h, _, err := rtp.Unmarshal(packet)
	if err != nil {
		return
	}
	buf, ok := n.buffers[h.SSRC]
	if !ok {
		buf = &ringBuffer{}
		n.buffers[h.SSRC] = buf
	}
	buf.store(h.SequenceNumber, packet)
}

func (n *NackResponder) HandleInboundRTCP(now time.Time, packet []byte) {
	reports, err := rtcp.SplitCompound(packet)
	if err != nil {
		return
	}
	for _, rep := range reports {
		nack, err := rtcp.UnmarshalNACK(rep)
		if err != nil {
			continue
		}
		buf, ok := n.buffers[nack.MediaSSRC]
		if !ok {
			continue
		}
		for _, seq := range nack.Lost {
			if held := buf.lookup(seq); held != nil {
				n.pending = append(n.pending, held)
			}
		}
	}
}

func (n *NackResponder) PollTimeout(now time.Time) time.Time {
	return now.Add(24 * time.Hour)
}

func (n *NackResponder) HandleTimeout(now time.Time) [][]byte {
	out := n.pending
	n.pending = nil
	return out
}

// NackGenerator watches an inbound SSRC's sequence numbers for gaps and
// emits a NACK for any gap not filled within nackDelay, capping requests
// per packet at maxNacks.
type NackGenerator struct {
	nackDelay time.Duration
	maxNacks  int

	senderSSRC uint32
	received   map[uint32]map[uint16]bool // ssrc -> seq -> seen
	pendingGap map[uint32]map[uint16]gapState
}

type gapState struct {
	firstSeenAt time.Time
	requests    int
}

const (
	defaultNackDelay = 20 * time.Millisecond
	defaultMaxNacks  = 10
)

// NewNackGenerator returns a factory usable with Registry.Register.
// senderSSRC identifies this endpoint when emitting NACK feedback packets.
func NewNackGenerator(senderSSRC uint32) Factory {
	return func() Interceptor {
		return &NackGenerator{
			nackDelay:  defaultNackDelay,
			maxNacks:   defaultMaxNacks,
			senderSSRC: senderSSRC,
			received:   make(map[uint32]map[uint16]bool),
			pendingGap: make(map[uint32]map[uint16]gapState),
		}
	}
}

// SetMaxNacks overrides the built-in retransmission-request cap per gap.
func (n *NackGenerator) SetMaxNacks(max int) {
	n.maxNacks = max
}

func (n *NackGenerator) BindRemoteStream(info StreamInfo) {
	n.received[info.SSRC] = make(map[uint16]bool)
	n.pendingGap[info.SSRC] = make(map[uint16]gapState)
}

func (n *NackGenerator) BindLocalStream(StreamInfo)          {}
func (n *NackGenerator) UnbindRemoteStream(ssrc uint32)      { delete(n.received, ssrc); delete(n.pendingGap, ssrc) }
func (n *NackGenerator) UnbindLocalStream(uint32)            {}
func (n *NackGenerator) HandleOutboundRTP(time.Time, []byte) {}
func (n *NackGenerator) HandleInboundRTCP(time.Time, []byte) {}

func (n *NackGenerator) HandleInboundRTP(now time.Time, packet []byte) {
	h, _, err := rtp.Unmarshal(packet)
	if err != nil {
		return
	}
	seen, ok := n.received[h.SSRC]
	if !ok {
		seen = make(map[uint16]bool)
		n.received[h.SSRC] = seen
	}
	gaps, ok := n.pendingGap[h.SSRC]
	if !ok {
		gaps = make(map[uint16]gapState)
		n.pendingGap[h.SSRC] = gaps
	}

	seen[h.SequenceNumber] = true
	delete(gaps, h.SequenceNumber)

	// Any sequence number below this packet's that hasn't been seen yet
	// and isn't already tracked is a newly discovered gap.
	for back := uint16(1); back <= 64; back++ {
		candidate := h.SequenceNumber - back
		if seen[candidate] {
			break
		}
		if _, tracked := gaps[candidate]; !tracked {
			gaps[candidate] = gapState{firstSeenAt: now}
		}
	}
}

func (n *NackGenerator) PollTimeout(now time.Time) time.Time {
	return now.Add(n.nackDelay)
}

func (n *NackGenerator) HandleTimeout(now time.Time) [][]byte {
	var out [][]byte
	for ssrc, gaps := range n.pendingGap {
		var lost []uint16
		for seq, gs := range gaps {
			if now.Sub(gs.firstSeenAt) < n.nackDelay {
				continue
			}
			if gs.requests >= n.maxNacks {
				delete(gaps, seq)
				continue
			}
			gs.requests++
			gaps[seq] = gs
			lost = append(lost, seq)
		}
		if len(lost) == 0 {
			continue
		}
		nack := &rtcp.NACK{SenderSSRC: n.senderSSRC, MediaSSRC: ssrc, Lost: lost}
		out = append(out, nack.Marshal())
	}
	return out
}
