package sctp

import "time"

// StreamConfig selects the delivery semantics of one stream. The zero
// value is ordered with MaxRetransmits 0, so a chunk is abandoned rather
// than retransmitted; fullyReliable is the reliable ordered configuration.
type StreamConfig struct {
	// Unordered makes every message on the stream bypass stream-sequence
	// ordering on the receiving side.
	Unordered bool
	// MaxRetransmits caps how many times a chunk on this stream is
	// retransmitted before it is abandoned via FORWARD-TSN. Negative
	// means unlimited (fully reliable).
	MaxRetransmits int
	// Lifetime abandons a chunk once it has been outstanding longer than
	// this duration. Zero means unlimited.
	Lifetime time.Duration
}

// fullyReliable is the default config for streams never configured
// explicitly.
var fullyReliable = StreamConfig{MaxRetransmits: -1}

// outboundStream holds the send-side per-stream state: the reliability
// config and the next stream sequence number to stamp on an ordered
// message.
type outboundStream struct {
	cfg     StreamConfig
	nextSSN uint16
}

// inboundStream holds the receive-side per-stream state. Fragmented
// messages reassemble under the stream sequence number the sender stamped
// on every fragment; ordered delivery then drains complete messages in
// strict SSN order while unordered messages leave the stream as soon as
// their last fragment arrives.
type inboundStream struct {
	nextSSN uint16
	frags   map[uint16][]DataChunk       // SSN -> fragments in TSN order
	ready   map[uint16]DeliveredMessage  // complete ordered messages awaiting their turn
}

func newInboundStream() *inboundStream {
	return &inboundStream{
		frags: make(map[uint16][]DataChunk),
		ready: make(map[uint16]DeliveredMessage),
	}
}

// addFragment buffers one fragment and returns the reassembled message
// once the Begin..End run is complete, or nil while fragments are still
// missing.
func (s *inboundStream) addFragment(d DataChunk) *DeliveredMessage {
	if d.Begin && d.End {
		return &DeliveredMessage{StreamID: d.StreamID, StreamSeq: d.StreamSeq, PPID: d.PPID, Unordered: d.Unordered, Payload: d.Payload}
	}
	frags := s.frags[d.StreamSeq]
	inserted := false
	for i, f := range frags {
		if d.TSN == f.TSN {
			return nil // duplicate fragment
		}
		if tsnLess(d.TSN, f.TSN) {
			frags = append(frags[:i], append([]DataChunk{d}, frags[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		frags = append(frags, d)
	}
	s.frags[d.StreamSeq] = frags

	if !frags[0].Begin || !frags[len(frags)-1].End {
		return nil
	}
	for i := 1; i < len(frags); i++ {
		if frags[i].TSN != frags[i-1].TSN+1 {
			return nil
		}
	}
	var payload []byte
	for _, f := range frags {
		payload = append(payload, f.Payload...)
	}
	delete(s.frags, d.StreamSeq)
	return &DeliveredMessage{StreamID: d.StreamID, StreamSeq: d.StreamSeq, PPID: d.PPID, Unordered: d.Unordered, Payload: payload}
}

// drainOrdered pops every ready message whose SSN is next in sequence.
func (s *inboundStream) drainOrdered() []DeliveredMessage {
	var out []DeliveredMessage
	for {
		m, ok := s.ready[s.nextSSN]
		if !ok {
			return out
		}
		delete(s.ready, s.nextSSN)
		s.nextSSN++
		out = append(out, m)
	}
}

// skipTo advances the expected SSN past messages the sender abandoned
// under partial reliability, then returns whatever became deliverable.
// A message that completed before the skip arrives is still delivered;
// only partial fragment state is discarded.
func (s *inboundStream) skipTo(lastAbandonedSSN uint16) []DeliveredMessage {
	var out []DeliveredMessage
	for ssnLess(s.nextSSN, lastAbandonedSSN+1) {
		if m, ok := s.ready[s.nextSSN]; ok {
			delete(s.ready, s.nextSSN)
			out = append(out, m)
		}
		delete(s.frags, s.nextSSN)
		s.nextSSN++
	}
	return append(out, s.drainOrdered()...)
}

func tsnLess(a, b uint32) bool { return int32(a-b) < 0 }

func ssnLess(a, b uint16) bool { return int16(a-b) < 0 }
