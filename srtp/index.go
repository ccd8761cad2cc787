package srtp

// packetIndexMask isolates the low 16 bits of a packet index, i.e. the wire
// sequence number.
const packetIndexMask = 0xFFFF

// PacketIndex computes the 48-bit packet index from a rollover counter and
// 16-bit wire sequence number, per RFC 3711 §3.3.1: index = 2^16 * ROC + seq.
func PacketIndex(roc uint32, seq uint16) uint64 {
	return uint64(roc)<<16 | uint64(seq)
}

// EstimateROC chooses the rollover counter value that minimizes the distance
// between the resulting packet index and the last-seen index, per RFC 3711
// §3.3.1. It considers the current ROC, ROC-1 (a just-preceding rollover)
// and ROC+1 (sequence just wrapped) and returns whichever yields an index
// closest to lastIndex.
func EstimateROC(lastIndex uint64, seq uint16, currentROC uint32) uint32 {
	candidates := []uint32{currentROC}
	if currentROC > 0 {
		candidates = append(candidates, currentROC-1)
	}
	candidates = append(candidates, currentROC+1)

	best := candidates[0]
	bestDist := distance(lastIndex, PacketIndex(best, seq))
	for _, c := range candidates[1:] {
		d := distance(lastIndex, PacketIndex(c, seq))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// SSRCState is the per-SSRC cryptographic state RFC 3711 requires:
// rollover counter and last-seen sequence (the replay window lives in
// AEADContext), tracked independently per direction (a sender's outbound state is
// separate from an inbound receiver's state for the same SSRC).
type SSRCState struct {
	SSRC        uint32
	ROC         uint32
	lastSeq     uint16
	haveLastSeq bool
}

// NewSSRCState constructs empty per-SSRC state.
func NewSSRCState(ssrc uint32) *SSRCState {
	return &SSRCState{SSRC: ssrc}
}

// NextOutboundIndex advances the outbound sequence number, bumping ROC on
// 16-bit wraparound, and returns the resulting packet index.
func (s *SSRCState) NextOutboundIndex() (index uint64, seq uint16) {
	if s.haveLastSeq {
		next := s.lastSeq + 1
		if next < s.lastSeq {
			s.ROC++
		}
		s.lastSeq = next
	} else {
		s.haveLastSeq = true
		s.lastSeq = 0
	}
	return PacketIndex(s.ROC, s.lastSeq), s.lastSeq
}

// InboundIndex estimates the packet index for an inbound sequence number
// without mutating state; callers update ROC/lastSeq only after the packet
// authenticates, via CommitInbound.
func (s *SSRCState) InboundIndex(seq uint16) uint64 {
	if !s.haveLastSeq {
		return PacketIndex(s.ROC, seq)
	}
	roc := EstimateROC(PacketIndex(s.ROC, s.lastSeq), seq, s.ROC)
	return PacketIndex(roc, seq)
}

// CommitInbound updates ROC/lastSeq after a packet at index/seq has
// authenticated and passed the replay window: state updates only on success.
func (s *SSRCState) CommitInbound(index uint64, seq uint16) {
	s.ROC = uint32(index >> 16)
	s.lastSeq = seq
	s.haveLastSeq = true
}
