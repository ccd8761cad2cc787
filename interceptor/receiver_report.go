package interceptor

import (
	"time"

	"github.com/opd-ai/rtcengine/rtcp"
	"github.com/opd-ai/rtcengine/rtp"
)

const defaultRRInterval = 1 * time.Second

type receiverStats struct {
	jitter           rtcp.JitterEstimator
	extendedHighSeq  uint32
	haveSeq          bool
	lastSeq          uint16
	cycles           uint16
	receivedCount    uint32
	expectedBaseline uint32
	lastJitter       uint32
	lastSRNTP        uint64
	lastSRReceivedAt time.Time
}

// ReceiverReportGenerator emits an RFC 3550 §6.4.1 Receiver Report per
// bound inbound SSRC every rr_interval, including last-SR/delay-since-
// last-SR when a Sender Report has been observed.
type ReceiverReportGenerator struct {
	interval time.Duration
	stats    map[uint32]*receiverStats
	lastSent time.Time
}

// NewReceiverReportGenerator returns a factory usable with Registry.Register.
func NewReceiverReportGenerator() Factory {
	return func() Interceptor {
		return &ReceiverReportGenerator{interval: defaultRRInterval, stats: make(map[uint32]*receiverStats)}
	}
}

func (r *ReceiverReportGenerator) BindRemoteStream(info StreamInfo) {
	r.stats[info.SSRC] = &receiverStats{}
}

func (r *ReceiverReportGenerator) BindLocalStream(StreamInfo)        {}
func (r *ReceiverReportGenerator) UnbindRemoteStream(ssrc uint32)    { delete(r.stats, ssrc) }
func (r *ReceiverReportGenerator) UnbindLocalStream(uint32)          {}
func (r *ReceiverReportGenerator) HandleOutboundRTP(time.Time, []byte) {}

func (r *ReceiverReportGenerator) HandleInboundRTP(now time.Time, packet []byte) {
	h, _, err := rtp.Unmarshal(packet)
	if err != nil {
		return
	}
	st, ok := r.stats[h.SSRC]
	if !ok {
		st = &receiverStats{}
		r.stats[h.SSRC] = st
	}
	st.receivedCount++
	if !st.haveSeq {
		st.haveSeq = true
		st.lastSeq = h.SequenceNumber
		st.expectedBaseline = uint32(h.SequenceNumber)
	} else if h.SequenceNumber < st.lastSeq && st.lastSeq-h.SequenceNumber > 0x8000 {
		st.cycles++
	}
	st.lastSeq = h.SequenceNumber
	st.extendedHighSeq = uint32(st.cycles)<<16 | uint32(h.SequenceNumber)
	st.lastJitter = st.jitter.Update(h.Timestamp, uint32(now.UnixNano()/1000)) // microsecond-scale arrival clock
}

func (r *ReceiverReportGenerator) HandleInboundRTCP(now time.Time, packet []byte) {
	reports, err := rtcp.SplitCompound(packet)
	if err != nil {
		return
	}
	for _, rep := range reports {
		sr, err := rtcp.UnmarshalSenderReport(rep)
		if err != nil {
			continue
		}
		st, ok := r.stats[sr.SSRC]
		if !ok {
			continue
		}
		st.lastSRNTP = sr.NTPTimestamp
		st.lastSRReceivedAt = now
	}
}

func (r *ReceiverReportGenerator) PollTimeout(now time.Time) time.Time {
	if r.lastSent.IsZero() {
		return now
	}
	return r.lastSent.Add(r.interval)
}

func (r *ReceiverReportGenerator) HandleTimeout(now time.Time) [][]byte {
	if !r.lastSent.IsZero() && now.Sub(r.lastSent) < r.interval {
		return nil
	}
	r.lastSent = now
	var out [][]byte
	for ssrc, st := range r.stats {
		expected := st.extendedHighSeq - st.expectedBaseline + 1
		var lost uint32
		if expected > st.receivedCount {
			lost = expected - st.receivedCount
		}
		var fraction uint8
		if expected > 0 {
			fraction = uint8(lost * 256 / expected)
		}

		block := rtcp.ReportBlock{
			SSRC:            ssrc,
			FractionLost:    fraction,
			CumulativeLost:  lost,
			ExtendedHighSeq: st.extendedHighSeq,
			Jitter:          st.lastJitter,
		}
		if !st.lastSRReceivedAt.IsZero() {
			block.LastSR = uint32(st.lastSRNTP >> 16)
			delaySeconds := now.Sub(st.lastSRReceivedAt).Seconds()
			block.DelaySinceLastSR = uint32(delaySeconds * 65536)
		}

		rr := &rtcp.ReceiverReport{ReportBlocks: []rtcp.ReportBlock{block}}
		out = append(out, rr.Marshal())
	}
	return out
}
