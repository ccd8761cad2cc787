package interceptor

import (
	"time"

	"github.com/opd-ai/rtcengine/rtcp"
	"github.com/opd-ai/rtcengine/rtp"
)

const defaultSRInterval = 1 * time.Second

type senderStats struct {
	packets         uint32
	bytes           uint32
	lastRTPTimestamp uint32
	lastRTPWallClock time.Time
}

// SenderReportGenerator emits an RFC 3550 Sender Report per bound outbound
// SSRC every sr_interval.
type SenderReportGenerator struct {
	interval time.Duration
	stats    map[uint32]*senderStats
	lastSent time.Time
}

// NewSenderReportGenerator returns a factory usable with Registry.Register.
func NewSenderReportGenerator() Factory {
	return func() Interceptor {
		return &SenderReportGenerator{interval: defaultSRInterval, stats: make(map[uint32]*senderStats)}
	}
}

// SetInterval overrides the default 1s reporting cadence.
func (s *SenderReportGenerator) SetInterval(interval time.Duration) {
	s.interval = interval
}

func (s *SenderReportGenerator) BindLocalStream(info StreamInfo) {
	s.stats[info.SSRC] = &senderStats{}
}

func (s *SenderReportGenerator) BindRemoteStream(StreamInfo)    {}
func (s *SenderReportGenerator) UnbindLocalStream(ssrc uint32)  { delete(s.stats, ssrc) }
func (s *SenderReportGenerator) UnbindRemoteStream(uint32)      {}
func (s *SenderReportGenerator) HandleInboundRTP(time.Time, []byte)  {}
func (s *SenderReportGenerator) HandleInboundRTCP(time.Time, []byte) {}

func (s *SenderReportGenerator) HandleOutboundRTP(now time.Time, packet []byte) {
	h, n, err := rtp.Unmarshal(packet)
	if err != nil {
		return
	}
	st, ok := s.stats[h.SSRC]
	if !ok {
		st = &senderStats{}
		s.stats[h.SSRC] = st
	}
	st.packets++
	st.bytes += uint32(len(packet) - n)
	st.lastRTPTimestamp = h.Timestamp
	st.lastRTPWallClock = now
}

func (s *SenderReportGenerator) PollTimeout(now time.Time) time.Time {
	if s.lastSent.IsZero() {
		return now
	}
	return s.lastSent.Add(s.interval)
}

func (s *SenderReportGenerator) HandleTimeout(now time.Time) [][]byte {
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < s.interval {
		return nil
	}
	s.lastSent = now
	var out [][]byte
	for ssrc, st := range s.stats {
		sr := &rtcp.SenderReport{
			SSRC:         ssrc,
			NTPTimestamp: toNTP(now),
			RTPTimestamp: st.lastRTPTimestamp,
			PacketCount:  st.packets,
			OctetCount:   st.bytes,
		}
		out = append(out, sr.Marshal())
	}
	return out
}

// toNTP converts a wall-clock time to a 64-bit NTP timestamp: seconds
// since the NTP epoch (1900-01-01) in the high 32 bits, fractional seconds
// in the low 32 bits.
func toNTP(t time.Time) uint64 {
	const ntpEpochOffset = 2208988800 // seconds between 1900-01-01 and 1970-01-01
	secs := uint64(t.Unix() + ntpEpochOffset)
	frac := uint64(t.Nanosecond()) << 32 / 1e9
	return secs<<32 | frac
}
