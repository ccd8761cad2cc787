package interceptor

import (
	"testing"
	"time"

	"github.com/opd-ai/rtcengine/rtcp"
	"github.com/opd-ai/rtcengine/rtp"
)

func TestSenderReportGeneratorSuppressesSecondCallWithinInterval(t *testing.T) {
	gen := NewSenderReportGenerator()().(*SenderReportGenerator)
	gen.BindLocalStream(StreamInfo{SSRC: 1})

	now := time.Unix(0, 0)
	h := &rtp.Header{PayloadType: 96, SequenceNumber: 1, Timestamp: 1000, SSRC: 1}
	packet := append(h.Marshal(), []byte("payload")...)
	gen.HandleOutboundRTP(now, packet)

	if out := gen.HandleTimeout(now); len(out) != 1 {
		t.Fatalf("expected first HandleTimeout call to emit immediately, got %d reports", len(out))
	}
	if out := gen.HandleTimeout(now.Add(100 * time.Millisecond)); out != nil {
		t.Fatalf("expected no report before the interval elapses again, got %d", len(out))
	}
}

func TestSenderReportGeneratorReportsPacketAndOctetCounts(t *testing.T) {
	gen := NewSenderReportGenerator()().(*SenderReportGenerator)
	gen.BindLocalStream(StreamInfo{SSRC: 7})
	now := time.Unix(100, 0)

	h := &rtp.Header{PayloadType: 96, SequenceNumber: 1, Timestamp: 1000, SSRC: 7}
	wire := h.Marshal()
	packet := append(wire, []byte("abcde")...)
	gen.HandleOutboundRTP(now, packet)

	out := gen.HandleTimeout(now)
	if len(out) != 1 {
		t.Fatalf("got %d reports, want 1", len(out))
	}
	sr, err := rtcp.UnmarshalSenderReport(out[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.SSRC != 7 || sr.PacketCount != 1 || sr.OctetCount != 5 {
		t.Fatalf("SR mismatch: %+v", sr)
	}
}
