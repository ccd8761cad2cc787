package interceptor

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/opd-ai/rtcengine/rtcp"
	"github.com/opd-ai/rtcengine/rtp"
)

const twccTestExtensionID = 3

func extensionPayloadFor(seq uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], seq)
	// one-byte header form: id<<4 | (len-1), followed by len payload bytes
	return append([]byte{twccTestExtensionID<<4 | 1}, buf[:]...)
}

func twccHeaderWithSeq(rtpSeq uint16, twccSeq uint16) *rtp.Header {
	return &rtp.Header{
		PayloadType:      96,
		SequenceNumber:   rtpSeq,
		SSRC:             55,
		Extension:        true,
		ExtensionProfile: 0xBEDE,
		ExtensionPayload: extensionPayloadFor(twccSeq),
	}
}

func TestTWCCObserverTracksInboundArrivalsAndEmitsFeedback(t *testing.T) {
	obs := NewTWCCObserver(twccTestExtensionID, 1, 55)().(*TWCCObserver)

	now := time.Unix(0, 0)
	for i, twccSeq := range []uint16{0, 1, 3} { // seq 2 lost
		h := twccHeaderWithSeq(uint16(100+i), twccSeq)
		obs.HandleInboundRTP(now.Add(time.Duration(i)*5*time.Millisecond), h.Marshal())
	}

	out := obs.HandleTimeout(now.Add(defaultTWCCInterval))
	if len(out) != 1 {
		t.Fatalf("got %d feedback packets, want 1", len(out))
	}
	fb, err := rtcp.UnmarshalTWCC(out[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.PacketResults) != 4 {
		t.Fatalf("got %d packet results, want 4 (seq 0..3)", len(fb.PacketResults))
	}
	if fb.PacketResults[2].Received {
		t.Fatal("expected sequence 2 to be reported as lost")
	}
	if !fb.PacketResults[0].Received || !fb.PacketResults[1].Received || !fb.PacketResults[3].Received {
		t.Fatal("expected sequences 0, 1, 3 to be reported as received")
	}
}

func TestTWCCObserverSuppressesFeedbackBeforeInterval(t *testing.T) {
	obs := NewTWCCObserver(twccTestExtensionID, 1, 55)().(*TWCCObserver)
	now := time.Unix(0, 0)

	h := twccHeaderWithSeq(200, 0)
	obs.HandleInboundRTP(now, h.Marshal())

	if out := obs.HandleTimeout(now); len(out) != 1 {
		t.Fatalf("expected first call to emit immediately, got %d", len(out))
	}
	if out := obs.HandleTimeout(now.Add(10 * time.Millisecond)); out != nil {
		t.Fatalf("expected no feedback before interval elapses, got %d", len(out))
	}
}

func TestTWCCObserverIgnoresPacketsWithoutMatchingExtension(t *testing.T) {
	obs := NewTWCCObserver(twccTestExtensionID, 1, 55)().(*TWCCObserver)
	now := time.Unix(0, 0)

	h := &rtp.Header{PayloadType: 96, SequenceNumber: 300, SSRC: 55}
	obs.HandleInboundRTP(now, h.Marshal())

	out := obs.HandleTimeout(now)
	if out != nil {
		t.Fatalf("expected no feedback with no tracked arrivals, got %d", len(out))
	}
}
