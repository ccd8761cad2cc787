package rtcp

import "testing"

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Count: 3, Type: TypeReceiverReport, LengthWords: 7}
	wire := encodeHeader(h)
	got, err := decodeHeader(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != 2 || got.Count != 3 || got.Type != TypeReceiverReport || got.LengthWords != 7 {
		t.Fatalf("header mismatch: %+v", got)
	}
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	_, err := decodeHeader([]byte{1, 2})
	if err == nil {
		t.Fatal("expected error for undersized header")
	}
}

func TestSplitCompoundSplitsMultipleReports(t *testing.T) {
	sr := &SenderReport{SSRC: 1, PacketCount: 10, OctetCount: 2000}
	rr := &ReceiverReport{SSRC: 2, ReportBlocks: []ReportBlock{{SSRC: 3}}}

	compound := append(sr.Marshal(), rr.Marshal()...)
	reports, err := SplitCompound(compound)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}

	gotSR, err := UnmarshalSenderReport(reports[0])
	if err != nil {
		t.Fatalf("unexpected error decoding SR: %v", err)
	}
	if gotSR.SSRC != 1 || gotSR.PacketCount != 10 {
		t.Fatalf("SR mismatch: %+v", gotSR)
	}

	gotRR, err := UnmarshalReceiverReport(reports[1])
	if err != nil {
		t.Fatalf("unexpected error decoding RR: %v", err)
	}
	if gotRR.SSRC != 2 || len(gotRR.ReportBlocks) != 1 || gotRR.ReportBlocks[0].SSRC != 3 {
		t.Fatalf("RR mismatch: %+v", gotRR)
	}
}

func TestSplitCompoundRejectsTruncatedPacket(t *testing.T) {
	sr := &SenderReport{SSRC: 1}
	wire := sr.Marshal()
	_, err := SplitCompound(wire[:len(wire)-4])
	if err == nil {
		t.Fatal("expected error for truncated compound packet")
	}
}
