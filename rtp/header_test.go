package rtp

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	h := &Header{
		Marker:         true,
		PayloadType:    96,
		SequenceNumber: 1000,
		Timestamp:      90000,
		SSRC:           0xdeadbeef,
		CSRC:           []uint32{1, 2},
	}
	wire := h.Marshal()

	got, n, err := Unmarshal(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(wire) {
		t.Fatalf("consumed %d, want %d", n, len(wire))
	}
	if !got.Marker || got.PayloadType != 96 || got.SequenceNumber != 1000 {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.CSRC) != 2 || got.CSRC[0] != 1 || got.CSRC[1] != 2 {
		t.Fatalf("CSRC mismatch: %+v", got.CSRC)
	}
}

func TestUnmarshalRejectsShortPacket(t *testing.T) {
	_, _, err := Unmarshal([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for undersized packet")
	}
}

func TestOneByteExtensionsRoundTrip(t *testing.T) {
	h := &Header{
		PayloadType:      96,
		SequenceNumber:   1,
		Timestamp:        1,
		SSRC:             1,
		Extension:        true,
		ExtensionProfile: oneByteExtensionMagic,
		ExtensionPayload: []byte{0x31, 0xAA, 0xBB, 0x00}, // id=3 len=2, payload AA BB, padding
	}
	exts, err := h.Extensions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exts) != 1 || exts[0].ID != 3 {
		t.Fatalf("extensions = %+v", exts)
	}
	if len(exts[0].Payload) != 2 || exts[0].Payload[0] != 0xAA {
		t.Fatalf("extension payload = %v", exts[0].Payload)
	}
}
