package sctp

import "testing"

func TestPacketMarshalUnmarshalRoundTrip(t *testing.T) {
	p := &Packet{
		Header: Header{SourcePort: 5000, DestinationPort: 5001, VerificationTag: 0xabcdef01},
		Chunks: []Chunk{
			{Type: ChunkData, Flags: 3, Value: []byte("hello")},
			{Type: ChunkSack, Value: []byte{0, 0, 0, 1}},
		},
	}
	wire := Marshal(p)
	got, err := Unmarshal(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Header.SourcePort != 5000 || got.Header.VerificationTag != 0xabcdef01 {
		t.Fatalf("header mismatch: %+v", got.Header)
	}
	if len(got.Chunks) != 2 || string(got.Chunks[0].Value) != "hello" {
		t.Fatalf("chunks mismatch: %+v", got.Chunks)
	}
}

func TestUnmarshalRejectsBadChecksum(t *testing.T) {
	p := &Packet{Header: Header{SourcePort: 1, DestinationPort: 2}}
	wire := Marshal(p)
	wire[8] ^= 0xff
	_, err := Unmarshal(wire)
	if err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestUnmarshalRejectsShortPacket(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for undersized packet")
	}
}

func TestChunkValuePaddedToFourByteBoundary(t *testing.T) {
	c := Chunk{Type: ChunkData, Value: []byte("abc")} // length 4+3=7, padded to 8
	wire := marshalChunk(c)
	if len(wire)%4 != 0 {
		t.Fatalf("chunk wire length %d not 4-byte aligned", len(wire))
	}
}
