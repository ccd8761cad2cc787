package sctp

import "testing"

func TestDataChannelOpenRoundTrip(t *testing.T) {
	o := DataChannelOpen{ChannelType: ChannelReliable, Priority: 1, Label: "chat", Protocol: "json"}
	wire := MarshalDataChannelOpen(o)
	got, err := UnmarshalDataChannelOpen(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ChannelType != ChannelReliable || got.Label != "chat" || got.Protocol != "json" {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestUnmarshalDataChannelOpenRejectsWrongType(t *testing.T) {
	_, err := UnmarshalDataChannelOpen(MarshalDataChannelAck())
	if err == nil {
		t.Fatal("expected error decoding ACK as OPEN")
	}
}

func TestIsDataChannelAck(t *testing.T) {
	if !IsDataChannelAck(MarshalDataChannelAck()) {
		t.Fatal("expected ACK to be recognized")
	}
	if IsDataChannelAck(MarshalDataChannelOpen(DataChannelOpen{Label: "x"})) {
		t.Fatal("OPEN message should not be recognized as ACK")
	}
}
