package rtcp

import (
	"reflect"
	"sort"
	"testing"
)

func TestNACKRoundTripSingleGap(t *testing.T) {
	n := &NACK{SenderSSRC: 1, MediaSSRC: 2, Lost: []uint16{100}}
	wire := n.Marshal()
	got, err := UnmarshalNACK(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SenderSSRC != 1 || got.MediaSSRC != 2 {
		t.Fatalf("NACK ssrc mismatch: %+v", got)
	}
	if !reflect.DeepEqual(got.Lost, []uint16{100}) {
		t.Fatalf("lost = %v, want [100]", got.Lost)
	}
}

func TestNACKRoundTripClusteredGaps(t *testing.T) {
	lost := []uint16{10, 11, 13, 20, 40}
	n := &NACK{SenderSSRC: 1, MediaSSRC: 2, Lost: lost}
	wire := n.Marshal()
	got, err := UnmarshalNACK(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Slice(got.Lost, func(i, j int) bool { return got.Lost[i] < got.Lost[j] })
	if !reflect.DeepEqual(got.Lost, lost) {
		t.Fatalf("lost = %v, want %v", got.Lost, lost)
	}
}

func TestPackNACKPairsSplitsWhenGapExceedsSixteen(t *testing.T) {
	pairs := packNACKPairs([]uint16{0, 20})
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2 for a gap wider than 16", len(pairs))
	}
}

func TestUnmarshalNACKRejectsWrongFormat(t *testing.T) {
	rr := &ReceiverReport{SSRC: 1}
	_, err := UnmarshalNACK(rr.Marshal())
	if err == nil {
		t.Fatal("expected error decoding RR as NACK")
	}
}
