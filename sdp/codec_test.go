package sdp

import "testing"

func TestParseThenEmitPreservesSectionsAndCodecs(t *testing.T) {
	d := &Description{
		SessionID: 1, SessionVersion: 1,
		Sections: []MediaSection{
			{
				Kind: KindAudio, Mid: "0", Port: 9, Direction: DirectionSendRecv,
				Codecs:      []Codec{{PayloadType: 111, Name: "opus", ClockRate: 48000, Channels: 2}},
				ICEUfrag:    "ufrag1",
				ICEPassword: "pwd1",
				Fingerprint: Fingerprint{Algorithm: "sha-256", Value: "AA:BB"},
				DTLSRole:    RoleActPass,
			},
		},
	}
	text := Marshal(d)
	got, err := Unmarshal(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(got.Sections))
	}
	s := got.Sections[0]
	if s.Mid != "0" || s.Kind != KindAudio || s.ICEUfrag != "ufrag1" || s.Fingerprint.Value != "AA:BB" {
		t.Fatalf("section mismatch: %+v", s)
	}
	if len(s.Codecs) != 1 || s.Codecs[0].Name != "opus" || s.Codecs[0].ClockRate != 48000 || s.Codecs[0].Channels != 2 {
		t.Fatalf("codec mismatch: %+v", s.Codecs)
	}
}

func TestUnmarshalParsesBundleGroup(t *testing.T) {
	text := "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\na=group:BUNDLE 0 1\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=mid:0\r\n"
	got, err := Unmarshal(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.BundleGroup) != 2 || got.BundleGroup[0] != "0" || got.BundleGroup[1] != "1" {
		t.Fatalf("bundle group = %v", got.BundleGroup)
	}
}

func TestUnmarshalRejectsMalformedMediaLine(t *testing.T) {
	_, err := Unmarshal("v=0\r\nm=audio\r\n")
	if err == nil {
		t.Fatal("expected error for malformed m= line")
	}
}

func TestParseSetupDefaultsToActpass(t *testing.T) {
	text := "v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 0\r\na=mid:0\r\na=setup:garbage\r\n"
	got, err := Unmarshal(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Sections[0].DTLSRole != RoleActPass {
		t.Fatalf("role = %v, want actpass default", got.Sections[0].DTLSRole)
	}
}
