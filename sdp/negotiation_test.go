package sdp

import "testing"

func TestNegotiatorOfferAnswerReachesStable(t *testing.T) {
	offerer := NewNegotiator(BundleBalanced)
	answerer := NewNegotiator(BundleBalanced)

	offer := &Description{Type: TypeOffer, Sections: []MediaSection{{Kind: KindAudio, Mid: "0"}}}
	if err := offerer.SetLocalDescription(offer); err != nil {
		t.Fatalf("offerer local offer: %v", err)
	}
	if offerer.State() != StateHaveLocalOffer {
		t.Fatalf("offerer state = %v, want HaveLocalOffer", offerer.State())
	}
	if err := answerer.SetRemoteDescription(offer); err != nil {
		t.Fatalf("answerer remote offer: %v", err)
	}
	if answerer.State() != StateHaveRemoteOffer {
		t.Fatalf("answerer state = %v, want HaveRemoteOffer", answerer.State())
	}

	answer := &Description{Type: TypeAnswer, Sections: []MediaSection{{Kind: KindAudio, Mid: "0"}}}
	if err := answerer.SetLocalDescription(answer); err != nil {
		t.Fatalf("answerer local answer: %v", err)
	}
	if answerer.State() != StateStable {
		t.Fatalf("answerer state = %v, want stable", answerer.State())
	}
	if err := offerer.SetRemoteDescription(answer); err != nil {
		t.Fatalf("offerer remote answer: %v", err)
	}
	if offerer.State() != StateStable {
		t.Fatalf("offerer state = %v, want stable", offerer.State())
	}
}

func TestNegotiatorRollbackRestoresPriorStable(t *testing.T) {
	n := NewNegotiator(BundleBalanced)
	base := &Description{Type: TypeOffer, Sections: []MediaSection{{Kind: KindAudio, Mid: "0"}}}
	if err := n.SetLocalDescription(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.SetLocalDescription(&Description{Type: TypeRollback}); err != nil {
		t.Fatalf("unexpected error on rollback: %v", err)
	}
	if n.State() != StateStable {
		t.Fatalf("state after rollback = %v, want stable", n.State())
	}
}

func TestNegotiatorRejectsMidKindChange(t *testing.T) {
	n := NewNegotiator(BundleBalanced)
	first := &Description{Type: TypeOffer, Sections: []MediaSection{{Kind: KindAudio, Mid: "0"}}}
	if err := n.SetLocalDescription(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.SetLocalDescription(&Description{Type: TypeRollback}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changed := &Description{Type: TypeOffer, Sections: []MediaSection{{Kind: KindVideo, Mid: "0"}}}
	if err := n.SetLocalDescription(changed); err == nil {
		t.Fatal("expected error reusing mid 0 with a different kind")
	}
}

func TestNegotiatorRejectsAnswerWithoutOffer(t *testing.T) {
	n := NewNegotiator(BundleBalanced)
	answer := &Description{Type: TypeAnswer}
	if err := n.SetRemoteDescription(answer); err == nil {
		t.Fatal("expected error applying answer without a pending offer")
	}
}

func TestApplyBundlePolicyMaxBundle(t *testing.T) {
	d := &Description{Sections: []MediaSection{
		{Kind: KindAudio, Mid: "0"},
		{Kind: KindVideo, Mid: "1"},
		{Kind: KindData, Mid: "2"},
	}}
	ApplyBundlePolicy(d, BundleMaxBundle)
	if len(d.BundleGroup) != 3 {
		t.Fatalf("bundle group = %v, want all 3 mids", d.BundleGroup)
	}
	if d.Sections[0].BundleOnly {
		t.Fatal("first section should not be bundle-only")
	}
	if !d.Sections[1].BundleOnly || !d.Sections[2].BundleOnly {
		t.Fatal("non-leader sections should be bundle-only under max-bundle")
	}
}

func TestApplyBundlePolicyBalancedGroupsByKind(t *testing.T) {
	d := &Description{Sections: []MediaSection{
		{Kind: KindAudio, Mid: "0"},
		{Kind: KindAudio, Mid: "1"},
		{Kind: KindVideo, Mid: "2"},
	}}
	ApplyBundlePolicy(d, BundleBalanced)
	if len(d.BundleGroup) != 2 {
		t.Fatalf("bundle group = %v, want one entry per kind", d.BundleGroup)
	}
	if d.Sections[0].BundleOnly || d.Sections[2].BundleOnly {
		t.Fatal("first section of each kind should not be bundle-only")
	}
	if !d.Sections[1].BundleOnly {
		t.Fatal("second audio section should be bundle-only")
	}
}

func TestApplyBundlePolicyMaxCompatGroupsNothing(t *testing.T) {
	d := &Description{Sections: []MediaSection{{Kind: KindAudio, Mid: "0"}}}
	ApplyBundlePolicy(d, BundleMaxCompat)
	if len(d.BundleGroup) != 0 {
		t.Fatalf("bundle group = %v, want none under max-compat", d.BundleGroup)
	}
}

func TestIntersectCodecsPreservesOfferOrder(t *testing.T) {
	offered := []Codec{
		{Name: "VP8", ClockRate: 90000},
		{Name: "opus", ClockRate: 48000, Channels: 2},
		{Name: "H264", ClockRate: 90000},
	}
	available := []Codec{
		{Name: "opus", ClockRate: 48000, Channels: 2},
		{Name: "H264", ClockRate: 90000},
	}
	got := IntersectCodecs(offered, available)
	if len(got) != 2 || got[0].Name != "opus" || got[1].Name != "H264" {
		t.Fatalf("intersection = %+v", got)
	}
}

func TestSelectDTLSRoleRespondsOpposite(t *testing.T) {
	if SelectDTLSRole(RoleActive) != RolePassive {
		t.Fatal("expected passive in response to active")
	}
	if SelectDTLSRole(RolePassive) != RoleActive {
		t.Fatal("expected active in response to passive")
	}
	if SelectDTLSRole(RoleActPass) != RoleActive {
		t.Fatal("expected active in response to actpass")
	}
}
