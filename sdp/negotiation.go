package sdp

import (
	"errors"
	"fmt"
)

// NegotiationState is the RFC 8829 §4.1.7 five-state signaling state
// machine.
type NegotiationState int

const (
	StateStable NegotiationState = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateHaveLocalPranswer
	StateHaveRemotePranswer
)

// BundlePolicy controls how media sections are grouped onto shared
// transports when an offer is created, per RFC 9143's bundle policies.
type BundlePolicy int

const (
	BundleBalanced BundlePolicy = iota
	BundleMaxBundle
	BundleMaxCompat
)

var errNoOfferToAnswer = errors.New("sdp: answer applied without a pending offer")
var errMidKindChanged = errors.New("sdp: mid reused with a different kind")
var errNothingToRollBack = errors.New("sdp: rollback from stable state")

// Negotiator drives the negotiation state machine for one session and
// validates mid stability. It records the bundle policy it was built with
// but does not apply it; ApplyBundlePolicy applies the policy passed to it.
type Negotiator struct {
	state NegotiationState

	localDescription  *Description
	remoteDescription *Description

	// stableLocal and stableRemote are the descriptions in force when an
	// answer last returned the state machine to stable, restored by rollback.
	stableLocal  *Description
	stableRemote *Description

	bundlePolicy BundlePolicy
	knownMids    map[string]MediaKind
}

// NewNegotiator creates a Negotiator in the stable state.
func NewNegotiator(policy BundlePolicy) *Negotiator {
	return &Negotiator{bundlePolicy: policy, knownMids: make(map[string]MediaKind)}
}

// State returns the current negotiation state.
func (n *Negotiator) State() NegotiationState { return n.state }

// LocalDescription returns the most recently applied local description, or
// nil before the first SetLocalDescription call.
func (n *Negotiator) LocalDescription() *Description { return n.localDescription }

// RemoteDescription returns the most recently applied remote description,
// or nil before the first SetRemoteDescription call.
func (n *Negotiator) RemoteDescription() *Description { return n.remoteDescription }

// SetLocalDescription applies a locally-generated description, advancing
// the state machine per RFC 8829 §4.1.7's transition table.
func (n *Negotiator) SetLocalDescription(d *Description) error {
	if d.Type == TypeRollback {
		return n.rollbackLocal()
	}
	if err := n.checkMidStability(d); err != nil {
		return err
	}
	switch d.Type {
	case TypeOffer:
		if n.state != StateStable {
			return fmt.Errorf("sdp: local offer set from state %d, want stable", n.state)
		}
		n.state = StateHaveLocalOffer
	case TypeAnswer:
		if n.state != StateHaveRemoteOffer {
			return errNoOfferToAnswer
		}
		n.state = StateStable
		n.stableLocal, n.stableRemote = d, n.remoteDescription
	case TypePranswer:
		if n.state != StateHaveRemoteOffer && n.state != StateHaveLocalPranswer {
			return fmt.Errorf("sdp: local pranswer set from unexpected state %d", n.state)
		}
		n.state = StateHaveLocalPranswer
	}
	n.localDescription = d
	n.rememberMids(d)
	return nil
}

// SetRemoteDescription applies a description received from the peer.
func (n *Negotiator) SetRemoteDescription(d *Description) error {
	if d.Type == TypeRollback {
		return n.rollbackRemote()
	}
	if err := n.checkMidStability(d); err != nil {
		return err
	}
	switch d.Type {
	case TypeOffer:
		if n.state != StateStable {
			return fmt.Errorf("sdp: remote offer set from state %d, want stable", n.state)
		}
		n.state = StateHaveRemoteOffer
	case TypeAnswer:
		if n.state != StateHaveLocalOffer {
			return errNoOfferToAnswer
		}
		n.state = StateStable
		n.stableLocal, n.stableRemote = n.localDescription, d
	case TypePranswer:
		if n.state != StateHaveLocalOffer && n.state != StateHaveRemotePranswer {
			return fmt.Errorf("sdp: remote pranswer set from unexpected state %d", n.state)
		}
		n.state = StateHaveRemotePranswer
	}
	n.remoteDescription = d
	n.rememberMids(d)
	return nil
}

func (n *Negotiator) rollbackLocal() error {
	if n.state == StateStable {
		return errNothingToRollBack
	}
	n.state = StateStable
	n.localDescription = n.stableLocal
	return nil
}

func (n *Negotiator) rollbackRemote() error {
	if n.state == StateStable {
		return errNothingToRollBack
	}
	n.state = StateStable
	n.remoteDescription = n.stableRemote
	return nil
}

func (n *Negotiator) checkMidStability(d *Description) error {
	for _, s := range d.Sections {
		if s.Mid == "" {
			continue
		}
		if prior, ok := n.knownMids[s.Mid]; ok && prior != s.Kind {
			return errMidKindChanged
		}
	}
	return nil
}

func (n *Negotiator) rememberMids(d *Description) {
	for _, s := range d.Sections {
		if s.Mid != "" {
			n.knownMids[s.Mid] = s.Kind
		}
	}
}

// ApplyBundlePolicy assigns BundleGroup and BundleOnly according to
// policy: max-bundle groups every section under the
// first section's mid; balanced groups sections of the same kind; max-compat
// groups nothing.
func ApplyBundlePolicy(d *Description, policy BundlePolicy) {
	if len(d.Sections) == 0 {
		return
	}
	switch policy {
	case BundleMaxCompat:
		d.BundleGroup = nil
		return
	case BundleMaxBundle:
		d.BundleGroup = nil
		for i, s := range d.Sections {
			d.BundleGroup = append(d.BundleGroup, s.Mid)
			if i > 0 {
				d.Sections[i].BundleOnly = true
			}
		}
	case BundleBalanced:
		seenKind := make(map[MediaKind]bool)
		d.BundleGroup = nil
		for i, s := range d.Sections {
			if !seenKind[s.Kind] {
				seenKind[s.Kind] = true
				d.BundleGroup = append(d.BundleGroup, s.Mid)
				continue
			}
			d.Sections[i].BundleOnly = true
		}
	}
}

// IntersectCodecs returns the codecs both sides can use: the offered codecs
// whose name, clock rate and channel count also appear in available,
// preserving the offer's ordering (its priority). Payload type numbers are
// not compared.
func IntersectCodecs(offered, available []Codec) []Codec {
	supported := make(map[string]bool)
	for _, c := range available {
		supported[codecKey(c)] = true
	}
	var out []Codec
	for _, c := range offered {
		if supported[codecKey(c)] {
			out = append(out, c)
		}
	}
	return out
}

func codecKey(c Codec) string {
	return fmt.Sprintf("%s/%d/%d", c.Name, c.ClockRate, c.Channels)
}

// SelectDTLSRole resolves the answerer's concrete active/passive role from
// the offerer's setup attribute, per RFC 8842 §5.1: an offerer proposing
// actpass lets the answerer choose (this package always answers active,
// deferring to the peer's acceptance); an offerer proposing active or
// passive pins the answerer to the opposite role.
func SelectDTLSRole(offeredRole DTLSRole) DTLSRole {
	switch offeredRole {
	case RoleActive:
		return RolePassive
	case RolePassive:
		return RoleActive
	default:
		return RoleActive
	}
}
