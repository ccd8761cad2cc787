// Package sdp implements session description parse/emit (RFC 8866,
// line-oriented) and offer/answer negotiation with the Unified Plan
// conventions of RFC 8829: mid-based media section identity, BUNDLE group
// policy, codec intersection, DTLS role selection (RFC 8842 actpass), and
// the five-state negotiation state machine with rollback.
package sdp
