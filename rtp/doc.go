// Package rtp implements RTP header parsing and serialization per RFC 3550,
// including CSRC lists and header extensions. The engine preserves the
// header verbatim and reads the extension map from the negotiated session
// description; it does not interpret payload contents.
package rtp
