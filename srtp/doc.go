// Package srtp implements the media transport: authenticated encryption of
// RTP media packets and RTCP control packets, packet-index computation with
// rollover-counter estimation, replay protection, and key lifetime tracking.
//
// The transport performs no I/O; it transforms plaintext RTP/RTCP payloads
// into ciphertext (and back) given keying material exported by the
// handshake transport.
package srtp
