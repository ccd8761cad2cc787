// Package sctp implements the subset of SCTP-over-DTLS (RFC 8261) the
// reliable data-channel transport needs: the common packet header, chunk
// TLV framing, the four-way association handshake, DATA/SACK delivery with
// partial reliability (FORWARD-TSN, RFC 3758), stream reset (RE-CONFIG, RFC
// 6525), and RFC 4960's congestion-control formulas. It is sans-I/O: every
// exported type exposes handle_read/handle_write/poll_write/poll_timeout/
// handle_timeout style methods and takes an explicit now time.Time wherever
// a deadline or RTO matters.
package sctp
