// Package rtcp implements the RTCP packet family the feedback interceptors
// consume: compound packets, sender/receiver reports (RFC 3550 §6), and
// feedback messages (generic NACK per RFC 4585, transport-wide congestion
// control per draft-holmer-rmcat-transport-wide-cc-extensions).
package rtcp
