// Package ice implements the connectivity agent: candidate gathering,
// pairing, connectivity checks, keepalives, restart, and nomination.
//
// The Agent performs no I/O. It is driven by a host loop that feeds inbound
// datagrams through HandleInbound, drains outbound STUN transactions through
// PollOutbound, and advances timers through PollTimeout/HandleTimeout, all
// against an explicit now supplied by the caller.
package ice
