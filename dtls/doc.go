// Package dtls implements the handshake transport: a datagram-oriented TLS
// handshake (RFC 6347) over the connectivity agent's selected pair, plus the
// record layer that encrypts and authenticates application records once the
// handshake completes and exports keying material to the media transport.
//
// Like every other subsystem, the endpoint performs no I/O: it is driven by
// explicit handle_read/poll_write calls carrying an explicit now.
package dtls
