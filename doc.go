// Package rtcengine is a sans-I/O WebRTC protocol engine: ICE connectivity,
// DTLS handshake, SRTP/SRTCP media, SCTP-over-DTLS data channels, and SDP
// offer/answer negotiation, all driven by a host that owns every socket and
// every clock read.
//
// # Architecture
//
// [Session] is the single entry point. Its I/O loop runs on eight operations
// — poll_write, poll_read, poll_event, poll_timeout,
// handle_read, handle_write, handle_event, handle_timeout — matching the
// method names PollWrite, PollRead, PollEvent, PollTimeout, HandleRead,
// HandleWrite, HandleEvent, HandleTimeout. Setup and negotiation use further
// Session methods (Gather, AddTrack, CreateOffer, CreateAnswer,
// SetLocalDescription, SetRemoteDescription, OpenDataChannel, RestartICE,
// Close). Every other exported type in
// this package is a convenience over those eight calls: Config to build a
// Session, the Fault taxonomy to interpret its errors, and the message
// types in types.go to interpret what it hands back.
//
// The host drives the engine like this:
//
//	sess, err := rtcengine.NewSession(cfg, time.Now())
//	for {
//	    deadline := sess.PollTimeout(time.Now())
//	    // sleep until deadline, or until a datagram arrives
//	    if datagram arrived {
//	        sess.HandleRead(time.Now(), datagram)
//	    } else {
//	        sess.HandleTimeout(time.Now())
//	    }
//	    for _, out := range sess.PollWrite(time.Now()) {
//	        // send out.Bytes to out.PeerAddr
//	    }
//	}
//
// Internally a Session wires together ice.Agent (connectivity), dtls.Endpoint
// (handshake), srtp (media encryption), sctp.Association plus its data
// channels (reliable streams), sdp.Negotiator (offer/answer), and an
// interceptor.Chain (RTCP feedback), routed per datagram by
// pipeline.Demultiplexer.
package rtcengine
