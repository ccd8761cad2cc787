// Package pipeline implements the per-packet handler chain that sits
// between the host's raw datagrams and the higher-level subsystems
// (connectivity, handshake, reliable stream, media). Every handler in the
// chain shares one contract:
//
//	HandleRead(now, msg)    → zero or more messages forwarded downstream
//	HandleWrite(now, msg)   → zero or more messages forwarded upstream
//	HandleTimeout(now)      → side effects only
//	PollTimeout(now)        → earliest deadline this handler wants
//	HandleEvent(event)      → control-plane notification
//
// The chain itself never inspects message payloads beyond what the
// Demultiplexer needs to route them; each handler owns its own protocol
// knowledge.
package pipeline
