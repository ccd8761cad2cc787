// Package interceptor implements the pluggable chain that sits between the
// media transport and the application: every inbound and outbound
// media/control packet passes through it, and interceptors may inject
// additional outbound control packets on a timer. The registry is generic
// (register by name, ordered chain, per-stream bind/unbind) so a caller can
// add interceptors beyond the five built-ins (sender-report generator,
// receiver-report generator, NACK responder, NACK generator, and the
// transport-wide congestion-control observer) without touching the
// pipeline.
package interceptor
