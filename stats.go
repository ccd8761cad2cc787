package rtcengine

import "github.com/opd-ai/rtcengine/pipeline"

// Stats exposes the Session's tree-of-counters accumulator to the host: per-
// subsystem packet/byte/error counts rooted at well-known child names
// ("ice", "dtls", "sctp", "media", "pipeline") so a host can build its own
// metrics exporter without reaching into engine internals.
type Stats struct {
	tree *pipeline.Stats
}

func newStats() *Stats {
	return &Stats{tree: pipeline.NewStats()}
}

// Snapshot flattens the counter tree into dotted-path names, e.g.
// "sctp.retransmits" -> 3.
func (s *Stats) Snapshot() map[string]uint64 {
	return s.tree.Snapshot()
}

// ICE returns the subtree of counters the connectivity agent reports into.
func (s *Stats) ICE() *pipeline.Stats { return s.tree.Child("ice") }

// DTLS returns the subtree of counters the handshake endpoint reports into.
func (s *Stats) DTLS() *pipeline.Stats { return s.tree.Child("dtls") }

// SCTP returns the subtree of counters the reliable association reports
// into.
func (s *Stats) SCTP() *pipeline.Stats { return s.tree.Child("sctp") }

// Media returns the subtree of counters the SRTP/SRTCP media path and its
// interceptors report into.
func (s *Stats) Media() *pipeline.Stats { return s.tree.Child("media") }
