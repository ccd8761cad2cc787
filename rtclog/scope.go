// Package rtclog provides the structured logging conventions shared by
// every subsystem of the engine: a package-scoped helper that attaches
// consistent fields (package, function, subsystem) to every log line
// instead of ad-hoc fmt.Printf calls.
package rtclog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Scope is a standardized logging helper bound to one package/subsystem.
// Every subsystem (ice, dtls, sctp, srtp, sdp, interceptor, pipeline)
// creates one package-level Scope and derives per-call fields from it.
type Scope struct {
	pkg    string
	fields logrus.Fields
}

// NewScope creates a logging scope for the named package.
func NewScope(pkg string) *Scope {
	return &Scope{
		pkg:    pkg,
		fields: logrus.Fields{"package": pkg},
	}
}

// With returns a derived scope carrying an additional field, leaving the
// receiver untouched.
func (s *Scope) With(key string, value interface{}) *Scope {
	fields := make(logrus.Fields, len(s.fields)+1)
	for k, v := range s.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Scope{pkg: s.pkg, fields: fields}
}

// WithError returns a derived scope carrying error context.
func (s *Scope) WithError(err error, operation string) *Scope {
	return s.With("operation", operation).With("error", err.Error())
}

func (s *Scope) entry() *logrus.Entry {
	return logrus.WithFields(s.fields)
}

// Debug logs at debug level.
func (s *Scope) Debug(msg string) { s.entry().Debug(msg) }

// Debugf logs a formatted message at debug level.
func (s *Scope) Debugf(format string, args ...interface{}) { s.entry().Debug(fmt.Sprintf(format, args...)) }

// Info logs at info level.
func (s *Scope) Info(msg string) { s.entry().Info(msg) }

// Warn logs at warn level.
func (s *Scope) Warn(msg string) { s.entry().Warn(msg) }

// Error logs at error level.
func (s *Scope) Error(msg string) { s.entry().Error(msg) }

// HexPreview renders the first n bytes of data as hex for safe logging of
// otherwise-sensitive wire material (keys, tokens, transaction ids).
func HexPreview(data []byte, n int) string {
	if len(data) == 0 {
		return "<empty>"
	}
	if n > len(data) {
		n = len(data)
	}
	suffix := ""
	if n < len(data) {
		suffix = "..."
	}
	return fmt.Sprintf("%x%s", data[:n], suffix)
}
