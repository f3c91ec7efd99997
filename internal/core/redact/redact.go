// Package redact masks secret-like substrings before anything reaches the
// catalog or its companion artifacts.
package redact

import (
	"regexp"

	"github.com/neilberkman/cophist/pkg/chatsessions"
)

const marker = "<redacted>"

// Two ordered pattern classes. Assignments are rewritten to keep the key
// name; generic high-entropy tokens are replaced wholesale. The marker
// itself matches neither pattern, so re-redacting is a no-op.
var (
	assignmentPattern  = regexp.MustCompile(`(?i)(token|secret|key)=([A-Za-z0-9_\-]{6,})`)
	highEntropyPattern = regexp.MustCompile(`[A-Za-z0-9+/=_-]{32,}`)
)

// Redactor scrubs text and serialized JSON, counting every substitution.
// When disabled, text passes through unchanged and the count stays zero.
type Redactor struct {
	enabled bool
	count   int
}

// New returns a Redactor; pass false to disable scrubbing.
func New(enabled bool) *Redactor {
	return &Redactor{enabled: enabled}
}

// Enabled reports whether scrubbing is active.
func (r *Redactor) Enabled() bool {
	return r.enabled
}

// Count returns the number of substitutions made so far.
func (r *Redactor) Count() int {
	return r.count
}

// Text redacts a plain string.
func (r *Redactor) Text(s string) string {
	if !r.enabled {
		return s
	}
	s = assignmentPattern.ReplaceAllStringFunc(s, func(match string) string {
		r.count++
		groups := assignmentPattern.FindStringSubmatch(match)
		return groups[1] + "=" + marker
	})
	s = highEntropyPattern.ReplaceAllStringFunc(s, func(string) string {
		r.count++
		return marker
	})
	return s
}

// TextPtr redacts an optional string, preserving nil.
func (r *Redactor) TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := r.Text(*s)
	return &out
}

// Dump serializes a value tree and scans the entire result, since secrets
// can hide anywhere in the nested structure. Nil and null map to nil.
func (r *Redactor) Dump(v *chatsessions.Value) *string {
	if v.IsNull() {
		return nil
	}
	out := r.Text(chatsessions.Dump(v))
	return &out
}
