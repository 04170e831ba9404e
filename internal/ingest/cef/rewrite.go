package cef

import (
	"strings"

	"cef-relay/internal/errors"
	"cef-relay/internal/severity"
)

// SetSeverity writes l into the severity segment of text without decoding
// anything else. An eight-segment record has segment 6 overwritten; a
// seven-segment record gets a new segment inserted before its extensions.
// All other bytes are kept. It returns the rewritten text and the severity
// that was replaced. Records that lack the prefix or have fewer than seven
// segments are rejected with a format error.
func SetSeverity(text string, l severity.Level) (string, Severity, error) {
	if !strings.HasPrefix(text, Prefix) {
		return "", Severity{}, errors.E(errors.KindFormat, "cef.set_severity", ErrInvalidCEF)
	}

	parts := strings.SplitN(text, "|", segmentsWithSeverity)
	level := l.String()

	switch len(parts) {
	case segmentsWithSeverity:
		old := Severity{raw: parts[6], present: true}
		parts[6] = level
		return strings.Join(parts, "|"), old, nil
	case segmentsNoSeverity:
		// parts[6] is the extension section; splice the new segment in
		// front of it.
		head := text[:len(text)-len(parts[6])]
		return head + level + "|" + parts[6], NoSeverity(), nil
	default:
		return "", Severity{}, errors.Formatf("cef.set_severity", "%w: expected at least %d segments, got %d",
			ErrInvalidCEF, segmentsNoSeverity, len(parts))
	}
}

// WithSeverity returns a copy of m carrying l.
func (m *Message) WithSeverity(l severity.Level) *Message {
	out := *m
	out.Severity = SeverityOf(l)
	return &out
}
