// Package cef provides Common Event Format (CEF) parsing and encoding.
package cef

import (
	"strconv"
	"strings"

	"cef-relay/internal/errors"
	"cef-relay/internal/severity"
)

// Prefix starts every CEF record.
const Prefix = "CEF:"

// Segment counts of the two CEF shapes when split on the first seven pipes.
const (
	segmentsNoSeverity   = 7
	segmentsWithSeverity = 8
)

var (
	// ErrInvalidCEF indicates the message is not valid CEF format.
	ErrInvalidCEF = errors.New("invalid CEF format")
	// ErrMissingVersion indicates the CEF version is missing or invalid.
	ErrMissingVersion = errors.New("missing CEF version")
	// ErrInvalidSeverity indicates the severity value is invalid.
	ErrInvalidSeverity = errors.New("invalid severity value")
	// ErrExtensions indicates the extension section could not be tokenized.
	ErrExtensions = errors.New("invalid CEF extensions")
)

// Severity is the optional severity segment of a CEF header.
type Severity struct {
	raw     string
	present bool
}

// SeverityOf returns a present severity holding l.
func SeverityOf(l severity.Level) Severity {
	return Severity{raw: l.String(), present: true}
}

// NoSeverity returns the absent variant.
func NoSeverity() Severity {
	return Severity{}
}

// Present reports whether the header carries a severity segment.
func (s Severity) Present() bool { return s.present }

// Raw returns the segment text exactly as received.
func (s Severity) Raw() string { return s.raw }

// Level parses a numeric severity. It reports false for the absent
// variant, for named severities and for out-of-range values.
func (s Severity) Level() (severity.Level, bool) {
	if !s.present {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.raw))
	if err != nil || !severity.Level(n).Valid() {
		return 0, false
	}
	return severity.Level(n), true
}

func (s Severity) String() string {
	if !s.present {
		return "absent"
	}
	return s.raw
}

var namedSeverities = map[string]bool{
	"low": true, "medium": true, "high": true, "very-high": true,
}

func (s Severity) wellFormed() bool {
	if _, ok := s.Level(); ok {
		return true
	}
	return namedSeverities[strings.ToLower(strings.TrimSpace(s.raw))]
}

// Extension is one key=value pair with its value unescaped.
type Extension struct {
	Key   string
	Value string
}

// Message is a decoded CEF record.
type Message struct {
	Version       string
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
	SignatureID   string
	Name          string
	Severity      Severity
	Extensions    []Extension

	// RawExtensions is the extension section as received, still escaped.
	RawExtensions string
}

// Parser handles CEF message parsing.
type Parser struct {
	strictMode    bool
	maxExtensions int
}

// ParserConfig holds configuration for the CEF parser.
type ParserConfig struct {
	// StrictMode rejects records whose header or extensions are malformed
	// beyond the segment count.
	StrictMode bool
	// MaxExtensions caps the decoded pairs in strict mode; 0 means no cap.
	// Lenient parsers decode every pair.
	MaxExtensions int
}

// DefaultParserConfig returns the default parser configuration.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		StrictMode:    false,
		MaxExtensions: 100,
	}
}

// NewParser creates a new CEF parser with the given configuration.
func NewParser(cfg ParserConfig) *Parser {
	return &Parser{
		strictMode:    cfg.StrictMode,
		maxExtensions: cfg.MaxExtensions,
	}
}

// TrimRecord strips leading whitespace and the trailing line terminator.
// Trailing spaces belong to the last extension value and are kept.
func TrimRecord(s string) string {
	return strings.TrimRight(strings.TrimLeft(s, " \t\r\n"), "\r\n")
}

// Parse decodes a CEF record. Seven pipe segments yield a message without
// severity, eight yield one with severity. Lenient parsing only fails on a
// missing prefix or fewer than seven segments.
func (p *Parser) Parse(message string) (*Message, error) {
	message = TrimRecord(message)

	if !strings.HasPrefix(message, Prefix) {
		return nil, errors.E(errors.KindFormat, "cef.parse", ErrInvalidCEF)
	}

	parts := strings.SplitN(message, "|", segmentsWithSeverity)

	msg := &Message{
		Version:       strings.TrimPrefix(parts[0], Prefix),
		DeviceVendor:  segment(parts, 1),
		DeviceProduct: segment(parts, 2),
		DeviceVersion: segment(parts, 3),
		SignatureID:   segment(parts, 4),
		Name:          segment(parts, 5),
	}

	switch len(parts) {
	case segmentsWithSeverity:
		msg.Severity = Severity{raw: parts[6], present: true}
		msg.RawExtensions = parts[7]
	case segmentsNoSeverity:
		msg.Severity = NoSeverity()
		msg.RawExtensions = parts[6]
	default:
		return nil, errors.Formatf("cef.parse", "%w: expected at least %d segments, got %d",
			ErrInvalidCEF, segmentsNoSeverity, len(parts))
	}

	msg.Extensions = splitExtensions(msg.RawExtensions)

	if p.strictMode {
		if err := p.checkStrict(msg); err != nil {
			return nil, errors.E(errors.KindFormat, "cef.parse", err)
		}
	}

	return msg, nil
}

func (p *Parser) checkStrict(msg *Message) error {
	if _, err := strconv.Atoi(msg.Version); err != nil {
		return ErrMissingVersion
	}
	if msg.Severity.Present() && !msg.Severity.wellFormed() {
		return ErrInvalidSeverity
	}
	if strings.TrimSpace(msg.RawExtensions) != "" && len(msg.Extensions) == 0 {
		return ErrExtensions
	}
	if p.maxExtensions > 0 && len(msg.Extensions) > p.maxExtensions {
		return ErrExtensions
	}
	return nil
}

func segment(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// splitExtensions tokenizes key=value pairs. A key is the whitespace-free
// token directly before an unescaped '='. A value runs until the single
// separator character preceding the next key, so '=' characters that are
// escaped or not preceded by whitespace stay in the value, as does any
// other leading or trailing whitespace.
func splitExtensions(s string) []Extension {
	type mark struct{ keyStart, eq int }
	var marks []mark

	for i := 0; i < len(s); i++ {
		if s[i] != '=' || escapedAt(s, i) {
			continue
		}
		ks := i
		for ks > 0 && !isSpace(s[ks-1]) {
			ks--
		}
		if ks == i {
			continue
		}
		if n := len(marks); n > 0 && ks <= marks[n-1].eq {
			continue
		}
		marks = append(marks, mark{keyStart: ks, eq: i})
	}

	exts := make([]Extension, 0, len(marks))
	for i, m := range marks {
		end := len(s)
		if i+1 < len(marks) {
			// marks[i+1].keyStart is always preceded by whitespace.
			end = marks[i+1].keyStart - 1
		}
		exts = append(exts, Extension{
			Key:   s[m.keyStart:m.eq],
			Value: Unescape(s[m.eq+1 : end]),
		})
	}
	return exts
}

// escapedAt reports whether s[i] is preceded by an odd run of backslashes.
func escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
