package cef

import (
	"strings"

	"cef-relay/internal/fields"
	"cef-relay/internal/severity"
)

// Version is the CEF format version written by the encoder.
const Version = "0"

// placeholder fills a header field the record did not supply.
const placeholder = "-"

// EncoderConfig holds configuration for the CEF encoder.
type EncoderConfig struct {
	Vendor  string
	Product string
	Layout  Layout
}

// DefaultEncoderConfig returns the Palo Alto GlobalProtect configuration.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		Vendor:  "PaloAlto",
		Product: "GlobalProtect",
		Layout:  PanOSLayout,
	}
}

// Encoder renders canonical fields as CEF.
type Encoder struct {
	vendor  string
	product string
	layout  Layout
}

// NewEncoder creates an encoder. A nil layout selects PanOSLayout.
func NewEncoder(cfg EncoderConfig) *Encoder {
	layout := cfg.Layout
	if layout == nil {
		layout = PanOSLayout
	}
	return &Encoder{
		vendor:  cfg.Vendor,
		product: cfg.Product,
		layout:  layout,
	}
}

// Message builds the CEF message for c at level l. Header values missing
// from c become "-"; extensions whose source is absent are omitted.
func (e *Encoder) Message(c fields.Canonical, l severity.Level) *Message {
	msg := &Message{
		Version:       Version,
		DeviceVendor:  e.vendor,
		DeviceProduct: e.product,
		DeviceVersion: headerValue(c, fields.SenderVersion),
		SignatureID:   headerValue(c, fields.LogType),
		Name:          headerValue(c, fields.Subtype),
		Severity:      SeverityOf(l),
	}
	for _, p := range e.layout {
		if v, ok := c.Lookup(p.Source); ok {
			msg.Extensions = append(msg.Extensions, Extension{Key: p.Extension, Value: v})
		}
	}
	return msg
}

// Encode returns the wire form of c at level l.
func (e *Encoder) Encode(c fields.Canonical, l severity.Level) string {
	return e.Message(c, l).String()
}

// headerBreaks keeps header values on one line.
var headerBreaks = strings.NewReplacer("\n", `\n`, "\r", `\r`)

func headerValue(c fields.Canonical, k fields.Key) string {
	if v, ok := c.Lookup(k); ok {
		return headerBreaks.Replace(v)
	}
	return placeholder
}

// String renders the message. Header fields are written verbatim, the
// severity segment only when present, and extension values escaped.
func (m *Message) String() string {
	var b strings.Builder
	b.Grow(64 + 24*len(m.Extensions))

	b.WriteString(Prefix)
	b.WriteString(m.Version)
	for _, h := range []string{m.DeviceVendor, m.DeviceProduct, m.DeviceVersion, m.SignatureID, m.Name} {
		b.WriteByte('|')
		b.WriteString(h)
	}
	if m.Severity.Present() {
		b.WriteByte('|')
		b.WriteString(m.Severity.Raw())
	}
	b.WriteByte('|')

	for i, ext := range m.Extensions {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(ext.Key)
		b.WriteByte('=')
		b.WriteString(Escape(ext.Value))
	}
	return b.String()
}
