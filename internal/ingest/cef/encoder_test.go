package cef

import (
	"strings"
	"testing"

	"cef-relay/internal/fields"
	"cef-relay/internal/severity"
)

func TestEncoder_Encode(t *testing.T) {
	enc := NewEncoder(DefaultEncoderConfig())

	tests := []struct {
		name  string
		raw   string
		level severity.Level
		want  string
	}{
		{
			name:  "login success",
			raw:   "status=success subtype=login reason=- error_code=-",
			level: 1,
			want: "CEF:0|PaloAlto|GlobalProtect|-|-|login|1|" +
				"outcome=success PanOSLogSubtype=login PanOSEventStatus=success " +
				"PanOSQuarantineReason=- PanOSConnectionErrorID=-",
		},
		{
			name:  "header from sender version and type",
			raw:   `{"sender_sw_version":"10.2.4","type":"GLOBALPROTECT","subtype":"portal-auth","srcuser":"bob","public_ip":"198.51.100.7"}`,
			level: 3,
			want: "CEF:0|PaloAlto|GlobalProtect|10.2.4|GLOBALPROTECT|portal-auth|3|" +
				"src=198.51.100.7 suser=bob PanOSLogSubtype=portal-auth " +
				"PanOSSourceUserName=bob PanOSPublicIPv4=198.51.100.7",
		},
		{
			name:  "values escaped",
			raw:   `opaque=a=b\c`,
			level: 3,
			want:  `CEF:0|PaloAlto|GlobalProtect|-|-|-|3|PanOSDescription=a\=b\\c`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := enc.Encode(fields.Canonicalize(tt.raw), tt.level)
			if got != tt.want {
				t.Errorf("Encode() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestEncoder_CustomHeader(t *testing.T) {
	enc := NewEncoder(EncoderConfig{
		Vendor:  "Acme",
		Product: "Relay",
		Layout:  Layout{{"act", fields.Status}},
	})

	got := enc.Encode(fields.New(map[fields.Key]string{fields.Status: "failed"}), 5)
	want := "CEF:0|Acme|Relay|-|-|-|5|act=failed"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncoder_OmitsAbsentFields(t *testing.T) {
	enc := NewEncoder(DefaultEncoderConfig())
	got := enc.Encode(fields.New(map[fields.Key]string{fields.Status: "success"}), 1)

	for _, key := range []string{"PanOSQuarantineReason=", "PanOSConnectionErrorID=", "src="} {
		if strings.Contains(got, key) {
			t.Errorf("Encode() = %q contains absent field %s", got, key)
		}
	}
}

func TestEncoder_RoundTrip(t *testing.T) {
	enc := NewEncoder(DefaultEncoderConfig())
	parser := NewParser(ParserConfig{StrictMode: true})

	c := fields.New(map[fields.Key]string{
		fields.Subtype:         "gateway-error",
		fields.Status:          "failed",
		fields.ConnectionError: `tls handshake failed: key=\x00 path=C:\gp`,
		fields.ErrorCode:       "42",
	})

	msg, err := parser.Parse(enc.Encode(c, 8))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if l, ok := msg.Severity.Level(); !ok || l != 8 {
		t.Errorf("Severity = %v, want 8", msg.Severity)
	}
	if v, _ := msg.Lookup(ExtConnectionError); v != c.Get(fields.ConnectionError) {
		t.Errorf("%s = %q, want %q", ExtConnectionError, v, c.Get(fields.ConnectionError))
	}
	if v, _ := msg.Lookup(ExtConnectionErrID); v != "42" {
		t.Errorf("%s = %q, want 42", ExtConnectionErrID, v)
	}
}

func TestEncoder_RoundTripPreservesValues(t *testing.T) {
	enc := NewEncoder(DefaultEncoderConfig())
	parser := NewParser(DefaultParserConfig())

	values := []string{
		"host ",
		" host",
		`ends with \ `,
		"line1\nline2",
		"crlf\r\n",
		"  spaced  out  ",
	}

	for _, v := range values {
		for _, last := range []bool{false, true} {
			c := map[fields.Key]string{fields.MachineName: v}
			if !last {
				c[fields.Status] = "failed"
			}

			out := enc.Encode(fields.New(c), 5)
			if strings.ContainsAny(out, "\r\n") {
				t.Fatalf("Encode(%q) contains a line break: %q", v, out)
			}

			msg, err := parser.Parse(out)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", out, err)
			}
			if got, _ := msg.Lookup("shost"); got != v {
				t.Errorf("shost = %q, want %q (last=%v, record %q)", got, v, last, out)
			}
		}
	}
}

func TestEncoder_HeaderLineBreaks(t *testing.T) {
	enc := NewEncoder(DefaultEncoderConfig())

	out := enc.Encode(fields.New(map[fields.Key]string{fields.Subtype: "gateway\r\nerror"}), 8)
	if strings.ContainsAny(out, "\r\n") {
		t.Errorf("Encode() contains a line break: %q", out)
	}
	if !strings.Contains(out, `|gateway\r\nerror|8|`) {
		t.Errorf("Encode() = %q, want escaped name", out)
	}
}
