package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"cef-relay/internal/errors"
	"cef-relay/internal/ingest"
	"cef-relay/internal/ingest/cef"
	"cef-relay/internal/severity"
)

func newIngest(t *testing.T) *Ingest {
	t.Helper()
	c, err := severity.New(severity.OrderIngest, severity.DefaultLevel)
	if err != nil {
		t.Fatalf("severity.New() error: %v", err)
	}
	return NewIngest(c, cef.NewEncoder(cef.DefaultEncoderConfig()), nil)
}

func newRewriter(t *testing.T, strict bool) *Rewriter {
	t.Helper()
	c, err := severity.New(severity.OrderRewrite, severity.DefaultLevel)
	if err != nil {
		t.Fatalf("severity.New() error: %v", err)
	}
	cfg := cef.DefaultParserConfig()
	cfg.StrictMode = strict
	return NewRewriter(cef.NewParser(cfg), c, nil)
}

func record(s string) ingest.Record {
	return ingest.Record{Seq: 1, Data: []byte(s), Source: "192.0.2.10:5514"}
}

func TestIngest_Process(t *testing.T) {
	p := newIngest(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "login success",
			in:   "status=success subtype=login reason=- error_code=-",
			want: "CEF:0|PaloAlto|GlobalProtect|-|-|login|1|" +
				"outcome=success PanOSLogSubtype=login PanOSEventStatus=success " +
				"PanOSQuarantineReason=- PanOSConnectionErrorID=-",
		},
		{
			name: "quarantine beats success",
			in:   `{"status":"success","subtype":"login","reason":"device quarantined"}`,
			want: "CEF:0|PaloAlto|GlobalProtect|-|-|login|9|" +
				"outcome=success PanOSLogSubtype=login PanOSEventStatus=success " +
				"PanOSQuarantineReason=device quarantined",
		},
		{
			name: "template variables",
			in:   "$status=failed $subtype=gateway-auth",
			want: "CEF:0|PaloAlto|GlobalProtect|-|-|gateway-auth|5|" +
				"outcome=failed PanOSEventStatus=failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Process(record(tt.in))
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Process() =\n  %s\nwant\n  %s", out, tt.want)
			}
		})
	}

	if m := p.Metrics(); m.Encoded != uint64(len(tests)) || m.Dropped != 0 {
		t.Errorf("Metrics() = %+v", m)
	}
}

func TestIngest_DropsRecordsWithoutFields(t *testing.T) {
	p := newIngest(t)

	for _, in := range []string{"", "just some words", "{}", "unknown_key=value"} {
		out, err := p.Process(record(in))
		if err == nil {
			t.Errorf("Process(%q) = %q, want error", in, out)
			continue
		}
		if !errors.IsKind(err, errors.KindFormat) || !errors.Is(err, ErrNoFields) {
			t.Errorf("Process(%q) error = %v, want format error wrapping ErrNoFields", in, err)
		}
	}

	if m := p.Metrics(); m.Dropped != 4 || m.Encoded != 0 {
		t.Errorf("Metrics() = %+v", m)
	}
}

func TestRewriter_Process(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		in     string
		want   string
	}{
		{
			name: "tunnel outranks failed status",
			in:   "CEF:0|PaloAlto|GlobalProtect|1.0|login|tunnel-down|3|PanOSEventStatus=failed",
			want: "CEF:0|PaloAlto|GlobalProtect|1.0|login|tunnel-down|7|PanOSEventStatus=failed",
		},
		{
			name: "severity inserted",
			in:   "CEF:0|PaloAlto|GlobalProtect|1.0|login|portal-auth|PanOSEventStatus=success",
			want: "CEF:0|PaloAlto|GlobalProtect|1.0|login|portal-auth|1|PanOSEventStatus=success",
		},
		{
			name: "error id outranks success",
			in:   "CEF:0|PaloAlto|GlobalProtect|1.0|gp|gateway-connected|1|outcome=success PanOSConnectionErrorID=12",
			want: "CEF:0|PaloAlto|GlobalProtect|1.0|gp|gateway-connected|8|outcome=success PanOSConnectionErrorID=12",
		},
		{
			name: "no matching rule uses default",
			in:   "CEF:0|Acme|Widget|2|100|started|10|msg=hello",
			want: "CEF:0|Acme|Widget|2|100|started|3|msg=hello",
		},
		{
			name: "trailing newline trimmed",
			in:   "CEF:0|PaloAlto|GlobalProtect|1.0|login|login|5|outcome=success\n",
			want: "CEF:0|PaloAlto|GlobalProtect|1.0|login|login|1|outcome=success",
		},
		{
			name:   "strict failure falls back to default",
			strict: true,
			in:     "CEF:x|PaloAlto|GlobalProtect|1.0|login|tunnel-down|9|PanOSEventStatus=failed",
			want:   "CEF:x|PaloAlto|GlobalProtect|1.0|login|tunnel-down|3|PanOSEventStatus=failed",
		},
		{
			name:   "strict fallback inserts severity",
			strict: true,
			in:     "CEF:x|PaloAlto|GlobalProtect|1.0|login|tunnel-down|PanOSEventStatus=failed",
			want:   "CEF:x|PaloAlto|GlobalProtect|1.0|login|tunnel-down|3|PanOSEventStatus=failed",
		},
		{
			name: "five segments forwarded unmodified",
			in:   "CEF:0|PaloAlto|GlobalProtect|1.0|login",
			want: "CEF:0|PaloAlto|GlobalProtect|1.0|login",
		},
		{
			name: "not CEF forwarded unmodified",
			in:   "status=success subtype=login",
			want: "status=success subtype=login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRewriter(t, tt.strict)
			out, err := r.Process(record(tt.in))
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Process() =\n  %s\nwant\n  %s", out, tt.want)
			}
		})
	}
}

func TestRewriter_PassthroughKeepsBytes(t *testing.T) {
	r := newRewriter(t, false)
	in := []byte("CEF:0|broken\xff|only \n")

	out, err := r.Process(ingest.Record{Data: in})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("Process() = %q, want input bytes %q", out, in)
	}
}

func TestRewriter_Metrics(t *testing.T) {
	r := newRewriter(t, true)

	inputs := []string{
		"CEF:0|PaloAlto|GlobalProtect|1.0|login|login|1|outcome=success",
		"CEF:0|PaloAlto|GlobalProtect|1.0|login|tunnel-down|3|PanOSEventStatus=failed",
		"CEF:0|PaloAlto|GlobalProtect|1.0|login|login|outcome=failed",
		"CEF:x|PaloAlto|GlobalProtect|1.0|login|login|1|outcome=success",
		"CEF:0|short",
	}
	for _, in := range inputs {
		if _, err := r.Process(record(in)); err != nil {
			t.Fatalf("Process(%q) error: %v", in, err)
		}
	}

	want := RewriteMetrics{Rewritten: 3, Changed: 2, Fallback: 1, Passthrough: 1}
	if got := r.Metrics(); got != want {
		t.Errorf("Metrics() = %+v, want %+v", got, want)
	}

	attrs := r.StatsAttrs()
	if len(attrs) != 8 || attrs[0] != "rewritten" {
		t.Errorf("StatsAttrs() = %v", attrs)
	}
}

func TestProcessorsSatisfyInterfaces(t *testing.T) {
	var _ ingest.Processor = newIngest(t)
	var _ ingest.StatsReporter = newIngest(t)
	var _ ingest.Processor = newRewriter(t, false)
	var _ ingest.StatsReporter = newRewriter(t, false)
}

func TestRewriter_ClassifiesExtensionsPastParserCap(t *testing.T) {
	r := newRewriter(t, false)

	var ext strings.Builder
	for i := 0; i < cef.DefaultParserConfig().MaxExtensions; i++ {
		fmt.Fprintf(&ext, "cs%d=filler ", i)
	}
	ext.WriteString("PanOSEventStatus=failed")

	out, err := r.Process(record("CEF:0|PaloAlto|GlobalProtect|1.0|login|login|3|" + ext.String()))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if !strings.HasPrefix(string(out), "CEF:0|PaloAlto|GlobalProtect|1.0|login|login|5|") {
		t.Errorf("Process() = %.80s..., want severity 5", out)
	}
}

func TestIngest_JSONValuesSurviveDecode(t *testing.T) {
	p := newIngest(t)
	parser := cef.NewParser(cef.DefaultParserConfig())

	out, err := p.Process(record(`{"machinename":"line1\nline2 ","srcuser":" alice","status":"failed"}`))
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if bytes.ContainsAny(out, "\r\n") {
		t.Fatalf("Process() output spans lines: %q", out)
	}

	msg, err := parser.Parse(string(out))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if v, _ := msg.Lookup("shost"); v != "line1\nline2 " {
		t.Errorf("shost = %q, want %q", v, "line1\nline2 ")
	}
	if v, _ := msg.Lookup("suser"); v != " alice" {
		t.Errorf("suser = %q, want %q", v, " alice")
	}
}
