package cef

import "testing"

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a=b", `a\=b`},
		{`a\b`, `a\\b`},
		{`a\=b`, `a\\\=b`},
		{`\\`, `\\\\`},
		{"a\nb", `a\nb`},
		{"a\r\nb", `a\r\nb`},
		{`a\nb`, `a\\nb`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscape_RoundTrip(t *testing.T) {
	values := []string{
		"",
		"simple",
		"a=b=c",
		`C:\Program Files\GP`,
		`trailing\`,
		`\=`,
		`\\==\\`,
		"unicode = ünïcödé",
		"line1\nline2",
		"crlf\r\n",
		`literal \n not a break`,
		"mixed \\\n= end",
	}

	for _, v := range values {
		if got := Unescape(Escape(v)); got != v {
			t.Errorf("Unescape(Escape(%q)) = %q", v, got)
		}
	}
}

func TestUnescape_UnknownEscape(t *testing.T) {
	if got := Unescape(`a\tb`); got != `a\tb` {
		t.Errorf("Unescape() = %q, want input unchanged", got)
	}
}
