package cef

import "strings"

var (
	escaper   = strings.NewReplacer(`\`, `\\`, `=`, `\=`, "\n", `\n`, "\r", `\r`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\=`, `=`, `\n`, "\n", `\r`, "\r")
)

// Escape prepares an extension value for the wire. Backslashes are escaped
// first so Unescape(Escape(v)) == v for every v. Line breaks become \n and
// \r so a record never spans lines.
func Escape(v string) string {
	return escaper.Replace(v)
}

// Unescape reverses Escape. A backslash that does not start a recognised
// escape is kept as is.
func Unescape(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return unescaper.Replace(v)
}
