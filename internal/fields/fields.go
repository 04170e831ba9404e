// Package fields resolves vendor-specific raw keys into canonical semantic fields.
package fields

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Key names a canonical field.
type Key string

// Canonical is an immutable set of resolved canonical fields.
// Values are never empty: an absent field is simply not present.
type Canonical struct {
	values map[Key]string
}

// New builds a Canonical from values, skipping empty strings.
func New(values map[Key]string) Canonical {
	c := Canonical{values: make(map[Key]string, len(values))}
	for k, v := range values {
		if v != "" {
			c.values[k] = v
		}
	}
	return c
}

// Lookup returns the value of k and whether it is present.
func (c Canonical) Lookup(k Key) (string, bool) {
	v, ok := c.values[k]
	return v, ok
}

// Get returns the value of k, or "" when absent.
func (c Canonical) Get(k Key) string {
	return c.values[k]
}

// Len returns the number of present fields.
func (c Canonical) Len() int {
	return len(c.values)
}

// Empty reports whether no field was resolved.
func (c Canonical) Empty() bool {
	return len(c.values) == 0
}

// Keys returns the present keys in sorted order.
func (c Canonical) Keys() []Key {
	keys := make([]Key, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Alias lists the raw source keys for one canonical field, in priority order.
type Alias struct {
	Key     Key
	Sources []string
}

// AliasTable is an ordered set of aliases.
type AliasTable []Alias

// Resolve builds a Canonical from raw. For each alias the first source with
// a value that is not blank wins; fields with no present source stay unset.
// The winning value is kept as is.
func (t AliasTable) Resolve(raw map[string]string) Canonical {
	c := Canonical{values: make(map[Key]string)}
	for _, a := range t {
		for _, src := range a.Sources {
			if v := raw[src]; strings.TrimSpace(v) != "" {
				c.values[a.Key] = v
				break
			}
		}
	}
	return c
}

// Sources returns the source keys registered for k.
func (t AliasTable) Sources(k Key) []string {
	for _, a := range t {
		if a.Key == k {
			return a.Sources
		}
	}
	return nil
}

// ParseRaw splits one text record into raw key/value pairs.
//
// A record starting with '{' is decoded as a JSON object when possible.
// Anything else, including malformed JSON, is read as whitespace-separated
// key=value tokens. Tokens without '=' are ignored and values cannot contain
// whitespace.
func ParseRaw(text string) map[string]string {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]string{}
	}

	if strings.HasPrefix(text, "{") {
		if raw, ok := parseJSON(text); ok {
			return raw
		}
	}

	raw := make(map[string]string)
	for _, token := range strings.Fields(text) {
		k, v, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		raw[k] = strings.TrimSpace(v)
	}
	return raw
}

func parseJSON(text string) (map[string]string, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	// Trailing garbage after the object means this was not a JSON record.
	if dec.More() {
		return nil, false
	}

	raw := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := renderJSONValue(v); ok {
			raw[k] = s
		}
	}
	return raw, true
}

func renderJSONValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return "", false
		}
		return strings.TrimSuffix(buf.String(), "\n"), true
	}
}

// Canonicalize parses text and resolves it against IngestAliases.
func Canonicalize(text string) Canonical {
	return IngestAliases.Resolve(ParseRaw(text))
}
