package cef

// Header entries exposed by Fields, named after the CEF key dictionary.
const (
	FieldVendor      = "deviceVendor"
	FieldProduct     = "deviceProduct"
	FieldVersion     = "deviceVersion"
	FieldSignatureID = "deviceEventClassId"
	FieldName        = "name"
	FieldSeverity    = "severity"
)

// Fields flattens m into a raw key/value map for alias resolution. The
// header is added under its dictionary names and extensions under their
// own keys. When an extension repeats a key the first occurrence wins,
// and extensions never shadow header entries.
func (m *Message) Fields() map[string]string {
	out := make(map[string]string, len(m.Extensions)+6)
	for _, ext := range m.Extensions {
		if _, dup := out[ext.Key]; !dup {
			out[ext.Key] = ext.Value
		}
	}

	out[FieldVendor] = m.DeviceVendor
	out[FieldProduct] = m.DeviceProduct
	out[FieldVersion] = m.DeviceVersion
	out[FieldSignatureID] = m.SignatureID
	out[FieldName] = m.Name
	if m.Severity.Present() {
		out[FieldSeverity] = m.Severity.Raw()
	}
	return out
}

// Lookup returns the first extension value stored under key.
func (m *Message) Lookup(key string) (string, bool) {
	for _, ext := range m.Extensions {
		if ext.Key == key {
			return ext.Value, true
		}
	}
	return "", false
}
