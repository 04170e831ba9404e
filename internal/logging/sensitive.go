package logging

import (
	"regexp"
	"strings"
)

// SensitiveFields contains field names that should be masked in logs.
var SensitiveFields = map[string]bool{
	"password":      true,
	"passwd":        true,
	"pass":          true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"private_key":   true,
	"client_secret": true,
	"credentials":   true,
	"authorization": true,
	"bearer":        true,
	"sasl_password": true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// MaskSensitiveValue masks a value if the field name is sensitive.
func MaskSensitiveValue(fieldName, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveField(fieldName) {
		return MaskedValue
	}
	return value
}

// IsSensitiveField checks if a field name is sensitive.
func IsSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)

	if SensitiveFields[lowerField] {
		return true
	}

	for sensitive := range SensitiveFields {
		if strings.Contains(lowerField, sensitive) {
			return true
		}
	}

	return false
}

// SensitivePatterns contains regex patterns for sensitive data in raw strings.
var SensitivePatterns = []*regexp.Regexp{
	// API keys and tokens (common formats)
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd)['":\s]*[=:]\s*['"]?([a-zA-Z0-9_\-\.]+)['"]?`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`),
	// Basic auth
	regexp.MustCompile(`(?i)basic\s+[a-zA-Z0-9+/=]+`),
	// AWS keys
	regexp.MustCompile(`(ABIA|ACCA|AGPA|AIDA|AIPA|AKIA|ANPA|ANVA|APKA|AROA|ASCA|ASIA)[A-Z0-9]{16}`),
}

// MaskSensitivePatterns masks sensitive patterns in a raw string.
func MaskSensitivePatterns(s string) string {
	result := s
	for _, pattern := range SensitivePatterns {
		result = pattern.ReplaceAllString(result, MaskedValue)
	}
	return result
}
