// Package severity derives a CEF severity from canonical event fields.
//
// Severity is computed from event content by an ordered rule cascade. The
// first matching rule decides; later rules are never consulted. A rule only
// matches on present, non-empty values.
package severity

import (
	"fmt"
	"strings"

	"cef-relay/internal/fields"
)

// Level is a CEF severity in [0,10].
type Level int

const (
	MinLevel Level = 0
	MaxLevel Level = 10

	// DefaultLevel is the informational severity used when no rule matches.
	DefaultLevel Level = 3
)

// Valid reports whether l is within the CEF severity range.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

func (l Level) String() string {
	return fmt.Sprintf("%d", int(l))
}

// Rule is one step of the cascade.
type Rule struct {
	Name  string
	Level Level
	Match func(fields.Canonical) bool
}

// Rule names.
const (
	RuleQuarantine = "quarantine"
	RuleSuccess    = "success"
	RuleFailed     = "failed"
	RuleError      = "error"
	RuleTunnel     = "tunnel"
	RuleDefault    = "default"
)

var (
	quarantineRule = Rule{Name: RuleQuarantine, Level: 9, Match: func(f fields.Canonical) bool {
		return strings.Contains(lower(f, fields.Reason), "quarantine")
	}}
	successRule = Rule{Name: RuleSuccess, Level: 1, Match: func(f fields.Canonical) bool {
		return oneOf(lower(f, fields.Status), "success", "successful")
	}}
	failedRule = Rule{Name: RuleFailed, Level: 5, Match: func(f fields.Canonical) bool {
		return oneOf(lower(f, fields.Status), "failed", "failure")
	}}
	errorRule = Rule{Name: RuleError, Level: 8, Match: func(f fields.Canonical) bool {
		if _, ok := f.Lookup(fields.ErrorCode); ok {
			return true
		}
		return oneOf(lower(f, fields.Subtype), "gateway-error", "connection-error")
	}}
	tunnelRule = Rule{Name: RuleTunnel, Level: 7, Match: func(f fields.Canonical) bool {
		return oneOf(lower(f, fields.Subtype), "tunnel-down", "gateway-unavailable")
	}}
)

// Order selects a rule sequence.
type Order string

const (
	// OrderIngest ranks the status rules ahead of the error rules. It is
	// used when converting raw Panorama records.
	OrderIngest Order = "ingest"

	// OrderRewrite ranks error and tunnel conditions ahead of status. It is
	// used when re-scoring CEF that already carries a status.
	OrderRewrite Order = "rewrite"
)

// Rules returns the cascade for o, or an error for an unknown order.
func Rules(o Order) ([]Rule, error) {
	switch o {
	case OrderIngest:
		return []Rule{quarantineRule, successRule, failedRule, errorRule, tunnelRule}, nil
	case OrderRewrite:
		return []Rule{quarantineRule, errorRule, tunnelRule, failedRule, successRule}, nil
	}
	return nil, fmt.Errorf("unknown severity order %q", o)
}

// Classifier evaluates a rule cascade. It holds no mutable state and is
// safe to share.
type Classifier struct {
	rules []Rule
	def   Level
}

// New returns a Classifier for order o falling back to def.
func New(o Order, def Level) (*Classifier, error) {
	if !def.Valid() {
		return nil, fmt.Errorf("default severity %d out of range", def)
	}
	rules, err := Rules(o)
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: rules, def: def}, nil
}

// Classify returns the severity for f.
func (c *Classifier) Classify(f fields.Canonical) Level {
	level, _ := c.Explain(f)
	return level
}

// Explain returns the severity for f and the name of the deciding rule.
func (c *Classifier) Explain(f fields.Canonical) (Level, string) {
	for _, r := range c.rules {
		if r.Match(f) {
			return r.Level, r.Name
		}
	}
	return c.def, RuleDefault
}

// Default returns the fallback severity.
func (c *Classifier) Default() Level {
	return c.def
}

func lower(f fields.Canonical, k fields.Key) string {
	return strings.ToLower(strings.TrimSpace(f.Get(k)))
}

func oneOf(v string, options ...string) bool {
	if v == "" {
		return false
	}
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
