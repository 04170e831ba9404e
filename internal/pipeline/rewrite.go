package pipeline

import (
	"log/slog"
	"sync/atomic"

	"cef-relay/internal/fields"
	"cef-relay/internal/ingest"
	"cef-relay/internal/ingest/cef"
	"cef-relay/internal/logging"
	"cef-relay/internal/severity"
)

// RewriteMetrics holds counters for the rewrite processor.
type RewriteMetrics struct {
	// Rewritten counts records decoded and re-scored.
	Rewritten uint64
	// Changed counts rewritten records whose severity text changed.
	Changed uint64
	// Fallback counts undecodable records given the default severity.
	Fallback uint64
	// Passthrough counts records forwarded untouched.
	Passthrough uint64
}

// Rewriter overwrites or inserts the severity of CEF records. Records
// that fail to decode but are still CEF-shaped get the classifier's
// default severity; anything else is forwarded as received.
type Rewriter struct {
	parser     *cef.Parser
	classifier *severity.Classifier
	logger     *slog.Logger

	rewritten   uint64
	changed     uint64
	fallback    uint64
	passthrough uint64
}

// NewRewriter creates a rewrite processor.
func NewRewriter(p *cef.Parser, c *severity.Classifier, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{
		parser:     p,
		classifier: c,
		logger:     logger.With("component", "rewrite"),
	}
}

// Process returns rec with its severity segment set. It never fails.
func (r *Rewriter) Process(rec ingest.Record) ([]byte, error) {
	text := cef.TrimRecord(rec.Text())

	msg, err := r.parser.Parse(text)
	if err == nil {
		level, rule := r.classifier.Explain(fields.CEFAliases.Resolve(msg.Fields()))
		out, old, err := cef.SetSeverity(text, level)
		if err == nil {
			atomic.AddUint64(&r.rewritten, 1)
			if old.Raw() != level.String() {
				atomic.AddUint64(&r.changed, 1)
			}
			r.logger.Debug("severity rewritten",
				"seq", rec.Seq,
				"old", old.String(),
				"new", int(level),
				"rule", rule,
			)
			return []byte(out), nil
		}
	}

	out, _, ferr := cef.SetSeverity(text, r.classifier.Default())
	if ferr != nil {
		atomic.AddUint64(&r.passthrough, 1)
		r.logger.Debug("record forwarded unmodified",
			"seq", rec.Seq,
			"error", ferr,
			"preview", logging.Preview(text),
		)
		return rec.Data, nil
	}

	atomic.AddUint64(&r.fallback, 1)
	r.logger.Debug("default severity applied",
		"seq", rec.Seq,
		"error", err,
		"preview", logging.Preview(text),
	)
	return []byte(out), nil
}

// Metrics returns the current counters.
func (r *Rewriter) Metrics() RewriteMetrics {
	return RewriteMetrics{
		Rewritten:   atomic.LoadUint64(&r.rewritten),
		Changed:     atomic.LoadUint64(&r.changed),
		Fallback:    atomic.LoadUint64(&r.fallback),
		Passthrough: atomic.LoadUint64(&r.passthrough),
	}
}

// StatsAttrs implements ingest.StatsReporter.
func (r *Rewriter) StatsAttrs() []any {
	m := r.Metrics()
	return []any{
		"rewritten", m.Rewritten,
		"severity_changed", m.Changed,
		"fallback", m.Fallback,
		"passthrough", m.Passthrough,
	}
}
