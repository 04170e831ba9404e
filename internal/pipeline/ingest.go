// Package pipeline holds the two record processors the relay can run:
// Ingest converts raw PAN-OS syslog into CEF and Rewriter re-scores CEF
// produced elsewhere.
package pipeline

import (
	"log/slog"
	"sync/atomic"

	"cef-relay/internal/errors"
	"cef-relay/internal/fields"
	"cef-relay/internal/ingest"
	"cef-relay/internal/ingest/cef"
	"cef-relay/internal/severity"
)

// ErrNoFields is returned for records that resolve to no canonical field.
var ErrNoFields = errors.New("no usable fields")

// IngestMetrics holds counters for the ingest processor.
type IngestMetrics struct {
	Encoded uint64
	Dropped uint64
}

// Ingest converts raw records into CEF with a computed severity.
type Ingest struct {
	classifier *severity.Classifier
	encoder    *cef.Encoder
	logger     *slog.Logger

	encoded uint64
	dropped uint64
}

// NewIngest creates an ingest processor.
func NewIngest(c *severity.Classifier, enc *cef.Encoder, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{
		classifier: c,
		encoder:    enc,
		logger:     logger.With("component", "ingest"),
	}
}

// Process canonicalizes rec, classifies it and encodes it as CEF.
func (p *Ingest) Process(rec ingest.Record) ([]byte, error) {
	c := fields.Canonicalize(rec.Text())
	if c.Empty() {
		atomic.AddUint64(&p.dropped, 1)
		return nil, errors.E(errors.KindFormat, "pipeline.ingest", ErrNoFields)
	}

	level, rule := p.classifier.Explain(c)
	out := p.encoder.Encode(c, level)
	atomic.AddUint64(&p.encoded, 1)

	p.logger.Debug("record encoded",
		"seq", rec.Seq,
		"fields", c.Len(),
		"severity", int(level),
		"rule", rule,
	)
	return []byte(out), nil
}

// Metrics returns the current counters.
func (p *Ingest) Metrics() IngestMetrics {
	return IngestMetrics{
		Encoded: atomic.LoadUint64(&p.encoded),
		Dropped: atomic.LoadUint64(&p.dropped),
	}
}

// StatsAttrs implements ingest.StatsReporter.
func (p *Ingest) StatsAttrs() []any {
	m := p.Metrics()
	return []any{"encoded", m.Encoded, "no_fields", m.Dropped}
}
