package ingest

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"cef-relay/internal/errors"
	"cef-relay/internal/logging"
)

// EngineConfig holds configuration for the relay loop.
type EngineConfig struct {
	// StatsInterval logs throughput every N forwarded records; 0 disables
	// periodic stats.
	StatsInterval uint64
	// RetryDelay pauses the loop after a receive error that is not a
	// timeout.
	RetryDelay time.Duration
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StatsInterval: 10000,
		RetryDelay:    DefaultPollInterval,
	}
}

// EngineMetrics holds metrics for the relay loop.
type EngineMetrics struct {
	Received      uint64
	Forwarded     uint64
	Dropped       uint64
	Skipped       uint64
	ReceiveErrors uint64
	SendErrors    uint64
}

// StatsReporter is implemented by processors that add their own counters
// to the stats line.
type StatsReporter interface {
	StatsAttrs() []any
}

// Engine relays records from a Receiver through a Processor to a Sender.
// All three run on the calling goroutine: there is no queue between them
// and records are forwarded in arrival order.
type Engine struct {
	config    EngineConfig
	receiver  Receiver
	processor Processor
	sender    Sender
	logger    *slog.Logger

	seq   uint64
	start time.Time

	received      uint64
	forwarded     uint64
	dropped       uint64
	skipped       uint64
	receiveErrors uint64
	sendErrors    uint64
}

// NewEngine creates an engine. Cancelling the context passed to Run closes
// the receiver; the caller closes the sender after Run returns.
func NewEngine(cfg EngineConfig, r Receiver, p Processor, s Sender, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:    cfg,
		receiver:  r,
		processor: p,
		sender:    s,
		logger:    logger.With("component", "engine"),
	}
}

// Run relays records until ctx is done or the receiver is closed. Errors
// on a single record or connection are logged and the loop continues, so
// Run only returns nil.
func (e *Engine) Run(ctx context.Context) error {
	// Unblock a receiver waiting in Accept as soon as ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { e.receiver.Close() })
	defer stop()
	defer e.receiver.Close()

	e.start = time.Now()
	e.logger.Info("relay started", "listen", e.receiver.Addr().String())

	for {
		rec, err := e.receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				e.logStats("relay stopped")
				return nil
			}
			atomic.AddUint64(&e.receiveErrors, 1)
			e.logger.Warn("receive failed", "error", err, "kind", errors.KindOf(err).String())
			e.pause(ctx)
			continue
		}
		e.handle(ctx, rec)
	}
}

func (e *Engine) handle(ctx context.Context, rec Record) {
	e.seq++
	rec.Seq = e.seq
	atomic.AddUint64(&e.received, 1)

	if len(bytes.TrimSpace(rec.Data)) == 0 {
		atomic.AddUint64(&e.skipped, 1)
		return
	}

	out, err := e.processor.Process(rec)
	if err != nil || len(out) == 0 {
		atomic.AddUint64(&e.dropped, 1)
		e.logger.Debug("record dropped",
			"seq", rec.Seq,
			"source", rec.Source,
			"error", err,
			"preview", logging.Preview(rec.Text()),
		)
		return
	}

	if err := e.sender.Send(ctx, out); err != nil {
		atomic.AddUint64(&e.sendErrors, 1)
		e.logger.Warn("send failed",
			"seq", rec.Seq,
			"source", rec.Source,
			"error", err,
		)
		return
	}

	n := atomic.AddUint64(&e.forwarded, 1)
	if e.config.StatsInterval > 0 && n%e.config.StatsInterval == 0 {
		e.logStats("relay stats")
	}
}

func (e *Engine) pause(ctx context.Context) {
	if e.config.RetryDelay <= 0 {
		return
	}
	t := time.NewTimer(e.config.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (e *Engine) logStats(msg string) {
	m := e.Metrics()
	elapsed := time.Since(e.start)
	eps := 0.0
	if elapsed > 0 {
		eps = float64(m.Forwarded) / elapsed.Seconds()
	}

	attrs := []any{
		"received", m.Received,
		"forwarded", m.Forwarded,
		"dropped", m.Dropped,
		"skipped", m.Skipped,
		"receive_errors", m.ReceiveErrors,
		"send_errors", m.SendErrors,
		"eps", int64(eps),
		"elapsed", elapsed.Round(time.Second).String(),
	}
	if sr, ok := e.processor.(StatsReporter); ok {
		attrs = append(attrs, sr.StatsAttrs()...)
	}
	e.logger.Info(msg, attrs...)
}

// Metrics returns the current engine metrics.
func (e *Engine) Metrics() EngineMetrics {
	return EngineMetrics{
		Received:      atomic.LoadUint64(&e.received),
		Forwarded:     atomic.LoadUint64(&e.forwarded),
		Dropped:       atomic.LoadUint64(&e.dropped),
		Skipped:       atomic.LoadUint64(&e.skipped),
		ReceiveErrors: atomic.LoadUint64(&e.receiveErrors),
		SendErrors:    atomic.LoadUint64(&e.sendErrors),
	}
}
