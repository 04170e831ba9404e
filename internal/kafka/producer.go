package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned by Produce after Close.
var ErrProducerClosed = errors.New("kafka: producer is closed")

// Producer writes each message synchronously, once. Failed writes are
// reported to the caller and never retried.
type Producer struct {
	writer  *kafka.Writer
	config  *Config
	logger  *slog.Logger
	metrics *producerMetrics
	closed  atomic.Bool
}

type producerMetrics struct {
	messagesProduced atomic.Int64
	bytesProduced    atomic.Int64
	errors           atomic.Int64
	lastError        atomic.Value // stores error
	lastErrorTime    atomic.Value // stores time.Time
}

// NewProducer creates a new Kafka producer.
func NewProducer(config *Config, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dialer, err := config.GetDialer()
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		MaxAttempts:  1,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		Compression:  config.GetCompression(),
		Transport: &kafka.Transport{
			DialTimeout: config.DialTimeout,
			TLS:         dialer.TLS,
			SASL:        dialer.SASLMechanism,
		},
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	p := &Producer{
		writer:  writer,
		config:  config,
		logger:  logger,
		metrics: &producerMetrics{},
	}

	logger.Info("kafka producer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"compression", config.CompressionType,
	)

	return p, nil
}

// Produce sends a single message to the configured topic.
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	msg := kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.errors.Add(1)
		p.metrics.lastError.Store(err)
		p.metrics.lastErrorTime.Store(time.Now())
		return fmt.Errorf("kafka: produce to %s: %w", p.config.Topic, err)
	}

	p.metrics.messagesProduced.Add(1)
	p.metrics.bytesProduced.Add(int64(len(key) + len(value)))
	return nil
}

// GetMetrics returns current producer metrics.
func (p *Producer) GetMetrics() Metrics {
	m := Metrics{
		MessagesProduced: p.metrics.messagesProduced.Load(),
		BytesProduced:    p.metrics.bytesProduced.Load(),
		Errors:           p.metrics.errors.Load(),
	}

	if err := p.metrics.lastError.Load(); err != nil {
		m.LastError = err.(error)
	}
	if t := p.metrics.lastErrorTime.Load(); t != nil {
		m.LastErrorTime = t.(time.Time)
	}

	return m
}

// HealthCheck verifies a broker is reachable.
func (p *Producer) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		LastCheck: time.Now(),
	}

	if p.closed.Load() {
		status.Error = "producer is closed"
		return status
	}

	start := time.Now()

	dialer, err := p.config.GetDialer()
	if err != nil {
		status.Error = fmt.Sprintf("failed to create dialer: %v", err)
		return status
	}

	conn, err := dialer.DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer conn.Close()

	brokers, err := conn.Brokers()
	if err != nil {
		status.Error = fmt.Sprintf("failed to get brokers: %v", err)
		return status
	}

	status.Latency = time.Since(start)
	status.Connected = true
	status.Healthy = true
	status.BrokerCount = len(brokers)

	return status
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.logger.Info("closing kafka producer",
		"messages_produced", p.metrics.messagesProduced.Load(),
		"bytes_produced", p.metrics.bytesProduced.Load(),
		"errors", p.metrics.errors.Load(),
	)

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: failed to close producer: %w", err)
	}

	return nil
}
