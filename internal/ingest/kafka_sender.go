package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cef-relay/internal/kafka"
)

// KafkaSender produces each record as one Kafka message keyed by a random
// UUID so records spread across partitions.
type KafkaSender struct {
	senderCounters
	producer *kafka.Producer
}

// NewKafkaSender creates the producer and probes the first broker. An
// unreachable broker is logged, not fatal, matching datagram output.
func NewKafkaSender(cfg *kafka.Config, logger *slog.Logger) (*KafkaSender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	producer, err := kafka.NewProducer(cfg, logger.With("component", "kafka"))
	if err != nil {
		return nil, transportErr("kafka.dial", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if status := producer.HealthCheck(ctx); !status.Healthy {
		logger.Warn("kafka brokers not reachable at startup",
			"brokers", cfg.Brokers,
			"error", status.Error,
		)
	}

	return &KafkaSender{producer: producer}, nil
}

// Send produces payload synchronously.
func (s *KafkaSender) Send(ctx context.Context, payload []byte) error {
	key := uuid.New()
	err := s.producer.Produce(ctx, key[:], payload)
	s.record(len(payload), err)
	if err != nil {
		return transportErr("kafka.send", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSender) Close() error {
	return s.producer.Close()
}
