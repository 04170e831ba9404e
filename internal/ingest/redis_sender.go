package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSenderConfig holds configuration for Redis pub/sub output.
type RedisSenderConfig struct {
	Addr         string
	Password     string
	DB           int
	Channel      string
	TLSEnabled   bool
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisSenderConfig returns the default Redis output configuration.
func DefaultRedisSenderConfig() RedisSenderConfig {
	return RedisSenderConfig{
		Addr:         "localhost:6379",
		Channel:      "cef-events",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisSender publishes each record to a channel. Subscribers that are not
// connected miss the record.
type RedisSender struct {
	senderCounters
	client  *redis.Client
	channel string
}

// NewRedisSender connects and pings the server.
func NewRedisSender(cfg RedisSenderConfig) (*RedisSender, error) {
	if cfg.Channel == "" {
		return nil, transportErr("redis.dial", fmt.Errorf("channel is required"))
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     1,
		MaxRetries:   -1,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, transportErr("redis.dial", fmt.Errorf("failed to connect to Redis: %w", err))
	}

	slog.Info("Redis sender connected", "addr", cfg.Addr, "channel", cfg.Channel)

	return &RedisSender{client: client, channel: cfg.Channel}, nil
}

// Send publishes payload to the channel.
func (s *RedisSender) Send(ctx context.Context, payload []byte) error {
	err := s.client.Publish(ctx, s.channel, payload).Err()
	s.record(len(payload), err)
	if err != nil {
		return transportErr("redis.send", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisSender) Close() error {
	return s.client.Close()
}
