package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Brokers) == 0 {
		t.Error("expected default brokers")
	}
	if cfg.Topic == "" {
		t.Error("expected default topic")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty brokers",
			modify: func(c *Config) {
				c.Brokers = nil
			},
			wantErr: true,
		},
		{
			name: "empty topic",
			modify: func(c *Config) {
				c.Topic = ""
			},
			wantErr: true,
		},
		{
			name: "invalid acks",
			modify: func(c *Config) {
				c.RequiredAcks = 2
			},
			wantErr: true,
		},
		{
			name: "invalid security protocol",
			modify: func(c *Config) {
				c.SecurityProtocol = "INVALID"
			},
			wantErr: true,
		},
		{
			name: "SASL without credentials",
			modify: func(c *Config) {
				c.SecurityProtocol = "SASL_PLAINTEXT"
				c.SASLMechanism = "PLAIN"
				c.SASLUsername = ""
			},
			wantErr: true,
		},
		{
			name: "valid SASL config",
			modify: func(c *Config) {
				c.SecurityProtocol = "SASL_PLAINTEXT"
				c.SASLMechanism = "PLAIN"
				c.SASLUsername = "user"
				c.SASLPassword = "pass"
			},
			wantErr: false,
		},
		{
			name: "SCRAM-SHA-256",
			modify: func(c *Config) {
				c.SecurityProtocol = "SASL_SSL"
				c.SASLMechanism = "SCRAM-SHA-256"
				c.SASLUsername = "user"
				c.SASLPassword = "pass"
				c.TLSSkipVerify = true
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetCompression(t *testing.T) {
	tests := []struct {
		compression string
		wantNonZero bool
	}{
		{"gzip", true},
		{"snappy", true},
		{"lz4", true},
		{"zstd", true},
		{"none", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.compression, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CompressionType = tt.compression

			result := cfg.GetCompression()
			if tt.wantNonZero && result == 0 {
				t.Errorf("expected non-zero compression for %s", tt.compression)
			}
			if !tt.wantNonZero && result != 0 {
				t.Errorf("expected zero compression for %s", tt.compression)
			}
		})
	}
}

func TestGetDialer(t *testing.T) {
	cfg := DefaultConfig()

	dialer, err := cfg.GetDialer()
	if err != nil {
		t.Fatalf("GetDialer() error = %v", err)
	}
	if dialer.Timeout != cfg.DialTimeout {
		t.Errorf("expected timeout %v, got %v", cfg.DialTimeout, dialer.Timeout)
	}
	if dialer.TLS != nil {
		t.Error("expected no TLS for PLAINTEXT")
	}
}

func TestGetDialerWithTLS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLSEnabled = true
	cfg.TLSSkipVerify = true

	dialer, err := cfg.GetDialer()
	if err != nil {
		t.Fatalf("GetDialer() error = %v", err)
	}
	if dialer.TLS == nil {
		t.Error("expected TLS config to be set")
	}
}

func TestGetDialerWithSASL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityProtocol = "SASL_PLAINTEXT"
	cfg.SASLMechanism = "SCRAM-SHA-512"
	cfg.SASLUsername = "user"
	cfg.SASLPassword = "pass"

	dialer, err := cfg.GetDialer()
	if err != nil {
		t.Fatalf("GetDialer() error = %v", err)
	}
	if dialer.SASLMechanism == nil {
		t.Error("expected SASL mechanism to be set")
	}
}

func getTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestProducerClosed(t *testing.T) {
	p, err := NewProducer(DefaultConfig(), getTestLogger())
	if err != nil {
		t.Fatalf("NewProducer() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	err = p.Produce(context.Background(), nil, []byte("CEF:0|V|P|1|S|N|3|"))
	if !errors.Is(err, ErrProducerClosed) {
		t.Errorf("Produce() after Close error = %v, want ErrProducerClosed", err)
	}
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Topic = ""
	if _, err := NewProducer(cfg, nil); err == nil {
		t.Error("expected error for missing topic")
	}
}

// Integration test - skipped if Kafka is not available.
func TestProducerIntegration(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set, skipping integration test")
	}

	cfg := DefaultConfig()
	cfg.Brokers = []string{brokers}
	cfg.Topic = "cef-relay-test"

	p, err := NewProducer(cfg, getTestLogger())
	if err != nil {
		t.Fatalf("NewProducer() error = %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if status := p.HealthCheck(ctx); !status.Healthy {
		t.Fatalf("HealthCheck() = %+v", status)
	}
	if err := p.Produce(ctx, []byte("k"), []byte("CEF:0|V|P|1|S|N|3|k=v")); err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if m := p.GetMetrics(); m.MessagesProduced != 1 {
		t.Errorf("MessagesProduced = %d, want 1", m.MessagesProduced)
	}
}
