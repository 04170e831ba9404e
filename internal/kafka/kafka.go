// Package kafka publishes forwarded CEF records to a Kafka topic.
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Config holds Kafka connection and producer configuration.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `yaml:"brokers"`

	// Topic receives one message per forwarded record.
	Topic string `yaml:"topic"`

	// CompressionType: none, gzip, snappy, lz4, zstd.
	CompressionType string `yaml:"compression_type"`

	// SecurityProtocol: PLAINTEXT, SSL, SASL_PLAINTEXT, SASL_SSL.
	SecurityProtocol string `yaml:"security_protocol"`

	// SASLMechanism: PLAIN, SCRAM-SHA-256, SCRAM-SHA-512.
	SASLMechanism string `yaml:"sasl_mechanism,omitempty"`
	SASLUsername  string `yaml:"sasl_username,omitempty"`
	SASLPassword  string `yaml:"sasl_password,omitempty"`

	// TLS configuration
	TLSEnabled    bool   `yaml:"tls_enabled"`
	TLSCertFile   string `yaml:"tls_cert_file,omitempty"`
	TLSKeyFile    string `yaml:"tls_key_file,omitempty"`
	TLSCAFile     string `yaml:"tls_ca_file,omitempty"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify,omitempty"`

	// RequiredAcks: -1=all, 0=none, 1=leader.
	RequiredAcks int `yaml:"required_acks"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Brokers:          []string{"localhost:9092"},
		Topic:            "cef-events",
		CompressionType:  "lz4",
		SecurityProtocol: "PLAINTEXT",
		RequiredAcks:     1,
		DialTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("kafka: topic is required")
	}
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return fmt.Errorf("kafka: invalid required acks: %d", c.RequiredAcks)
	}

	validProtocols := map[string]bool{
		"PLAINTEXT": true, "SSL": true, "SASL_PLAINTEXT": true, "SASL_SSL": true,
	}
	if !validProtocols[c.SecurityProtocol] {
		return fmt.Errorf("kafka: invalid security protocol: %s", c.SecurityProtocol)
	}

	if c.usesSASL() {
		validMechanisms := map[string]bool{
			"PLAIN": true, "SCRAM-SHA-256": true, "SCRAM-SHA-512": true,
		}
		if !validMechanisms[c.SASLMechanism] {
			return fmt.Errorf("kafka: invalid SASL mechanism: %s", c.SASLMechanism)
		}
		if c.SASLUsername == "" || c.SASLPassword == "" {
			return errors.New("kafka: SASL username and password required for SASL authentication")
		}
	}

	return nil
}

func (c *Config) usesSASL() bool {
	return c.SecurityProtocol == "SASL_PLAINTEXT" || c.SecurityProtocol == "SASL_SSL"
}

// GetCompression returns the kafka-go compression codec.
func (c *Config) GetCompression() kafka.Compression {
	switch c.CompressionType {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

// GetDialer returns a configured kafka.Dialer with TLS and SASL if configured.
func (c *Config) GetDialer() (*kafka.Dialer, error) {
	dialer := &kafka.Dialer{
		Timeout:   c.DialTimeout,
		DualStack: true,
	}

	if c.TLSEnabled || c.SecurityProtocol == "SSL" || c.SecurityProtocol == "SASL_SSL" {
		tlsConfig, err := c.getTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("kafka: failed to configure TLS: %w", err)
		}
		dialer.TLS = tlsConfig
	}

	if c.usesSASL() {
		mechanism, err := c.getSASLMechanism()
		if err != nil {
			return nil, fmt.Errorf("kafka: failed to configure SASL: %w", err)
		}
		dialer.SASLMechanism = mechanism
	}

	return dialer, nil
}

func (c *Config) getTLSConfig() (*tls.Config, error) {
	if c.TLSSkipVerify {
		slog.Warn("TLS certificate verification is disabled for Kafka")
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if c.TLSCAFile != "" {
		caCert, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func (c *Config) getSASLMechanism() (sasl.Mechanism, error) {
	switch c.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: c.SASLUsername,
			Password: c.SASLPassword,
		}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, c.SASLUsername, c.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, c.SASLUsername, c.SASLPassword)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", c.SASLMechanism)
	}
}

// Metrics holds producer counters.
type Metrics struct {
	MessagesProduced int64
	BytesProduced    int64
	Errors           int64
	LastError        error
	LastErrorTime    time.Time
}

// HealthStatus represents the reachability of the cluster.
type HealthStatus struct {
	Healthy     bool
	Connected   bool
	LastCheck   time.Time
	Latency     time.Duration
	Error       string
	BrokerCount int
}
