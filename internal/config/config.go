// Package config handles configuration loading for cef-relay.
package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"cef-relay/internal/errors"
	"cef-relay/internal/ingest"
	"cef-relay/internal/ingest/cef"
	"cef-relay/internal/kafka"
	"cef-relay/internal/logging"
	"cef-relay/internal/secrets"
	"cef-relay/internal/severity"
)

// DefaultPath is read when no path is given on the command line or in
// PathEnv. A missing file at DefaultPath is not an error.
const DefaultPath = "/etc/cef-relay/config.yaml"

// PathEnv names the environment variable holding the config file path.
const PathEnv = "CEF_RELAY_CONFIG"

// Relay modes.
const (
	ModeIngest  = "ingest"
	ModeRewrite = "rewrite"
)

// Config holds the complete application configuration.
type Config struct {
	Mode       string           `yaml:"mode" validate:"oneof=ingest rewrite"`
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	CEF        CEFConfig        `yaml:"cef"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Engine     EngineConfig     `yaml:"engine"`
	Logging    logging.Config   `yaml:"logging"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// TLSConfig holds certificate settings for a TLS or DTLS endpoint.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	CAFile             string `yaml:"ca_file"`
	RequireClientCert  bool   `yaml:"require_client_cert"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// InputConfig holds listener settings.
type InputConfig struct {
	Protocol      string        `yaml:"protocol" validate:"oneof=udp tcp dtls"`
	ListenIP      string        `yaml:"listen_ip" validate:"required,ip"`
	ListenPort    int           `yaml:"listen_port" validate:"min=1,max=65535"`
	BufferSize    int           `yaml:"buffer_size" validate:"min=0"`
	MaxLineLength int           `yaml:"max_line_length" validate:"min=0"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" validate:"min=0"`
	TLS           TLSConfig     `yaml:"tls"`
}

// OutputConfig holds forward target settings.
type OutputConfig struct {
	Protocol     string        `yaml:"protocol" validate:"oneof=udp tcp dtls kafka redis"`
	TargetIP     string        `yaml:"target_ip" validate:"omitempty,ip|hostname_rfc1123"`
	TargetPort   int           `yaml:"target_port" validate:"omitempty,min=1,max=65535"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"min=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=0"`
	TLS          TLSConfig     `yaml:"tls"`
	Kafka        *kafka.Config `yaml:"kafka"`
	Redis        RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis pub/sub output settings.
type RedisConfig struct {
	Addr       string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"min=0"`
	Channel    string `yaml:"channel"`
	TLSEnabled bool   `yaml:"tls_enabled"`
}

// CEFConfig holds CEF header and parser settings.
type CEFConfig struct {
	Vendor          string `yaml:"vendor" validate:"required,excludesall=0x7C"`
	Product         string `yaml:"product" validate:"required,excludesall=0x7C"`
	DefaultSeverity int    `yaml:"default_severity" validate:"min=0,max=10"`
	StrictMode      bool   `yaml:"strict_mode"`
	MaxExtensions   int    `yaml:"max_extensions" validate:"min=0"`
}

// ClassifierConfig selects the severity rule order. An empty order
// follows the mode.
type ClassifierConfig struct {
	Order string `yaml:"order" validate:"omitempty,oneof=ingest rewrite"`
}

// EngineConfig holds relay loop settings.
type EngineConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" validate:"min=0"`
	StatsInterval uint64        `yaml:"stats_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	redis := ingest.DefaultRedisSenderConfig()
	return &Config{
		Mode: ModeIngest,
		Input: InputConfig{
			Protocol:      ingest.ProtoUDP,
			ListenIP:      "0.0.0.0",
			ListenPort:    514,
			BufferSize:    8 * 1024 * 1024, // 8MB
			MaxLineLength: 1024 * 1024,
		},
		Output: OutputConfig{
			Protocol:    ingest.ProtoUDP,
			TargetIP:    "127.0.0.1",
			TargetPort:  514,
			DialTimeout: ingest.DefaultDialTimeout,
			Kafka:       kafka.DefaultConfig(),
			Redis: RedisConfig{
				Addr:    redis.Addr,
				Channel: redis.Channel,
			},
		},
		CEF: CEFConfig{
			Vendor:          "PaloAlto",
			Product:         "GlobalProtect",
			DefaultSeverity: int(severity.DefaultLevel),
			StrictMode:      false,
			MaxExtensions:   100,
		},
		Engine: EngineConfig{
			PollInterval:  ingest.DefaultPollInterval,
			StatsInterval: 10000,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the configuration file at path, or at PathEnv, or at
// DefaultPath, then applies environment overrides. A path given
// explicitly must exist. Load does not validate; call Validate once all
// overrides are applied.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(PathEnv)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, errors.Configf("config.load", "failed to parse config file %s: %w", path, err)
		}
		cfg.Path = path
	case os.IsNotExist(err) && !explicit:
		// File doesn't exist, use defaults
	default:
		return nil, errors.Configf("config.load", "failed to read config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.resolveSecrets(context.Background(), secrets.DefaultResolver()); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveSecrets replaces "env:" and "file:" references in password fields
// with the secrets they name.
func (c *Config) resolveSecrets(ctx context.Context, r *secrets.Resolver) error {
	targets := map[string]*string{
		"output.redis.password": &c.Output.Redis.Password,
	}
	if c.Output.Kafka != nil {
		targets["output.kafka.sasl_password"] = &c.Output.Kafka.SASLPassword
	}
	for field, ptr := range targets {
		v, err := r.Resolve(ctx, *ptr)
		if err != nil {
			return errors.Configf("config.secrets", "%s: %w", field, err)
		}
		*ptr = v
	}
	return nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file keeps the defaults.
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Environment variables read by applyEnvOverrides.
const (
	EnvMode           = "CEF_RELAY_MODE"
	EnvInputProtocol  = "CEF_RELAY_INPUT_PROTOCOL"
	EnvListenIP       = "CEF_RELAY_LISTEN_IP"
	EnvListenPort     = "CEF_RELAY_LISTEN_PORT"
	EnvOutputProtocol = "CEF_RELAY_OUTPUT_PROTOCOL"
	EnvTargetIP       = "CEF_RELAY_TARGET_IP"
	EnvTargetPort     = "CEF_RELAY_TARGET_PORT"
	EnvKafkaBrokers   = "CEF_RELAY_KAFKA_BROKERS"
	EnvKafkaTopic     = "CEF_RELAY_KAFKA_TOPIC"
	EnvKafkaPassword  = "CEF_RELAY_KAFKA_SASL_PASSWORD"
	EnvRedisAddr      = "CEF_RELAY_REDIS_ADDR"
	EnvRedisPassword  = "CEF_RELAY_REDIS_PASSWORD"
	EnvRedisChannel   = "CEF_RELAY_REDIS_CHANNEL"
)

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if mode := os.Getenv(EnvMode); mode != "" {
		c.Mode = mode
	}

	if proto := os.Getenv(EnvInputProtocol); proto != "" {
		c.Input.Protocol = proto
	}
	if ip := os.Getenv(EnvListenIP); ip != "" {
		c.Input.ListenIP = ip
	}
	if port := os.Getenv(EnvListenPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return errors.Configf("config.env", "invalid %s %q: %w", EnvListenPort, port, err)
		}
		c.Input.ListenPort = n
	}

	if proto := os.Getenv(EnvOutputProtocol); proto != "" {
		c.Output.Protocol = proto
	}
	if ip := os.Getenv(EnvTargetIP); ip != "" {
		c.Output.TargetIP = ip
	}
	if port := os.Getenv(EnvTargetPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return errors.Configf("config.env", "invalid %s %q: %w", EnvTargetPort, port, err)
		}
		c.Output.TargetPort = n
	}

	if brokers := os.Getenv(EnvKafkaBrokers); brokers != "" {
		c.kafka().Brokers = splitAndTrim(brokers, ",")
	}
	if topic := os.Getenv(EnvKafkaTopic); topic != "" {
		c.kafka().Topic = topic
	}
	if pass := os.Getenv(EnvKafkaPassword); pass != "" {
		c.kafka().SASLPassword = pass
	}

	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		c.Output.Redis.Addr = addr
	}
	if pass := os.Getenv(EnvRedisPassword); pass != "" {
		c.Output.Redis.Password = pass
	}
	if channel := os.Getenv(EnvRedisChannel); channel != "" {
		c.Output.Redis.Channel = channel
	}

	if level := os.Getenv(logging.LevelEnv); level != "" {
		c.Logging.Level = level
	}

	return nil
}

func (c *Config) kafka() *kafka.Config {
	if c.Output.Kafka == nil {
		c.Output.Kafka = kafka.DefaultConfig()
	}
	return c.Output.Kafka
}

// splitAndTrim splits a string by separator and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the configuration. Every failure is a config error.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.E(errors.KindConfig, "config.validate", describe(err))
	}

	switch c.Output.Protocol {
	case ingest.ProtoUDP, ingest.ProtoTCP, ingest.ProtoDTLS:
		if c.Output.TargetIP == "" || c.Output.TargetPort == 0 {
			return errors.Configf("config.validate", "output.target_ip and output.target_port are required for %s output", c.Output.Protocol)
		}
	case ingest.ProtoKafka:
		if c.Output.Kafka == nil {
			return errors.Configf("config.validate", "output.kafka is required for kafka output")
		}
		if err := c.Output.Kafka.Validate(); err != nil {
			return errors.E(errors.KindConfig, "config.validate", err)
		}
	case ingest.ProtoRedis:
		if c.Output.Redis.Addr == "" || c.Output.Redis.Channel == "" {
			return errors.Configf("config.validate", "output.redis.addr and output.redis.channel are required for redis output")
		}
	}

	tlsIn := c.Input.Protocol == ingest.ProtoDTLS || (c.Input.Protocol == ingest.ProtoTCP && c.Input.TLS.Enabled)
	if tlsIn {
		if c.Input.TLS.CertFile == "" || c.Input.TLS.KeyFile == "" {
			return errors.Configf("config.validate", "input.tls.cert_file and input.tls.key_file are required for %s input with TLS", c.Input.Protocol)
		}
		if c.Input.TLS.RequireClientCert && c.Input.TLS.CAFile == "" {
			return errors.Configf("config.validate", "input.tls.ca_file is required when require_client_cert is set")
		}
	}

	return nil
}

// describe flattens validator errors into one line naming each field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// PrivilegedPort reports whether the listen port needs elevated rights.
func (c *Config) PrivilegedPort() bool {
	return c.Input.ListenPort < 1024
}

// ClassifierOrder returns the configured rule order, defaulting to the
// order that belongs to the mode.
func (c *Config) ClassifierOrder() severity.Order {
	if c.Classifier.Order != "" {
		return severity.Order(c.Classifier.Order)
	}
	if c.Mode == ModeRewrite {
		return severity.OrderRewrite
	}
	return severity.OrderIngest
}

// DefaultLevel returns the fallback severity.
func (c *Config) DefaultLevel() severity.Level {
	return severity.Level(c.CEF.DefaultSeverity)
}

// ParserConfig returns the CEF decoder settings.
func (c *Config) ParserConfig() cef.ParserConfig {
	return cef.ParserConfig{
		StrictMode:    c.CEF.StrictMode,
		MaxExtensions: c.CEF.MaxExtensions,
	}
}

// EncoderConfig returns the CEF encoder settings.
func (c *Config) EncoderConfig() cef.EncoderConfig {
	enc := cef.DefaultEncoderConfig()
	enc.Vendor = c.CEF.Vendor
	enc.Product = c.CEF.Product
	return enc
}

// EngineConfig returns the relay loop settings.
func (c *Config) EngineConfig() ingest.EngineConfig {
	e := ingest.DefaultEngineConfig()
	e.StatsInterval = c.Engine.StatsInterval
	if c.Engine.PollInterval > 0 {
		e.RetryDelay = c.Engine.PollInterval
	}
	return e
}

// ListenAddr returns the input address as host:port.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Input.ListenIP, strconv.Itoa(c.Input.ListenPort))
}

// TargetAddr returns the socket output address as host:port.
func (c *Config) TargetAddr() string {
	return net.JoinHostPort(c.Output.TargetIP, strconv.Itoa(c.Output.TargetPort))
}

// InputConfig returns the receiver settings.
func (c *Config) InputConfig() ingest.InputConfig {
	return ingest.InputConfig{
		Protocol:      c.Input.Protocol,
		Address:       c.ListenAddr(),
		TLS:           ingest.TLSConfig(c.Input.TLS),
		BufferSize:    c.Input.BufferSize,
		MaxLineLength: c.Input.MaxLineLength,
		IdleTimeout:   c.Input.IdleTimeout,
		PollInterval:  c.Engine.PollInterval,
	}
}

// OutputConfig returns the sender settings.
func (c *Config) OutputConfig() ingest.OutputConfig {
	redis := ingest.DefaultRedisSenderConfig()
	redis.Addr = c.Output.Redis.Addr
	redis.Password = c.Output.Redis.Password
	redis.DB = c.Output.Redis.DB
	redis.Channel = c.Output.Redis.Channel
	redis.TLSEnabled = c.Output.Redis.TLSEnabled
	if c.Output.DialTimeout > 0 {
		redis.DialTimeout = c.Output.DialTimeout
	}
	if c.Output.WriteTimeout > 0 {
		redis.WriteTimeout = c.Output.WriteTimeout
	}

	return ingest.OutputConfig{
		Protocol:     c.Output.Protocol,
		Address:      c.TargetAddr(),
		TLS:          ingest.TLSConfig(c.Output.TLS),
		DialTimeout:  c.Output.DialTimeout,
		WriteTimeout: c.Output.WriteTimeout,
		Kafka:        c.Output.Kafka,
		Redis:        redis,
	}
}
