package ingest

import (
	"fmt"
	"log/slog"
	"time"

	"cef-relay/internal/errors"
	"cef-relay/internal/kafka"
)

// InputConfig selects and configures the receiver.
type InputConfig struct {
	Protocol      string
	Address       string
	TLS           TLSConfig
	BufferSize    int
	MaxLineLength int
	IdleTimeout   time.Duration
	PollInterval  time.Duration
}

// OutputConfig selects and configures the sender.
type OutputConfig struct {
	Protocol     string
	Address      string
	TLS          TLSConfig
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Kafka        *kafka.Config
	Redis        RedisSenderConfig
}

// NewReceiver opens the input socket named by cfg.Protocol.
func NewReceiver(cfg InputConfig) (Receiver, error) {
	switch cfg.Protocol {
	case ProtoUDP:
		c := DefaultUDPReceiverConfig()
		c.Address = cfg.Address
		c.BufferSize = cfg.BufferSize
		c.PollInterval = cfg.PollInterval
		r, err := NewUDPReceiver(c)
		if err != nil {
			return nil, err
		}
		return r, nil
	case ProtoTCP:
		c := DefaultTCPReceiverConfig()
		c.Address = cfg.Address
		c.TLS = cfg.TLS
		c.BufferSize = cfg.BufferSize
		c.MaxLineLength = cfg.MaxLineLength
		c.IdleTimeout = cfg.IdleTimeout
		c.PollInterval = cfg.PollInterval
		r, err := NewTCPReceiver(c)
		if err != nil {
			return nil, err
		}
		return r, nil
	case ProtoDTLS:
		c := DefaultDTLSReceiverConfig()
		c.Address = cfg.Address
		c.TLS = cfg.TLS
		if cfg.IdleTimeout > 0 {
			c.IdleTimeout = cfg.IdleTimeout
		}
		c.PollInterval = cfg.PollInterval
		r, err := NewDTLSReceiver(c)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, errors.E(errors.KindConfig, "ingest.receiver", fmt.Errorf("unsupported input protocol %q", cfg.Protocol))
}

// NewSender connects to the forward target named by cfg.Protocol. Stream
// targets are dialed here, once.
func NewSender(cfg OutputConfig, logger *slog.Logger) (Sender, error) {
	sc := SenderConfig{
		Address:      cfg.Address,
		TLS:          cfg.TLS,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	switch cfg.Protocol {
	case ProtoUDP:
		s, err := NewUDPSender(sc)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProtoTCP:
		s, err := NewTCPSender(sc)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProtoDTLS:
		s, err := NewDTLSSender(sc)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProtoKafka:
		if cfg.Kafka == nil {
			return nil, errors.Configf("ingest.sender", "kafka output requires kafka settings")
		}
		s, err := NewKafkaSender(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ProtoRedis:
		s, err := NewRedisSender(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.E(errors.KindConfig, "ingest.sender", fmt.Errorf("unsupported output protocol %q", cfg.Protocol))
}
