package ingest

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// UDPReceiverConfig holds configuration for the UDP receiver.
type UDPReceiverConfig struct {
	Address        string
	BufferSize     int
	MaxMessageSize int
	PollInterval   time.Duration
}

// DefaultUDPReceiverConfig returns the default UDP receiver configuration.
func DefaultUDPReceiverConfig() UDPReceiverConfig {
	return UDPReceiverConfig{
		Address:        ":514",
		BufferSize:     8 * 1024 * 1024, // 8MB
		MaxMessageSize: 65535,
		PollInterval:   DefaultPollInterval,
	}
}

// UDPReceiverMetrics holds metrics for the UDP receiver.
type UDPReceiverMetrics struct {
	Received uint64
	Bytes    uint64
	Errors   uint64
}

// UDPReceiver yields one record per datagram.
type UDPReceiver struct {
	config UDPReceiverConfig
	conn   *net.UDPConn
	buffer []byte

	closeOnce sync.Once
	done      chan struct{}

	received uint64
	bytes    uint64
	errors   uint64
}

// NewUDPReceiver binds a UDP socket for cfg.Address.
func NewUDPReceiver(cfg UDPReceiverConfig) (*UDPReceiver, error) {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 65535
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, transportErr("udp.listen", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, transportErr("udp.listen", err)
	}

	if cfg.BufferSize > 0 {
		if err := conn.SetReadBuffer(cfg.BufferSize); err != nil {
			slog.Warn("failed to set UDP read buffer", "error", err, "size", cfg.BufferSize)
		}
	}

	slog.Info("UDP receiver started", "address", conn.LocalAddr().String())

	return &UDPReceiver{
		config: cfg,
		conn:   conn,
		buffer: make([]byte, cfg.MaxMessageSize),
		done:   make(chan struct{}),
	}, nil
}

// Receive reads the next datagram.
func (r *UDPReceiver) Receive(ctx context.Context) (Record, error) {
	for {
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-r.done:
			return Record{}, ErrClosed
		default:
		}

		// Set read deadline to allow periodic context checks
		r.conn.SetReadDeadline(time.Now().Add(r.config.PollInterval))

		n, remoteAddr, err := r.conn.ReadFromUDP(r.buffer)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-r.done:
				return Record{}, ErrClosed
			default:
			}
			atomic.AddUint64(&r.errors, 1)
			return Record{}, transportErr("udp.read", err)
		}

		atomic.AddUint64(&r.received, 1)
		atomic.AddUint64(&r.bytes, uint64(n))

		// Copy data to avoid buffer reuse issues
		data := make([]byte, n)
		copy(data, r.buffer[:n])

		return Record{Data: data, Source: remoteAddr.String()}, nil
	}
}

// Addr returns the bound address.
func (r *UDPReceiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Close closes the socket. It is safe to call more than once.
func (r *UDPReceiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.conn.Close()
		slog.Info("UDP receiver stopped",
			"received", atomic.LoadUint64(&r.received),
			"errors", atomic.LoadUint64(&r.errors),
		)
	})
	return err
}

// Metrics returns the current receiver metrics.
func (r *UDPReceiver) Metrics() UDPReceiverMetrics {
	return UDPReceiverMetrics{
		Received: atomic.LoadUint64(&r.received),
		Bytes:    atomic.LoadUint64(&r.bytes),
		Errors:   atomic.LoadUint64(&r.errors),
	}
}
