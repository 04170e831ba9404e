package ingest

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/dtls/v2"
)

// DTLSReceiverConfig holds configuration for the DTLS receiver.
type DTLSReceiverConfig struct {
	Address string
	TLS     TLSConfig

	MaxMessageSize int

	// ConnectionTimeout bounds each handshake.
	ConnectionTimeout time.Duration

	// IdleTimeout ends a silent association so the next peer can be
	// served.
	IdleTimeout time.Duration

	PollInterval time.Duration
}

// DefaultDTLSReceiverConfig returns the default DTLS receiver configuration.
func DefaultDTLSReceiverConfig() DTLSReceiverConfig {
	return DTLSReceiverConfig{
		Address:           ":6514",
		MaxMessageSize:    65535,
		ConnectionTimeout: 30 * time.Second,
		IdleTimeout:       5 * time.Minute,
		PollInterval:      DefaultPollInterval,
	}
}

// DTLSReceiverMetrics holds metrics for the DTLS receiver.
type DTLSReceiverMetrics struct {
	Connections   uint64
	HandshakeErrs uint64
	Received      uint64
	Errors        uint64
}

type dtlsSession struct {
	id       string
	conn     net.Conn
	remote   string
	records  uint64
	lastRead time.Time
}

// DTLSReceiver serves one DTLS association at a time. Each decrypted
// datagram is one record.
type DTLSReceiver struct {
	config   DTLSReceiverConfig
	listener net.Listener
	buffer   []byte
	session  *dtlsSession

	mu        sync.Mutex // guards session against Close
	closeOnce sync.Once
	done      chan struct{}

	connections   uint64
	handshakeErrs uint64
	received      uint64
	errors        uint64
}

// NewDTLSReceiver loads the certificate material and starts listening.
func NewDTLSReceiver(cfg DTLSReceiverConfig) (*DTLSReceiver, error) {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 65535
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	tlsConfig, err := serverTLS(cfg.TLS)
	if err != nil {
		return nil, transportErr("dtls.listen", err)
	}

	dtlsConfig := &dtls.Config{
		Certificates:         tlsConfig.Certificates,
		ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
		ConnectContextMaker: func() (context.Context, func()) {
			return context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
		},
	}
	if cfg.TLS.RequireClientCert {
		dtlsConfig.ClientCAs = tlsConfig.ClientCAs
		dtlsConfig.ClientAuth = dtls.RequireAndVerifyClientCert
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, transportErr("dtls.listen", err)
	}

	listener, err := dtls.Listen("udp", addr, dtlsConfig)
	if err != nil {
		return nil, transportErr("dtls.listen", err)
	}

	slog.Info("DTLS receiver started",
		"address", listener.Addr().String(),
		"mutual_tls", cfg.TLS.RequireClientCert,
	)

	return &DTLSReceiver{
		config:   cfg,
		listener: listener,
		buffer:   make([]byte, cfg.MaxMessageSize),
		done:     make(chan struct{}),
	}, nil
}

// Receive returns the next datagram of the current association. With no
// association open it blocks in Accept until a peer completes a handshake
// or the receiver is closed.
func (r *DTLSReceiver) Receive(ctx context.Context) (Record, error) {
	for {
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-r.done:
			return Record{}, ErrClosed
		default:
		}

		if r.session == nil {
			if err := r.accept(); err != nil {
				select {
				case <-r.done:
					return Record{}, ErrClosed
				default:
				}
				atomic.AddUint64(&r.handshakeErrs, 1)
				return Record{}, transportErr("dtls.accept", err)
			}
			continue
		}

		s := r.session
		s.conn.SetReadDeadline(time.Now().Add(r.config.PollInterval))

		n, err := s.conn.Read(r.buffer)
		if err != nil {
			if isTimeout(err) {
				if r.config.IdleTimeout > 0 && time.Since(s.lastRead) >= r.config.IdleTimeout {
					r.endSession("idle timeout")
				}
				continue
			}
			select {
			case <-r.done:
				return Record{}, ErrClosed
			default:
			}
			r.endSession("read error")
			atomic.AddUint64(&r.errors, 1)
			return Record{}, transportErr("dtls.read", err)
		}

		s.lastRead = time.Now()
		s.records++
		atomic.AddUint64(&r.received, 1)

		data := make([]byte, n)
		copy(data, r.buffer[:n])

		return Record{Data: data, Source: s.remote}, nil
	}
}

func (r *DTLSReceiver) accept() error {
	conn, err := r.listener.Accept()
	if err != nil {
		return err
	}

	atomic.AddUint64(&r.connections, 1)
	session := &dtlsSession{
		id:       uuid.NewString(),
		conn:     conn,
		remote:   conn.RemoteAddr().String(),
		lastRead: time.Now(),
	}

	r.mu.Lock()
	r.session = session
	r.mu.Unlock()

	slog.Info("new DTLS association", "remote", session.remote, "session", session.id)
	return nil
}

func (r *DTLSReceiver) endSession(reason string) {
	s := r.session
	r.mu.Lock()
	r.session = nil
	r.mu.Unlock()
	s.conn.Close()

	slog.Info("DTLS association closed",
		"remote", s.remote,
		"session", s.id,
		"reason", reason,
		"records", s.records,
	)
}

// Addr returns the listen address.
func (r *DTLSReceiver) Addr() net.Addr {
	return r.listener.Addr()
}

// Close closes the listener and the current association.
func (r *DTLSReceiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.listener.Close()

		r.mu.Lock()
		if r.session != nil {
			r.session.conn.Close()
		}
		r.mu.Unlock()

		slog.Info("DTLS receiver stopped",
			"connections", atomic.LoadUint64(&r.connections),
			"received", atomic.LoadUint64(&r.received),
			"handshake_errors", atomic.LoadUint64(&r.handshakeErrs),
		)
	})
	return err
}

// Metrics returns the current receiver metrics.
func (r *DTLSReceiver) Metrics() DTLSReceiverMetrics {
	return DTLSReceiverMetrics{
		Connections:   atomic.LoadUint64(&r.connections),
		HandshakeErrs: atomic.LoadUint64(&r.handshakeErrs),
		Received:      atomic.LoadUint64(&r.received),
		Errors:        atomic.LoadUint64(&r.errors),
	}
}
