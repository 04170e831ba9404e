package ingest

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/dtls/v2"
)

// DefaultDialTimeout bounds connection setup to the forward target.
const DefaultDialTimeout = 10 * time.Second

// SenderConfig holds configuration for socket senders.
type SenderConfig struct {
	Address      string
	TLS          TLSConfig
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// SenderMetrics holds metrics for a sender.
type SenderMetrics struct {
	Sent   uint64
	Bytes  uint64
	Errors uint64
}

type senderCounters struct {
	sent   uint64
	bytes  uint64
	errors uint64
}

func (c *senderCounters) record(n int, err error) {
	if err != nil {
		atomic.AddUint64(&c.errors, 1)
		return
	}
	atomic.AddUint64(&c.sent, 1)
	atomic.AddUint64(&c.bytes, uint64(n))
}

// Metrics returns the current sender metrics.
func (c *senderCounters) Metrics() SenderMetrics {
	return SenderMetrics{
		Sent:   atomic.LoadUint64(&c.sent),
		Bytes:  atomic.LoadUint64(&c.bytes),
		Errors: atomic.LoadUint64(&c.errors),
	}
}

// UDPSender writes one datagram per record. Delivery is not confirmed.
type UDPSender struct {
	senderCounters
	conn *net.UDPConn
}

// NewUDPSender creates a connected UDP socket for cfg.Address.
func NewUDPSender(cfg SenderConfig) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, transportErr("udp.dial", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, transportErr("udp.dial", err)
	}
	slog.Info("UDP sender ready", "target", cfg.Address)
	return &UDPSender{conn: conn}, nil
}

// Send writes payload as a single datagram.
func (s *UDPSender) Send(_ context.Context, payload []byte) error {
	n, err := s.conn.Write(payload)
	s.record(n, err)
	if err != nil {
		return transportErr("udp.send", err)
	}
	return nil
}

// Close closes the socket.
func (s *UDPSender) Close() error {
	return s.conn.Close()
}

// streamSender writes newline-terminated records over one long-lived
// connection. The connection is never re-established: once it fails every
// later Send fails too.
type streamSender struct {
	senderCounters
	op           string
	conn         net.Conn
	writeTimeout time.Duration
	framed       bool
	buf          []byte

	closeOnce sync.Once
}

func (s *streamSender) Send(_ context.Context, payload []byte) error {
	out := payload
	if s.framed {
		s.buf = append(s.buf[:0], payload...)
		s.buf = append(s.buf, '\n')
		out = s.buf
	}

	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	n, err := s.conn.Write(out)
	s.record(n, err)
	if err != nil {
		return transportErr(s.op, err)
	}
	return nil
}

func (s *streamSender) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// TCPSender holds the forward connection for stream output.
type TCPSender struct {
	streamSender
}

// NewTCPSender dials cfg.Address once, optionally over TLS.
func NewTCPSender(cfg SenderConfig) (*TCPSender, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}

	var conn net.Conn
	var err error
	if cfg.TLS.Enabled {
		tlsConfig, terr := clientTLS(cfg.TLS)
		if terr != nil {
			return nil, transportErr("tcp.dial", terr)
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", cfg.Address, tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", cfg.Address)
	}
	if err != nil {
		return nil, transportErr("tcp.dial", err)
	}

	slog.Info("TCP sender connected",
		"target", cfg.Address,
		"tls", cfg.TLS.Enabled,
	)

	return &TCPSender{streamSender{
		op:           "tcp.send",
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		framed:       true,
	}}, nil
}

// DTLSSender writes one DTLS record per forwarded record over a single
// association dialed at startup.
type DTLSSender struct {
	streamSender
}

// NewDTLSSender performs the DTLS handshake with cfg.Address.
func NewDTLSSender(cfg SenderConfig) (*DTLSSender, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, transportErr("dtls.dial", err)
	}

	tlsConfig, err := clientTLS(cfg.TLS)
	if err != nil {
		return nil, transportErr("dtls.dial", err)
	}

	dtlsConfig := &dtls.Config{
		Certificates:         tlsConfig.Certificates,
		RootCAs:              tlsConfig.RootCAs,
		ServerName:           cfg.TLS.ServerName,
		InsecureSkipVerify:   cfg.TLS.InsecureSkipVerify,
		ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := dtls.DialWithContext(ctx, "udp", addr, dtlsConfig)
	if err != nil {
		return nil, transportErr("dtls.dial", err)
	}

	slog.Info("DTLS sender connected", "target", cfg.Address)

	return &DTLSSender{streamSender{
		op:           "dtls.send",
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
	}}, nil
}
