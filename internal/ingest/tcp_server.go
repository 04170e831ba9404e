package ingest

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TCPReceiverConfig holds configuration for the TCP receiver.
type TCPReceiverConfig struct {
	Address string
	TLS     TLSConfig
	// MaxLineLength caps an unterminated line; longer input is discarded
	// up to the next newline. 0 disables the cap.
	MaxLineLength int
	// IdleTimeout closes a silent connection so the next queued peer can
	// be served. 0 disables it.
	IdleTimeout time.Duration
	// HandshakeTimeout bounds the TLS handshake of a new connection.
	HandshakeTimeout time.Duration
	BufferSize       int
	PollInterval     time.Duration
}

// DefaultTCPReceiverConfig returns the default TCP receiver configuration.
func DefaultTCPReceiverConfig() TCPReceiverConfig {
	return TCPReceiverConfig{
		Address:          ":514",
		MaxLineLength:    1024 * 1024,
		HandshakeTimeout: 30 * time.Second,
		BufferSize:       8 * 1024 * 1024, // 8MB
		PollInterval:     DefaultPollInterval,
	}
}

// TCPReceiverMetrics holds metrics for the TCP receiver.
type TCPReceiverMetrics struct {
	Connections uint64
	Received    uint64
	Oversized   uint64
	Discarded   uint64
	Errors      uint64
}

// tcpSession is the connection currently being served and its pending
// bytes. The buffer belongs to the session and dies with it.
type tcpSession struct {
	id         string
	conn       net.Conn
	remote     string
	buf        bytes.Buffer
	lines      uint64
	discarding bool
	lastRead   time.Time
}

// TCPReceiver serves one stream connection at a time and yields one
// record per newline-terminated line. Further peers wait in the listen
// backlog until the current connection closes.
type TCPReceiver struct {
	config   TCPReceiverConfig
	listener net.Listener
	tcp      *net.TCPListener
	chunk    []byte
	session  *tcpSession

	mu        sync.Mutex // guards session against Close
	closeOnce sync.Once
	done      chan struct{}

	connections uint64
	received    uint64
	oversized   uint64
	discarded   uint64
	errors      uint64
}

// NewTCPReceiver starts listening on cfg.Address.
func NewTCPReceiver(cfg TCPReceiverConfig) (*TCPReceiver, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.Address)
	if err != nil {
		return nil, transportErr("tcp.listen", err)
	}
	tcpListener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, transportErr("tcp.listen", err)
	}

	var listener net.Listener = tcpListener
	if cfg.TLS.Enabled {
		tlsConfig, err := serverTLS(cfg.TLS)
		if err != nil {
			tcpListener.Close()
			return nil, transportErr("tcp.listen", err)
		}
		listener = tls.NewListener(tcpListener, tlsConfig)
	}

	slog.Info("TCP receiver started",
		"address", tcpListener.Addr().String(),
		"tls", cfg.TLS.Enabled,
	)

	return &TCPReceiver{
		config:   cfg,
		listener: listener,
		tcp:      tcpListener,
		chunk:    make([]byte, 65535),
		done:     make(chan struct{}),
	}, nil
}

// Receive returns the next complete line from the current connection,
// accepting a new connection when none is open.
func (r *TCPReceiver) Receive(ctx context.Context) (Record, error) {
	for {
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-r.done:
			return Record{}, ErrClosed
		default:
		}

		if r.session == nil {
			if err := r.accept(ctx); err != nil {
				if isTimeout(err) {
					continue
				}
				select {
				case <-r.done:
					return Record{}, ErrClosed
				default:
				}
				atomic.AddUint64(&r.errors, 1)
				return Record{}, transportErr("tcp.accept", err)
			}
			continue
		}

		if rec, ok := r.nextLine(); ok {
			return rec, nil
		}

		if err := r.fill(); err != nil {
			if isTimeout(err) {
				if r.idle() {
					r.endSession("idle timeout")
				}
				continue
			}
			select {
			case <-r.done:
				return Record{}, ErrClosed
			default:
			}
			if err == io.EOF {
				r.endSession("peer closed")
				continue
			}
			r.endSession("read error")
			atomic.AddUint64(&r.errors, 1)
			return Record{}, transportErr("tcp.read", err)
		}
	}
}

func (r *TCPReceiver) accept(ctx context.Context) error {
	// Set accept deadline to allow periodic context checks
	r.tcp.SetDeadline(time.Now().Add(r.config.PollInterval))

	conn, err := r.listener.Accept()
	if err != nil {
		return err
	}

	if tlsConn, ok := conn.(*tls.Conn); ok {
		hctx, cancel := context.WithTimeout(ctx, r.config.HandshakeTimeout)
		err := tlsConn.HandshakeContext(hctx)
		cancel()
		if err != nil {
			// Only this peer is affected; keep accepting.
			conn.Close()
			atomic.AddUint64(&r.errors, 1)
			slog.Warn("TLS handshake failed",
				"remote", conn.RemoteAddr().String(),
				"error", transportErr("tcp.handshake", err),
			)
			return nil
		}
	}

	raw := conn
	if tlsConn, ok := conn.(*tls.Conn); ok {
		raw = tlsConn.NetConn()
	}
	if tcpConn, ok := raw.(*net.TCPConn); ok && r.config.BufferSize > 0 {
		if err := tcpConn.SetReadBuffer(r.config.BufferSize); err != nil {
			slog.Debug("failed to set TCP read buffer", "error", err)
		}
	}

	atomic.AddUint64(&r.connections, 1)
	session := &tcpSession{
		id:       uuid.NewString(),
		conn:     conn,
		remote:   conn.RemoteAddr().String(),
		lastRead: time.Now(),
	}

	r.mu.Lock()
	r.session = session
	r.mu.Unlock()

	slog.Info("new TCP connection", "remote", r.session.remote, "session", r.session.id)
	return nil
}

// nextLine pops one complete line from the session buffer.
func (r *TCPReceiver) nextLine() (Record, bool) {
	s := r.session
	for {
		i := bytes.IndexByte(s.buf.Bytes(), '\n')
		if i < 0 {
			return Record{}, false
		}
		line := s.buf.Next(i + 1)
		if s.discarding {
			s.discarding = false
			continue
		}
		if limit := r.config.MaxLineLength; limit > 0 && i > limit {
			r.dropOversized(limit)
			continue
		}
		data := make([]byte, i)
		copy(data, line[:i])

		s.lines++
		atomic.AddUint64(&r.received, 1)
		return Record{Data: data, Source: s.remote}, true
	}
}

// fill appends one read worth of bytes to the session buffer.
func (r *TCPReceiver) fill() error {
	s := r.session
	s.conn.SetReadDeadline(time.Now().Add(r.config.PollInterval))

	n, err := s.conn.Read(r.chunk)
	if n > 0 {
		s.lastRead = time.Now()
		s.buf.Write(r.chunk[:n])
		r.enforceLineLimit()
		// A read error that arrives with data resurfaces on the next read.
		return nil
	}
	return err
}

// enforceLineLimit drops an unterminated line once it exceeds the limit.
func (r *TCPReceiver) enforceLineLimit() {
	s := r.session
	limit := r.config.MaxLineLength
	if limit <= 0 || bytes.IndexByte(s.buf.Bytes(), '\n') >= 0 {
		return
	}
	if s.discarding {
		s.buf.Reset()
		return
	}
	if s.buf.Len() <= limit {
		return
	}

	r.dropOversized(limit)
	s.buf.Reset()
	s.discarding = true
}

func (r *TCPReceiver) dropOversized(limit int) {
	s := r.session
	atomic.AddUint64(&r.oversized, 1)
	slog.Warn("TCP line exceeds maximum length, discarding",
		"remote", s.remote,
		"session", s.id,
		"error", transportErr("tcp.read", fmt.Errorf("line longer than %d bytes", limit)),
	)
}

func (r *TCPReceiver) idle() bool {
	return r.config.IdleTimeout > 0 && time.Since(r.session.lastRead) >= r.config.IdleTimeout
}

// endSession closes the current connection. Any partial line is lost.
func (r *TCPReceiver) endSession(reason string) {
	s := r.session
	r.mu.Lock()
	r.session = nil
	r.mu.Unlock()
	s.conn.Close()

	partial := s.buf.Len()
	if partial > 0 {
		atomic.AddUint64(&r.discarded, 1)
	}
	slog.Info("TCP connection closed",
		"remote", s.remote,
		"session", s.id,
		"reason", reason,
		"lines", s.lines,
		"discarded_bytes", partial,
	)
}

// Addr returns the listen address.
func (r *TCPReceiver) Addr() net.Addr {
	return r.listener.Addr()
}

// Close closes the listener and the current connection. A partial line
// still buffered is lost.
func (r *TCPReceiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.listener.Close()

		r.mu.Lock()
		if r.session != nil {
			r.session.conn.Close()
		}
		r.mu.Unlock()

		slog.Info("TCP receiver stopped",
			"connections", atomic.LoadUint64(&r.connections),
			"received", atomic.LoadUint64(&r.received),
			"errors", atomic.LoadUint64(&r.errors),
		)
	})
	return err
}

// Metrics returns the current receiver metrics.
func (r *TCPReceiver) Metrics() TCPReceiverMetrics {
	return TCPReceiverMetrics{
		Connections: atomic.LoadUint64(&r.connections),
		Received:    atomic.LoadUint64(&r.received),
		Oversized:   atomic.LoadUint64(&r.oversized),
		Discarded:   atomic.LoadUint64(&r.discarded),
		Errors:      atomic.LoadUint64(&r.errors),
	}
}
