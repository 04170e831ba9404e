package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cef-relay/internal/errors"
)

// fakeRedis answers just enough RESP for a client to connect and publish.
type fakeRedis struct {
	listener net.Listener

	mu        sync.Mutex
	published map[string][]string
}

func newFakeRedis(t *testing.T) *fakeRedis {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	f := &fakeRedis{listener: l, published: make(map[string][]string)}
	go f.serve()
	t.Cleanup(func() { l.Close() })
	return f
}

func (f *fakeRedis) addr() string {
	return f.listener.Addr().String()
}

func (f *fakeRedis) messages(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published[channel]...)
}

func (f *fakeRedis) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeRedis) handle(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	for {
		args, err := readCommand(rd)
		if err != nil {
			return
		}
		var reply string
		switch strings.ToUpper(args[0]) {
		case "HELLO":
			reply = "-ERR unknown command 'HELLO'\r\n"
		case "PING":
			reply = "+PONG\r\n"
		case "PUBLISH":
			f.mu.Lock()
			f.published[args[1]] = append(f.published[args[1]], args[2])
			f.mu.Unlock()
			reply = ":1\r\n"
		default:
			reply = "+OK\r\n"
		}
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

// readCommand reads one RESP array of bulk strings.
func readCommand(rd *bufio.Reader) ([]string, error) {
	header, err := rd.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(header, "*") {
		return nil, fmt.Errorf("unexpected header %q", header)
	}
	n, err := strconv.Atoi(strings.TrimSpace(header[1:]))
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(line[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func TestDefaultRedisSenderConfig(t *testing.T) {
	cfg := DefaultRedisSenderConfig()
	if cfg.Addr != "localhost:6379" || cfg.Channel != "cef-events" {
		t.Errorf("DefaultRedisSenderConfig() = %+v", cfg)
	}
}

func TestRedisSender_Publish(t *testing.T) {
	srv := newFakeRedis(t)

	cfg := DefaultRedisSenderConfig()
	cfg.Addr = srv.addr()
	cfg.Channel = "siem"

	s, err := NewRedisSender(cfg)
	if err != nil {
		t.Fatalf("NewRedisSender() error: %v", err)
	}
	defer s.Close()

	payloads := []string{
		"CEF:0|PaloAlto|GlobalProtect|-|-|login|1|outcome=success",
		"CEF:0|PaloAlto|GlobalProtect|-|-|tunnel-down|7|outcome=failed",
	}
	for _, p := range payloads {
		if err := s.Send(context.Background(), []byte(p)); err != nil {
			t.Fatalf("Send() error: %v", err)
		}
	}

	if !waitForCondition(time.Second, func() bool { return len(srv.messages("siem")) == 2 }) {
		t.Fatalf("published = %v", srv.messages("siem"))
	}
	got := srv.messages("siem")
	for i := range payloads {
		if got[i] != payloads[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], payloads[i])
		}
	}
	if m := s.Metrics(); m.Sent != 2 {
		t.Errorf("Metrics() = %+v", m)
	}
}

func TestNewRedisSender_Errors(t *testing.T) {
	cfg := DefaultRedisSenderConfig()
	cfg.Channel = ""
	if _, err := NewRedisSender(cfg); err == nil {
		t.Error("expected error for empty channel")
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	cfg = DefaultRedisSenderConfig()
	cfg.Addr = addr
	cfg.DialTimeout = time.Second
	_, err = NewRedisSender(cfg)
	if !errors.IsKind(err, errors.KindTransport) {
		t.Errorf("NewRedisSender() error = %v, want transport error", err)
	}
}
