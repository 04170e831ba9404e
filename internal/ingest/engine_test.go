package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"cef-relay/internal/errors"
)

// scriptReceiver replays a fixed list of records and errors, then blocks.
type scriptReceiver struct {
	mu     sync.Mutex
	steps  []any
	closed chan struct{}
	once   sync.Once
}

func newScriptReceiver(steps ...any) *scriptReceiver {
	return &scriptReceiver{steps: steps, closed: make(chan struct{})}
}

func (r *scriptReceiver) Receive(ctx context.Context) (Record, error) {
	r.mu.Lock()
	if len(r.steps) > 0 {
		step := r.steps[0]
		r.steps = r.steps[1:]
		r.mu.Unlock()
		switch s := step.(type) {
		case string:
			return Record{Data: []byte(s), Source: "test"}, nil
		case error:
			return Record{}, s
		}
		panic(fmt.Sprintf("unexpected step %T", step))
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return Record{}, ctx.Err()
	case <-r.closed:
		return Record{}, ErrClosed
	}
}

func (r *scriptReceiver) Addr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 514}
}

func (r *scriptReceiver) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

// collectSender records payloads and fails those equal to failOn.
type collectSender struct {
	mu     sync.Mutex
	sent   []string
	failOn string
}

func (s *collectSender) Send(_ context.Context, payload []byte) error {
	if string(payload) == s.failOn {
		return transportErr("test.send", errors.New("refused"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, string(payload))
	return nil
}

func (s *collectSender) Close() error { return nil }

func (s *collectSender) payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

var upper = ProcessorFunc(func(rec Record) ([]byte, error) {
	if bytes.HasPrefix(rec.Data, []byte("bad")) {
		return nil, errors.Formatf("test.process", "unparseable record %d", rec.Seq)
	}
	return bytes.ToUpper(rec.Data), nil
})

func runEngine(t *testing.T, e *Engine) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run() did not return after cancel")
		}
	}
}

func TestEngine_ForwardsInOrder(t *testing.T) {
	r := newScriptReceiver("a", "   ", "bad record", "b", "c")
	s := &collectSender{}
	e := NewEngine(DefaultEngineConfig(), r, upper, s, nil)

	stop := runEngine(t, e)
	if !waitForCondition(2*time.Second, func() bool { return len(s.payloads()) == 3 }) {
		t.Fatalf("forwarded %v, want 3 records", s.payloads())
	}
	stop()

	got := s.payloads()
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("payload %d = %q, want %q", i, got[i], want[i])
		}
	}

	m := e.Metrics()
	if m.Received != 5 || m.Forwarded != 3 || m.Dropped != 1 || m.Skipped != 1 {
		t.Errorf("Metrics() = %+v", m)
	}
}

func TestEngine_AssignsSequence(t *testing.T) {
	var seqs []uint64
	var mu sync.Mutex
	p := ProcessorFunc(func(rec Record) ([]byte, error) {
		mu.Lock()
		seqs = append(seqs, rec.Seq)
		mu.Unlock()
		return rec.Data, nil
	})

	r := newScriptReceiver("one", "two", "three")
	s := &collectSender{}
	e := NewEngine(DefaultEngineConfig(), r, p, s, nil)

	stop := runEngine(t, e)
	waitForCondition(2*time.Second, func() bool { return len(s.payloads()) == 3 })
	stop()

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Errorf("record %d has Seq %d", i, seq)
		}
	}
}

func TestEngine_ErrorsDoNotStopLoop(t *testing.T) {
	r := newScriptReceiver(
		"first",
		transportErr("test.read", errors.New("connection reset")),
		"refuse-me",
		"last",
	)
	s := &collectSender{failOn: "refuse-me"}

	cfg := DefaultEngineConfig()
	cfg.RetryDelay = time.Millisecond
	e := NewEngine(cfg, r, Passthrough, s, nil)

	stop := runEngine(t, e)
	if !waitForCondition(2*time.Second, func() bool { return len(s.payloads()) == 2 }) {
		t.Fatalf("forwarded %v, want 2 records", s.payloads())
	}
	stop()

	m := e.Metrics()
	if m.ReceiveErrors != 1 || m.SendErrors != 1 || m.Forwarded != 2 {
		t.Errorf("Metrics() = %+v", m)
	}
}

func TestEngine_StopsWhenReceiverClosed(t *testing.T) {
	r := newScriptReceiver()
	e := NewEngine(DefaultEngineConfig(), r, Passthrough, &collectSender{}, nil)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	r.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after receiver closed")
	}
}

func TestEngine_CancelClosesReceiver(t *testing.T) {
	r := newScriptReceiver()
	e := NewEngine(DefaultEngineConfig(), r, Passthrough, &collectSender{}, nil)

	stop := runEngine(t, e)
	stop()

	select {
	case <-r.closed:
	default:
		t.Error("receiver should be closed after cancellation")
	}
}

type countingProcessor struct {
	ProcessorFunc
	calls int
}

func (p *countingProcessor) StatsAttrs() []any {
	return []any{"calls", p.calls}
}

func TestEngine_OverTCP(t *testing.T) {
	in := newTestTCPReceiver(t)
	out := newTestUDPReceiver(t)

	s, err := NewUDPSender(SenderConfig{Address: out.Addr().String()})
	if err != nil {
		t.Fatalf("NewUDPSender() error: %v", err)
	}
	defer s.Close()

	p := &countingProcessor{}
	p.ProcessorFunc = func(rec Record) ([]byte, error) {
		p.calls++
		return append([]byte("seen:"), rec.Data...), nil
	}

	cfg := DefaultEngineConfig()
	cfg.StatsInterval = 1
	e := NewEngine(cfg, in, p, s, nil)
	stop := runEngine(t, e)
	defer stop()

	conn := dialTCP(t, in)
	conn.Write([]byte("lineA\nlineB\n"))

	for _, want := range []string{"seen:lineA", "seen:lineB"} {
		if got := receiveWithin(t, out, 2*time.Second); string(got.Data) != want {
			t.Errorf("forwarded %q, want %q", got.Data, want)
		}
	}
}
