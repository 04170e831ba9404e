// Package ingest moves records between network sockets and a processor.
//
// A Receiver yields one Record per datagram or per newline-terminated line,
// a Processor turns it into the bytes to forward, and a Sender writes those
// bytes to the forward target. The Engine runs the three in one loop so
// records leave in the order they arrived.
package ingest

import (
	"context"
	"net"
	"strings"
	"time"

	"cef-relay/internal/errors"
)

// Protocol names accepted by the input and output factories.
const (
	ProtoUDP   = "udp"
	ProtoTCP   = "tcp"
	ProtoDTLS  = "dtls"
	ProtoKafka = "kafka"
	ProtoRedis = "redis"
)

// DefaultPollInterval bounds every blocking socket call so cancellation is
// observed promptly.
const DefaultPollInterval = 100 * time.Millisecond

// ErrClosed is returned by Receive once the receiver has been closed.
var ErrClosed = errors.New("receiver closed")

// Record is the payload of one receive operation.
type Record struct {
	// Seq is assigned by the Engine in arrival order, starting at 1.
	Seq uint64
	// Data is owned by the record and never reused by the receiver.
	Data []byte
	// Source is the peer address.
	Source string
}

// Text returns the payload as a string with invalid UTF-8 removed.
func (r Record) Text() string {
	return strings.ToValidUTF8(string(r.Data), "")
}

// Receiver yields records from an input socket.
type Receiver interface {
	// Receive blocks until a record arrives, ctx is done or the receiver
	// is closed. Transport errors that affect a single record or
	// connection are returned with KindTransport and the caller may call
	// Receive again.
	Receive(ctx context.Context) (Record, error)
	Addr() net.Addr
	Close() error
}

// Sender writes processed records to the forward target.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Processor turns a record into the bytes to forward. A format error means
// the record is dropped.
type Processor interface {
	Process(rec Record) ([]byte, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(rec Record) ([]byte, error)

// Process calls f(rec).
func (f ProcessorFunc) Process(rec Record) ([]byte, error) {
	return f(rec)
}

// Passthrough forwards every record unchanged.
var Passthrough = ProcessorFunc(func(rec Record) ([]byte, error) {
	return rec.Data, nil
})

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func transportErr(op string, err error) error {
	return errors.E(errors.KindTransport, op, err)
}
