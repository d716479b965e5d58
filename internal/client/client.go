// Package client implements the synthetic client side of the file service:
// one connection, one operation, one classified outcome. The load generator
// builds its pools out of these single-shot calls.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"filestorm/internal/protocol"
)

// DefaultTimeout bounds an operation when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Options configures one operation.
type Options struct {
	// Target is the host:port of the server.
	Target string

	// Timeout covers the whole operation: dial, write, and reply.
	Timeout time.Duration

	// Compress asks for LZ4 block compression of payloads on the wire.
	Compress bool
}

// Error is a classified operation failure. Server-reported failures carry the
// kind from the ERROR reply; local failures are classified by cause.
type Error struct {
	Kind    protocol.ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Kind extracts the failure classification from err, or empty for nil.
func Kind(err error) protocol.ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return protocol.KindConnectionFailure
}

// Do dials target, performs one operation, and returns the reply payload:
// the file bytes for GET, the newline-joined listing for LIST, nil for
// UPLOAD and DELETE. Every failure is an *Error.
func Do(ctx context.Context, op protocol.Op, name string, payload []byte, opts Options) ([]byte, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", opts.Target)
	if err != nil {
		return nil, classify(err, "dial %s", opts.Target)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, classify(err, "set deadline")
	}

	body, err := protocol.EncodeCommand(&protocol.Command{
		Op:       op,
		Name:     name,
		Payload:  payload,
		Compress: opts.Compress,
	})
	if err != nil {
		return nil, &Error{Kind: protocol.KindMalformedFrame, Message: err.Error()}
	}
	if err := protocol.WriteFrame(conn, body); err != nil {
		return nil, classify(err, "send %s", op)
	}

	reply, err := protocol.ReadFrame(conn)
	if err != nil {
		return nil, classify(err, "read %s reply", op)
	}
	res, err := protocol.DecodeResult(reply)
	if err != nil {
		return nil, &Error{Kind: protocol.KindMalformedFrame, Message: err.Error()}
	}
	if !res.OK {
		return nil, &Error{Kind: res.Kind, Message: res.Message}
	}
	return res.Payload, nil
}

// classify maps a transport error to its kind: deadline expiries are
// timeouts, everything else is a connection failure.
func classify(err error, format string, v ...any) *Error {
	kind := protocol.KindConnectionFailure

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		kind = protocol.KindTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = protocol.KindTimeout
	}

	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, v...) + ": " + err.Error(),
	}
}
