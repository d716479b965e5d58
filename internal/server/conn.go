package server

import (
	"context"
	"errors"
	"io"
	"net"

	"filestorm/internal/dispatch"
	"filestorm/internal/logger"
	"filestorm/internal/protocol"
	"filestorm/internal/ratelimiter"
	"filestorm/internal/store"
)

// ServeConn runs the request loop on one connection until the peer hangs up,
// the context is cancelled, or a request fails to decode. It is shared by the
// in-process goroutine workers and the isolated worker processes; limiter may
// be nil.
//
// A request that fails to decode gets an ERROR reply and then the connection
// is closed; operations that decode but fail are answered and the loop
// continues.
func ServeConn(ctx context.Context, conn net.Conn, st store.Store, limiter *ratelimiter.RateLimiter) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := handleRequest(ctx, conn, st, limiter); err != nil {
				if !errors.Is(err, io.EOF) {
					logger.Debug("connection %s: %v", conn.RemoteAddr(), err)
				}
				return
			}
		}
	}
}

func handleRequest(ctx context.Context, conn net.Conn, st store.Store, limiter *ratelimiter.RateLimiter) error {
	body, err := protocol.ReadFrame(conn)
	if err != nil {
		if errors.Is(err, protocol.ErrFrameTooLarge) {
			writeResult(conn, protocol.ErrResult(protocol.KindMalformedFrame, "%v", err))
		}
		return err
	}

	cmd, err := protocol.DecodeCommand(body)
	if err != nil {
		// Answer with a typed error, then drop the connection.
		if werr := writeResult(conn, protocol.ErrResult(protocol.KindOf(err), "%v", err)); werr != nil {
			return werr
		}
		return err
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	res := dispatch.Dispatch(ctx, cmd, st)
	return writeResult(conn, res)
}

func writeResult(conn net.Conn, res *protocol.Result) error {
	return protocol.WriteFrame(conn, protocol.EncodeResult(res))
}
