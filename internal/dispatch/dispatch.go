// Package dispatch executes decoded commands against a file store.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"filestorm/internal/logger"
	"filestorm/internal/protocol"
	"filestorm/internal/store"
)

// Dispatch runs one command and always returns a typed result: no failure,
// including a panicking store backend, escapes past this boundary.
func Dispatch(ctx context.Context, cmd *protocol.Command, st store.Store) (res *protocol.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch %s %s panicked: %v", cmd.Op, cmd.Name, r)
			res = protocol.ErrResult(protocol.KindStoreFailure, "internal failure: %v", r)
		}
	}()

	switch cmd.Op {
	case protocol.OpList:
		names, err := st.List(ctx)
		if err != nil {
			return storeError(cmd, err)
		}
		return protocol.OkResult([]byte(strings.Join(names, "\n")))

	case protocol.OpGet:
		data, err := st.Get(ctx, cmd.Name)
		if err != nil {
			return storeError(cmd, err)
		}
		// Honor the client's request to compress the reply.
		return &protocol.Result{OK: true, Payload: data, Compress: cmd.Compress}

	case protocol.OpUpload:
		if err := st.Put(ctx, cmd.Name, cmd.Payload); err != nil {
			return storeError(cmd, err)
		}
		return protocol.OkResult(nil)

	case protocol.OpDelete:
		if err := st.Delete(ctx, cmd.Name); err != nil {
			return storeError(cmd, err)
		}
		return protocol.OkResult(nil)

	default:
		return protocol.ErrResult(protocol.KindMalformedFrame, "unknown operation %q", cmd.Op)
	}
}

func storeError(cmd *protocol.Command, err error) *protocol.Result {
	if errors.Is(err, store.ErrNotFound) {
		return protocol.ErrResult(protocol.KindNotFound, "no such file: %s", cmd.Name)
	}
	logger.Warn("%s %s failed: %v", cmd.Op, cmd.Name, err)
	return protocol.ErrResult(protocol.KindStoreFailure, "%v", err)
}
