// Package protocol implements the wire protocol of the file service: typed
// commands and results, and the self-delimiting frame codec that carries them.
//
// A frame is a 4-byte big-endian length prefix followed by the frame body.
// A request body is a single ASCII command line; an UPLOAD line is followed by
// a newline and exactly the declared number of raw payload bytes, so payloads
// may contain any byte value. A response body is a status line ("OK <length>"
// or "ERROR <kind> <message>") followed by the payload bytes, if any.
package protocol

import "fmt"

// Op identifies a file operation carried by a Command.
type Op string

const (
	OpList   Op = "LIST"
	OpGet    Op = "GET"
	OpUpload Op = "UPLOAD"
	OpDelete Op = "DELETE"
)

// Command is one decoded client request. Commands are immutable once decoded.
type Command struct {
	Op   Op
	Name string

	// Payload carries the UPLOAD content. Always uncompressed; the codec
	// handles LZ4 transparently when Compress is set.
	Payload []byte

	// Compress requests LZ4 block compression on the wire. On UPLOAD the
	// payload travels compressed; on GET the client asks the server to
	// compress the response payload.
	Compress bool
}

// ErrorKind classifies a failed operation. The kinds travel on the wire in
// ERROR results and are reported unchanged in worker outcomes.
type ErrorKind string

const (
	KindMalformedFrame       ErrorKind = "MalformedFrame"
	KindNotFound             ErrorKind = "NotFound"
	KindUploadLengthMismatch ErrorKind = "UploadLengthMismatch"
	KindStoreFailure         ErrorKind = "StoreFailure"

	// Client-side kinds. These never travel on the wire; they classify
	// failures observed by a synthetic client worker.
	KindConnectionFailure ErrorKind = "ConnectionFailure"
	KindTimeout           ErrorKind = "Timeout"
	KindBackendStartup    ErrorKind = "BackendStartupFailure"
)

// Result is the typed outcome of one dispatched command.
type Result struct {
	OK bool

	// Payload holds the file bytes for GET, or the newline-joined listing
	// for LIST. Empty for UPLOAD and DELETE.
	Payload []byte

	// Compress requests LZ4 compression of the payload on the wire.
	Compress bool

	Kind    ErrorKind
	Message string
}

// OkResult builds a successful Result carrying payload.
func OkResult(payload []byte) *Result {
	return &Result{OK: true, Payload: payload}
}

// ErrResult builds a failed Result with a typed kind.
func ErrResult(kind ErrorKind, format string, v ...any) *Result {
	return &Result{OK: false, Kind: kind, Message: fmt.Sprintf(format, v...)}
}
