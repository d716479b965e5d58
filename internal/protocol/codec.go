package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// MaxFrameSize bounds a single frame body. Large enough for the biggest
// benchmark payload plus the command line, small enough to reject a garbage
// length prefix before allocating.
const MaxFrameSize = 512 << 20

const compressToken = "lz4"

// Decode failures. Each distinct condition has its own sentinel so callers can
// report a precise error kind.
var (
	ErrEmptyFrame       = errors.New("protocol: empty frame")
	ErrUnknownCommand   = errors.New("protocol: unknown command keyword")
	ErrMalformedCommand = errors.New("protocol: malformed command")
	ErrLengthMismatch   = errors.New("protocol: upload length mismatch")
	ErrFrameTooLarge    = errors.New("protocol: frame exceeds size limit")
)

// KindOf maps a decode error to the wire error kind.
func KindOf(err error) ErrorKind {
	if errors.Is(err, ErrLengthMismatch) {
		return KindUploadLengthMismatch
	}
	return KindMalformedFrame
}

// ReadFrame reads one length-prefixed frame body. It blocks until the full
// frame arrives, returns io.EOF on a cleanly closed connection before the
// prefix, and never misreads a boundary: the prefix alone delimits the frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes body as one length-prefixed frame.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// EncodeCommand serializes a command into a frame body.
func EncodeCommand(c *Command) ([]byte, error) {
	switch c.Op {
	case OpList:
		return []byte("LIST"), nil

	case OpGet:
		if err := validateName(c.Name); err != nil {
			return nil, err
		}
		if c.Compress {
			return []byte("GET " + c.Name + " " + compressToken), nil
		}
		return []byte("GET " + c.Name), nil

	case OpDelete:
		if err := validateName(c.Name); err != nil {
			return nil, err
		}
		return []byte("DELETE " + c.Name), nil

	case OpUpload:
		if err := validateName(c.Name); err != nil {
			return nil, err
		}
		wire := c.Payload
		token := ""
		if c.Compress {
			if comp, ok := compressBlock(c.Payload); ok {
				wire = comp
				token = " " + compressToken
			}
		}
		line := fmt.Sprintf("UPLOAD %s %d%s\n", c.Name, len(c.Payload), token)
		body := make([]byte, 0, len(line)+len(wire))
		body = append(body, line...)
		return append(body, wire...), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Op)
	}
}

// DecodeCommand parses a frame body into a command. The returned error wraps
// one of the decode sentinels above.
func DecodeCommand(body []byte) (*Command, error) {
	if len(body) == 0 {
		return nil, ErrEmptyFrame
	}

	line := body
	var payload []byte
	hasPayload := false
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
		line = body[:idx]
		payload = body[idx+1:]
		hasPayload = true
	}

	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: blank command line", ErrMalformedCommand)
	}

	switch fields[0] {
	case "LIST":
		if len(fields) != 1 || hasPayload {
			return nil, fmt.Errorf("%w: LIST takes no arguments", ErrMalformedCommand)
		}
		return &Command{Op: OpList}, nil

	case "GET":
		if hasPayload || len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w: usage GET <name> [lz4]", ErrMalformedCommand)
		}
		compress, err := parseCompressToken(fields[2:])
		if err != nil {
			return nil, err
		}
		if err := validateName(fields[1]); err != nil {
			return nil, err
		}
		return &Command{Op: OpGet, Name: fields[1], Compress: compress}, nil

	case "DELETE":
		if hasPayload || len(fields) != 2 {
			return nil, fmt.Errorf("%w: usage DELETE <name>", ErrMalformedCommand)
		}
		if err := validateName(fields[1]); err != nil {
			return nil, err
		}
		return &Command{Op: OpDelete, Name: fields[1]}, nil

	case "UPLOAD":
		if len(fields) < 3 || len(fields) > 4 {
			return nil, fmt.Errorf("%w: usage UPLOAD <name> <length> [lz4]", ErrMalformedCommand)
		}
		if err := validateName(fields[1]); err != nil {
			return nil, err
		}
		declared, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || declared < 0 {
			return nil, fmt.Errorf("%w: bad length %q", ErrMalformedCommand, fields[2])
		}
		compress, err := parseCompressToken(fields[3:])
		if err != nil {
			return nil, err
		}
		if !hasPayload {
			return nil, fmt.Errorf("%w: UPLOAD missing payload delimiter", ErrMalformedCommand)
		}

		data := payload
		if compress {
			if data, err = uncompressBlock(payload, declared); err != nil {
				return nil, err
			}
		} else if int64(len(data)) != declared {
			return nil, fmt.Errorf("%w: declared %d, received %d",
				ErrLengthMismatch, declared, len(data))
		}
		return &Command{Op: OpUpload, Name: fields[1], Payload: data, Compress: compress}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
}

// EncodeResult serializes a result into a frame body.
func EncodeResult(res *Result) []byte {
	if !res.OK {
		kind := res.Kind
		if kind == "" {
			kind = KindStoreFailure
		}
		return []byte(fmt.Sprintf("ERROR %s %s", kind, res.Message))
	}

	wire := res.Payload
	token := ""
	if res.Compress && len(res.Payload) > 0 {
		if comp, ok := compressBlock(res.Payload); ok {
			wire = comp
			token = " " + compressToken
		}
	}
	line := fmt.Sprintf("OK %d%s\n", len(res.Payload), token)
	body := make([]byte, 0, len(line)+len(wire))
	body = append(body, line...)
	return append(body, wire...)
}

// DecodeResult parses a response frame body.
func DecodeResult(body []byte) (*Result, error) {
	if len(body) == 0 {
		return nil, ErrEmptyFrame
	}

	text := string(body)
	if strings.HasPrefix(text, "ERROR ") {
		parts := strings.SplitN(text, " ", 3)
		res := &Result{OK: false, Kind: ErrorKind(parts[1])}
		if len(parts) == 3 {
			res.Message = parts[2]
		}
		return res, nil
	}

	idx := bytes.IndexByte(body, '\n')
	if idx < 0 || !strings.HasPrefix(text, "OK ") {
		return nil, fmt.Errorf("%w: bad status line", ErrMalformedCommand)
	}

	fields := strings.Fields(text[:idx])
	if len(fields) < 2 || len(fields) > 3 {
		return nil, fmt.Errorf("%w: bad status line", ErrMalformedCommand)
	}
	declared, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || declared < 0 {
		return nil, fmt.Errorf("%w: bad length %q", ErrMalformedCommand, fields[1])
	}
	compress, err := parseCompressToken(fields[2:])
	if err != nil {
		return nil, err
	}

	data := body[idx+1:]
	if compress {
		if data, err = uncompressBlock(data, declared); err != nil {
			return nil, err
		}
	} else if int64(len(data)) != declared {
		return nil, fmt.Errorf("%w: declared %d, received %d",
			ErrLengthMismatch, declared, len(data))
	}
	return &Result{OK: true, Payload: data, Compress: compress}, nil
}

func parseCompressToken(extra []string) (bool, error) {
	if len(extra) == 0 {
		return false, nil
	}
	if extra[0] != compressToken {
		return false, fmt.Errorf("%w: unknown token %q", ErrMalformedCommand, extra[0])
	}
	return true, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty file name", ErrMalformedCommand)
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: illegal file name %q", ErrMalformedCommand, name)
	}
	return nil
}

// compressBlock LZ4-compresses src. Returns false when the block is not
// compressible, in which case the raw bytes travel uncompressed.
func compressBlock(src []byte) ([]byte, bool) {
	if len(src) == 0 {
		return nil, false
	}
	buf := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, buf, nil)
	if err != nil || n == 0 || n >= len(src) {
		return nil, false
	}
	return buf[:n], true
}

func uncompressBlock(src []byte, rawLen int64) ([]byte, error) {
	if rawLen > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, rawLen)
	}
	buf := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(src, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrLengthMismatch, err)
	}
	if int64(n) != rawLen {
		return nil, fmt.Errorf("%w: declared %d, decompressed %d", ErrLengthMismatch, rawLen, n)
	}
	return buf, nil
}
