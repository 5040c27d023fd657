package transport

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// initialScanBuffer and maxScanBuffer size the line scanner. MCP messages
// (tool results in particular) can be large; the teacher's proxy copy loop
// uses the same sizing for the same reason.
const (
	initialScanBuffer = 256 * 1024
	maxScanBuffer     = 1024 * 1024
)

// maxFrameErrorPreview bounds how much of an offending payload a frame error
// carries, so a malformed multi-megabyte upstream response doesn't turn into
// a multi-megabyte log line.
const maxFrameErrorPreview = 200

// frameError wraps a codec failure with the bounded payload preview above,
// giving logs enough context to diagnose a bad frame (which side produced
// it, roughly what it contained) without needing the full raw bytes.
type frameError struct {
	op      string
	preview string
	err     error
}

func (e *frameError) Error() string {
	if e.preview == "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return fmt.Sprintf("%s: %v (payload: %s)", e.op, e.err, e.preview)
}

func (e *frameError) Unwrap() error { return e.err }

func previewBytes(b []byte) string {
	if len(b) > maxFrameErrorPreview {
		return string(b[:maxFrameErrorPreview]) + "..."
	}
	return string(b)
}

// EncodeFrame serializes a JSON-RPC message to its wire form, delegating to
// the SDK's codec.
func EncodeFrame(msg jsonrpc.Message) ([]byte, error) {
	payload, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return nil, &frameError{op: "encode frame", err: err}
	}
	return payload, nil
}

// DecodeFrame deserializes wire bytes into a *jsonrpc.Request or
// *jsonrpc.Response. On failure the error carries a bounded preview of the
// offending bytes for logging.
func DecodeFrame(data []byte) (jsonrpc.Message, error) {
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, &frameError{op: "decode frame", preview: previewBytes(data), err: err}
	}
	return msg, nil
}

// WrapFrame decodes raw bytes and wraps them in a Frame tagged with the
// given direction and current time. Returns an error if decoding fails;
// callers that want raw passthrough on decode failure construct the Frame
// by hand instead (see ReadFrames, which does exactly that).
func WrapFrame(raw []byte, dir Direction) (*Frame, error) {
	decoded, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Raw:       raw,
		Direction: dir,
		Decoded:   decoded,
		Timestamp: time.Now(),
	}, nil
}

// ReadFrames scans newline-delimited JSON frames from src and invokes fn
// for each non-empty line. A line that fails to decode is logged at debug
// and still handed to fn as a Frame with a nil Decoded and its raw bytes
// kept; it never aborts the scan, and it is up to fn to discard it.
// ReadFrames returns
// when src reaches EOF, the scanner errors, or fn returns a non-nil error
// (which ReadFrames propagates immediately).
func ReadFrames(src io.Reader, dir Direction, logger *slog.Logger, fn func(*Frame) error) error {
	scanner := bufio.NewScanner(src)
	buf := make([]byte, 0, initialScanBuffer)
	scanner.Buffer(buf, maxScanBuffer)

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}

		frame := &Frame{Raw: line, Direction: dir, Timestamp: time.Now()}
		if decoded, err := DecodeFrame(line); err == nil {
			frame.Decoded = decoded
		} else if logger != nil {
			logger.Debug("discarding unparseable frame", "direction", dir, "error", err)
		}

		if err := fn(frame); err != nil {
			return err
		}
	}
	return scanner.Err()
}
