// Package transport provides the framed JSON-RPC message types and codec
// used to talk to each spawned MCP server (downstream transport); the
// agent-facing side is served by the metatool package's MCP server
// library instead. Framing is newline-delimited JSON,
// one value per line, per the MCP stdio convention.
package transport

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Direction indicates which way a message is flowing across a framed
// connection: ClientToServer for requests written to a child process's
// stdin, ServerToClient for responses/notifications read from its stdout.
type Direction int

const (
	// ClientToServer indicates a message flowing toward an MCP server.
	ClientToServer Direction = iota
	// ServerToClient indicates a message flowing back from an MCP server.
	ServerToClient
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client->server"
	case ServerToClient:
		return "server->client"
	default:
		return "unknown"
	}
}

// Frame wraps a decoded JSON-RPC message with the metadata the gateway
// needs to correlate it (timestamp for latency accounting, raw bytes for
// logging when decoding fails).
type Frame struct {
	// Raw contains the original line bytes, newline stripped.
	Raw []byte

	// Direction records which way this frame traveled.
	Direction Direction

	// Decoded holds the parsed message. Nil if parsing failed; the raw
	// bytes are still kept for diagnostics (§4.1: parse failures are
	// logged and the line discarded, never fatal to the client).
	Decoded jsonrpc.Message

	// Timestamp records when the frame was read or about to be written.
	Timestamp time.Time

	// parsedParams caches the result of ParseParams.
	parsedParams map[string]any
	paramsParsed bool
}

// IsRequest reports whether the frame decoded to a JSON-RPC request.
func (f *Frame) IsRequest() bool {
	if f.Decoded == nil {
		return false
	}
	_, ok := f.Decoded.(*jsonrpc.Request)
	return ok
}

// IsResponse reports whether the frame decoded to a JSON-RPC response.
func (f *Frame) IsResponse() bool {
	if f.Decoded == nil {
		return false
	}
	_, ok := f.Decoded.(*jsonrpc.Response)
	return ok
}

// Method returns the method name if this is a request, "" otherwise.
func (f *Frame) Method() string {
	req := f.Request()
	if req == nil {
		return ""
	}
	return req.Method
}

// IsToolCall reports whether this frame is a tools/call request.
func (f *Frame) IsToolCall() bool {
	return f.Method() == "tools/call"
}

// Request returns the underlying *jsonrpc.Request, or nil.
func (f *Frame) Request() *jsonrpc.Request {
	if f.Decoded == nil {
		return nil
	}
	req, _ := f.Decoded.(*jsonrpc.Request)
	return req
}

// Response returns the underlying *jsonrpc.Response, or nil.
func (f *Frame) Response() *jsonrpc.Response {
	if f.Decoded == nil {
		return nil
	}
	resp, _ := f.Decoded.(*jsonrpc.Response)
	return resp
}

// ParseParams parses the request params into a generic map, caching the
// result (nil is a valid cached result for "not a request" or "parse
// failed", so a separate bool tracks whether parsing was attempted).
func (f *Frame) ParseParams() map[string]any {
	if f.paramsParsed {
		return f.parsedParams
	}
	f.paramsParsed = true

	req := f.Request()
	if req == nil || req.Params == nil {
		return nil
	}

	var params map[string]any
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil
	}
	f.parsedParams = params
	return params
}

// RawID extracts the "id" field straight from the raw bytes. The SDK's
// jsonrpc.ID type does not round-trip cleanly through interface{}, so
// error responses that must echo the original id extract it this way.
func (f *Frame) RawID() json.RawMessage {
	if f.Raw == nil {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(f.Raw, &raw); err != nil {
		return nil
	}
	return raw["id"]
}
