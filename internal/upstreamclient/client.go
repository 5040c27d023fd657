// Package upstreamclient owns the lifecycle of one upstream MCP server: a
// spawned child process, its framed stdio transport, and the pending-request
// table used to correlate responses back to callers. Each Client is
// independent; there is no shared mutable state between clients.
package upstreamclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcpgateway/gateway-mcp/internal/transport"
	"github.com/mcpgateway/gateway-mcp/internal/upstream"
)

// protocolVersion is the fixed MCP handshake version this gateway speaks.
const protocolVersion = "2024-11-05"

// callDeadline is the hard per-call timeout enforced on every tools/call.
const callDeadline = 30 * time.Second

// State is the lifecycle state of an upstream client.
type State int32

const (
	// Spawned: the child process has been started but has not completed
	// the initialize handshake.
	Spawned State = iota
	// Initialized: initialize/initialized has completed.
	Initialized
	// Ready: the client accepts tool calls.
	Ready
	// Closed: the client is permanently done; no further calls succeed.
	Closed
)

func (s State) String() string {
	switch s {
	case Spawned:
		return "spawned"
	case Initialized:
		return "initialized"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by any call made on (or that outlives) a closed
// client. It is non-retriable.
var ErrClosed = errors.New("upstream client: process exited, connection closed")

// ErrNotReady is returned when a call arrives before the handshake has
// completed.
var ErrNotReady = errors.New("upstream client: not ready")

type pendingRequest struct {
	id     int64
	result chan callResult
	timer  *time.Timer
}

type callResult struct {
	raw json.RawMessage
	err error
}

// Client drives one upstream MCP server over its child process's stdio.
// It exclusively owns the process, the stdin writer, the stdout reader, and
// the pending-request table; nothing outside this type touches them.
type Client struct {
	name       string
	descriptor upstream.Descriptor
	logger     *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	nextID atomic.Int64
	state  atomic.Int32

	mu      sync.Mutex
	pending map[int64]*pendingRequest
	closed  bool

	done chan struct{}
}

// Spawn launches the descriptor's command as a child process, wires up the
// framed transport, runs the initialize handshake, and returns a Client in
// the Ready state. The returned Client's reader loop runs for the lifetime
// of the process; callers must Disconnect to release resources.
func Spawn(ctx context.Context, desc upstream.Descriptor, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.Command(desc.LaunchCommand[0], desc.LaunchCommand[1:]...)
	cmd.Env = os.Environ()
	for k, v := range desc.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = &stderrLogWriter{logger: logger, upstream: desc.Name}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("upstream %q: stdin pipe: %w", desc.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("upstream %q: stdout pipe: %w", desc.Name, err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("upstream %q: start: %w", desc.Name, err)
	}

	c := &Client{
		name:       desc.Name,
		descriptor: desc,
		logger:     logger.With("upstream", desc.Name),
		cmd:        cmd,
		stdin:      stdin,
		pending:    make(map[int64]*pendingRequest),
		done:       make(chan struct{}),
	}
	c.state.Store(int32(Spawned))

	go c.readLoop(stdout)
	go c.monitorExit()

	if err := c.handshake(ctx); err != nil {
		_ = c.Disconnect()
		return nil, err
	}

	return c, nil
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Name returns the upstream's identifier.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) handshake(ctx context.Context) error {
	initParams := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "gateway-mcp",
			"version": "0.1.0",
		},
	}
	raw, err := c.request(ctx, "initialize", initParams)
	if err != nil {
		return fmt.Errorf("upstream %q: initialize: %w", c.name, err)
	}
	c.logger.Debug("upstream advertised capabilities", "capabilities", string(raw))
	c.state.Store(int32(Initialized))

	if err := c.notify("notifications/initialized", map[string]any{}); err != nil {
		return fmt.Errorf("upstream %q: initialized notification: %w", c.name, err)
	}

	if c.descriptor.WarmupDelay != nil && *c.descriptor.WarmupDelay > 0 {
		select {
		case <-time.After(*c.descriptor.WarmupDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.state.Store(int32(Ready))
	c.logger.Info("upstream ready")
	return nil
}

// CallTool invokes tools/call for the given tool name and arguments,
// blocking until the response arrives or the 30s call deadline elapses.
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	if c.State() == Closed {
		return nil, ErrClosed
	}
	if c.State() != Ready {
		return nil, ErrNotReady
	}
	params := map[string]any{
		"name":      tool,
		"arguments": args,
	}
	return c.request(ctx, "tools/call", params)
}

// ListTools issues tools/list and returns the raw result, used for optional
// verification at startup.
func (c *Client) ListTools(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, "tools/list", map[string]any{})
}

// request allocates the next id, registers a pending entry, writes the
// framed request, and blocks until a matching response arrives, the process
// exits, or the call deadline fires.
func (c *Client) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)

	rpcID, err := jsonrpc.MakeID(float64(id))
	if err != nil {
		return nil, fmt.Errorf("upstream %q: make id: %w", c.name, err)
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("upstream %q: marshal params: %w", c.name, err)
	}

	req := &jsonrpc.Request{ID: rpcID, Method: method, Params: rawParams}
	payload, err := transport.EncodeFrame(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %q: encode request: %w", c.name, err)
	}

	pending := &pendingRequest{id: id, result: make(chan callResult, 1)}
	timer := time.AfterFunc(callDeadline, func() { c.timeoutPending(id) })
	pending.timer = timer

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		timer.Stop()
		return nil, ErrClosed
	}
	c.pending[id] = pending
	c.mu.Unlock()

	payload = append(payload, '\n')
	if _, err := c.stdin.Write(payload); err != nil {
		c.removePending(id)
		timer.Stop()
		return nil, fmt.Errorf("upstream %q: write: %w", c.name, err)
	}

	select {
	case res := <-pending.result:
		timer.Stop()
		return res.raw, res.err
	case <-ctx.Done():
		c.removePending(id)
		timer.Stop()
		return nil, ctx.Err()
	case <-c.done:
		timer.Stop()
		return nil, ErrClosed
	}
}

// notify writes a JSON-RPC notification (no id, no response expected).
func (c *Client) notify(method string, params any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req := &jsonrpc.Request{Method: method, Params: rawParams}
	payload, err := transport.EncodeFrame(req)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = c.stdin.Write(payload)
	return err
}

func (c *Client) timeoutPending(id int64) {
	p := c.removePending(id)
	if p == nil {
		return
	}
	p.result <- callResult{err: fmt.Errorf("timeout: upstream %q did not respond within %s", c.name, callDeadline)}
}

func (c *Client) removePending(id int64) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending[id]
	delete(c.pending, id)
	return p
}

// readLoop demultiplexes framed responses from the child's stdout by id.
// One reader loop per client; never shared across upstreams.
func (c *Client) readLoop(stdout io.Reader) {
	err := transport.ReadFrames(stdout, transport.ServerToClient, c.logger, func(f *transport.Frame) error {
		resp := f.Response()
		if resp == nil {
			return nil
		}
		id, ok := responseIDToInt(resp)
		if !ok {
			c.logger.Debug("response with unrecognized id shape, dropping", "raw", string(f.Raw))
			return nil
		}

		p := c.removePending(id)
		if p == nil {
			c.logger.Debug("response for unknown pending id, dropping", "id", id)
			return nil
		}

		if resp.Error != nil {
			p.result <- callResult{err: fmt.Errorf("%s", resp.Error.Message)}
			return nil
		}
		p.result <- callResult{raw: resp.Result}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		c.logger.Debug("read loop ended", "error", err)
	}
}

// responseIDToInt recovers the integer request id from a response's raw id
// field since jsonrpc.ID does not expose its numeric value directly.
func responseIDToInt(resp *jsonrpc.Response) (int64, bool) {
	raw, err := json.Marshal(resp.ID)
	if err != nil {
		return 0, false
	}
	s := strings.Trim(string(raw), `"`)
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// monitorExit waits for the child process to exit and fails every pending
// request terminally. Process exit is never followed by a reconnect
// attempt; subsequent calls observe ErrClosed.
func (c *Client) monitorExit() {
	err := c.cmd.Wait()
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)
	c.mu.Unlock()

	c.state.Store(int32(Closed))
	close(c.done)

	for _, p := range pending {
		p.timer.Stop()
		p.result <- callResult{err: fmt.Errorf("%w: %v", ErrClosed, err)}
	}
	c.logger.Info("upstream process exited", "error", err)
}

// Disconnect signals the child to exit, closes the writer, and fails every
// pending request terminally. Safe to call more than once.
func (c *Client) Disconnect() error {
	if c.State() == Closed {
		return nil
	}

	var errs []error
	if c.cmd != nil && c.cmd.Process != nil {
		if err := gracefulStop(c.cmd.Process); err != nil {
			errs = append(errs, err)
		}
	}
	if c.stdin != nil {
		if err := c.stdin.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// stderrLogWriter forwards a child's stderr to structured logs line by
// line instead of the gateway's own stderr, per §4.1 ("drained and ignored
// except for logging").
type stderrLogWriter struct {
	logger   *slog.Logger
	upstream string
}

func (w *stderrLogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		w.logger.Debug("upstream stderr", "upstream", w.upstream, "line", line)
	}
	return len(p), nil
}
