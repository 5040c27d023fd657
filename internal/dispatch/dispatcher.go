// Package dispatch implements the gateway's core routing decision: given a
// (category, operation, params) triple it resolves the registry mapping,
// consults the cache, drives the upstream client through the retry
// wrapper, and records a metrics entry for every outcome of an operation
// that resolves to a registry mapping. An unknown operation and a recovered
// panic are returned without a metrics entry.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcpgateway/gateway-mcp/internal/batch"
	"github.com/mcpgateway/gateway-mcp/internal/cache"
	"github.com/mcpgateway/gateway-mcp/internal/metrics"
	"github.com/mcpgateway/gateway-mcp/internal/registry"
	"github.com/mcpgateway/gateway-mcp/internal/retry"
)

// ToolCaller is the subset of *upstreamclient.Client the dispatcher needs.
// Accepting the interface rather than the concrete type lets tests drive
// the dispatcher without spawning a real upstream process.
type ToolCaller interface {
	CallTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error)
}

// ClientLookup resolves an upstream name to its live client. Absent or
// disabled upstreams return ok=false, which dispatch surfaces as
// SERVER_UNAVAILABLE.
type ClientLookup func(upstreamName string) (ToolCaller, bool)

// BatchOp is one entry of a batch_operations call.
type BatchOp struct {
	Category  string
	Operation string
	Params    map[string]any
}

// Dispatcher wires the registry, cache, retry policy, batch executor, and
// metrics recorder together. It holds shared read-only access to the
// registry and shared concurrent access to the cache and metrics; it does
// not own any upstream client directly.
type Dispatcher struct {
	registry     *registry.Registry
	clients      ClientLookup
	cache        *cache.Cache
	retryPolicy  retry.Policy
	batchExec    *batch.Executor
	metrics      *metrics.Recorder
	logger       *slog.Logger
}

// New constructs a Dispatcher.
func New(reg *registry.Registry, clients ClientLookup, c *cache.Cache, retryPolicy retry.Policy, batchExec *batch.Executor, rec *metrics.Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:    reg,
		clients:     clients,
		cache:       c,
		retryPolicy: retryPolicy,
		batchExec:   batchExec,
		metrics:     rec,
		logger:      logger,
	}
}

// Dispatch routes one non-batch operation through steps 2-7: resolve the
// mapping, check the cache, run the retry-wrapped upstream call, compact
// and optionally cache the result, and record a metrics entry. A panic
// anywhere in this path is recovered and surfaced as INTERNAL_ERROR so it
// never escapes across the meta-tool boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, category, op string, params map[string]any) (result BridgeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(CodeInternalError, fmt.Sprintf("internal error: %v", r), Meta{OpName: op})
		}
	}()

	start := time.Now()

	mapping, ok := d.registry.Resolve(category, op)
	if !ok {
		res := failure(CodeInvalidOperation, fmt.Sprintf("unknown operation %q in category %q", op, category), Meta{OpName: op})
		return res
	}

	meta := Meta{Upstream: mapping.UpstreamName, OpName: op}

	client, ok := d.clients(mapping.UpstreamName)
	if !ok {
		d.record(meta, false, start)
		return failure(CodeServerUnavailable, fmt.Sprintf("upstream %q is not available", mapping.UpstreamName), meta)
	}

	var cacheKey string
	if mapping.Cacheable {
		key, err := cache.Key(mapping.UpstreamName, mapping.UpstreamTool, params)
		if err == nil {
			cacheKey = key
			if body, hit := d.cache.Get(cacheKey); hit {
				meta.Cached = true
				meta.DurationMs = 0
				meta.TokensEstimate = metrics.TokensEstimate(len(body))
				d.record(meta, true, start)
				return BridgeResult{Success: true, Body: body, Meta: meta}
			}
		}
	}

	callResult := retry.Do(ctx, func(ctx context.Context) (any, error) {
		return client.CallTool(ctx, mapping.UpstreamTool, params)
	}, d.retryPolicy)

	meta.DurationMs = time.Since(start).Milliseconds()

	if !callResult.Success {
		d.record(meta, false, start)
		return failure(CodeExecutionError, errMessage(callResult.Err), meta)
	}

	raw, _ := callResult.Value.(json.RawMessage)
	compacted, err := compactResponse(raw)
	if err != nil {
		d.record(meta, false, start)
		return failure(CodeInternalError, fmt.Sprintf("compacting response: %v", err), meta)
	}

	if mapping.Cacheable && cacheKey != "" {
		d.cache.Set(cacheKey, compacted)
	}

	meta.TokensEstimate = metrics.TokensEstimate(len(compacted))
	d.record(meta, true, start)
	return BridgeResult{Success: true, Body: compacted, Meta: meta}
}

// DispatchBatch routes a batch_operations call through the batch executor.
// An operation whose category is itself "batch" fails with
// INVALID_OPERATION rather than recursing.
func (d *Dispatcher) DispatchBatch(ctx context.Context, ops []BatchOp) ([]BridgeResult, batch.Summary) {
	anyOps := make([]any, len(ops))
	for i, op := range ops {
		anyOps[i] = op
	}

	outcomes, summary := d.batchExec.Execute(anyOps, func(op any) batch.Outcome {
		bo := op.(BatchOp)

		if bo.Category == registry.BatchCategory {
			res := failure(CodeInvalidOperation, "nested batch operations are not supported", Meta{OpName: bo.Operation})
			return batch.Outcome{Success: false, Value: res, Err: fmt.Errorf("%s", res.Error.Message)}
		}

		res := d.Dispatch(ctx, bo.Category, bo.Operation, bo.Params)
		if !res.Success {
			msg := "dispatch failed"
			if res.Error != nil {
				msg = res.Error.Message
			}
			return batch.Outcome{Success: false, Value: res, Err: fmt.Errorf("%s", msg)}
		}
		return batch.Outcome{Success: true, Value: res, TokensEstimate: res.Meta.TokensEstimate}
	})

	results := make([]BridgeResult, len(outcomes))
	for i, o := range outcomes {
		if res, ok := o.Value.(BridgeResult); ok {
			results[i] = res
			continue
		}
		results[i] = failure(CodeExecutionError, o.Err.Error(), Meta{OpName: ops[i].Operation})
	}
	return results, summary
}

func (d *Dispatcher) record(meta Meta, success bool, start time.Time) {
	if d.metrics == nil {
		return
	}
	durationMs := meta.DurationMs
	if durationMs == 0 && !meta.Cached {
		durationMs = time.Since(start).Milliseconds()
	}
	d.metrics.Record(metrics.OperationRecord{
		Upstream:       meta.Upstream,
		OpName:         meta.OpName,
		DurationMs:     durationMs,
		TokensEstimate: meta.TokensEstimate,
		Cached:         meta.Cached,
		Success:        success,
		Timestamp:      start,
	})
}

func errMessage(err error) string {
	if err == nil {
		return "unknown execution error"
	}
	return err.Error()
}
