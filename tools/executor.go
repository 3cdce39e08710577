// Tool executor.
//
// Information Hiding:
// - Timeout enforcement hidden
// - Error-to-result conversion hidden
// - Call ordering guarantees encapsulated

package tools

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// DefaultCallTimeout bounds a single tool call when the executor is built
// with a zero timeout.
const DefaultCallTimeout = 30 * time.Second

// Executor runs tool calls against a registry. Calls execute sequentially in
// request order, each under its own timeout. There are no retries: the model
// sees every failure and decides what to do next.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// NewExecutor creates an executor over the given registry. A zero timeout
// falls back to DefaultCallTimeout.
func NewExecutor(registry *Registry, timeout time.Duration, log zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Executor{registry: registry, timeout: timeout, log: log}
}

// Execute runs one tool call. A missing tool fails with ToolNotFoundError;
// handler errors are folded into the result, not returned.
func (e *Executor) Execute(ctx context.Context, call llm.ToolUseBlock) (ToolResult, error) {
	tool, exists := e.registry.Get(call.Name)
	if !exists {
		return ToolResult{}, &ToolNotFoundError{Name: call.Name}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	output, err := tool.Handler(callCtx, call.Parameters)
	elapsed := time.Since(start)

	if err != nil {
		e.log.Debug().
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("tool call failed")
		if callCtx.Err() != nil && ctx.Err() == nil {
			return FailureResultf("tool %q timed out after %s: %w", call.Name, e.timeout, err), nil
		}
		return FailureResult(err), nil
	}

	e.log.Debug().
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Dur("elapsed", elapsed).
		Msg("tool call succeeded")
	return SuccessResult(output), nil
}

// ExecuteAll runs every call in order and returns one tool message per call,
// each carrying the originating call id. Execution stops early only when the
// surrounding context is done or a call names an unknown tool.
func (e *Executor) ExecuteAll(ctx context.Context, calls []llm.ToolUseBlock) ([]llm.Message, error) {
	results := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := e.Execute(ctx, call)
		if err != nil {
			return nil, err
		}
		results = append(results, llm.NewToolMessage(call.ID, result.Text()))
	}
	return results, nil
}
