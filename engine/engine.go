// Package engine drives the generation loop: it reads conversation history
// from the forest, calls a provider adapter, executes requested tools, and
// persists every turn back into the forest while emitting a canonical event
// stream.
//
// Information Hiding:
// - Loop state machine and iteration accounting hidden
// - Event delivery and cancellation plumbing hidden
// - Tool exposure policy (active-name filtering) internalized
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arcreflex/loom-engine-sub001/forest"
	"github.com/arcreflex/loom-engine-sub001/llm"
	"github.com/arcreflex/loom-engine-sub001/tools"
)

// DefaultMaxToolIterations bounds the tool loop when options leave it unset.
const DefaultMaxToolIterations = 5

// Options are the per-generation knobs. The zero value requests one
// completion with vendor-default sampling and the default tool budget.
type Options struct {
	// N is the completion count. Values below 1 mean 1. Tool calling is
	// permitted only when N == 1.
	N int
	// Temperature and MaxTokens are passed through to the provider; nil
	// means vendor default.
	Temperature *float64
	MaxTokens   *int
	// MaxToolIterations bounds request/tool rounds in one session. Values
	// below 1 mean DefaultMaxToolIterations.
	MaxToolIterations int
	// ToolChoice controls whether the model may, must, or must not call
	// tools. Ignored when no tools are active.
	ToolChoice llm.ToolChoice
}

func (o Options) completions() int {
	if o.N < 1 {
		return 1
	}
	return o.N
}

func (o Options) toolBudget() int {
	if o.MaxToolIterations < 1 {
		return DefaultMaxToolIterations
	}
	return o.MaxToolIterations
}

// Engine is the generation orchestrator. Safe for concurrent use; sessions
// share no mutable state beyond the forest store.
type Engine struct {
	providers *llm.Registry
	store     forest.Store
	tools     *tools.Registry
	executor  *tools.Executor
	log       zerolog.Logger
}

// New creates an engine over the given providers, forest store and tool
// registry. toolTimeout bounds a single tool call; zero means the executor
// default.
func New(providers *llm.Registry, store forest.Store, registry *tools.Registry, toolTimeout time.Duration, log zerolog.Logger) *Engine {
	return &Engine{
		providers: providers,
		store:     store,
		tools:     registry,
		executor:  tools.NewExecutor(registry, toolTimeout, log),
		log:       log,
	}
}

// GenerateStream starts a generation session below nodeID and returns its
// event stream. The session reads the node's path for history and system
// prompt, then loops provider calls and tool execution until a terminal
// state. Only tools named in activeToolNames are exposed to the provider.
//
// The returned stream emits progress events followed by exactly one DoneEvent
// or ErrorEvent, then closes. Cancel via ctx or Stream.Abort.
func (e *Engine) GenerateStream(ctx context.Context, nodeID forest.NodeID, provider llm.ProviderName, model string, opts Options, activeToolNames []string) *Stream {
	ctx, cancel := context.WithCancelCause(ctx)
	s := newStream(cancel)
	go e.run(ctx, s, nodeID, provider, model, opts, activeToolNames)
	return s
}

func (e *Engine) run(ctx context.Context, s *Stream, nodeID forest.NodeID, providerName llm.ProviderName, model string, opts Options, activeToolNames []string) {
	n := opts.completions()
	if len(activeToolNames) > 0 && n != 1 {
		s.finish(ErrorEvent{Err: &ToolsWithFanOutError{N: n}})
		return
	}

	defs, err := e.tools.Definitions(activeToolNames)
	if err != nil {
		s.finish(ErrorEvent{Err: err})
		return
	}

	provider, err := e.providers.Get(providerName)
	if err != nil {
		s.finish(ErrorEvent{Err: err})
		return
	}

	path, err := e.store.GetPath(ctx, nil, nodeID)
	if err != nil {
		s.finish(ErrorEvent{Err: err})
		return
	}

	branch := branchInput{
		provider:     provider,
		providerName: providerName,
		model:        model,
		system:       path.Root.Config.SystemPrompt,
		history:      path.Messages(),
		tools:        defs,
		opts:         opts,
		parentID:     nodeID,
		source: forest.SourceInfo{
			Kind:     forest.SourceModel,
			Provider: providerName,
			Model:    model,
			Tools:    activeToolNames,
		},
	}

	e.log.Debug().
		Str("provider", string(providerName)).
		Str("model", model).
		Str("node", string(nodeID)).
		Int("n", n).
		Int("tools", len(defs)).
		Msg("generation session started")

	if n == 1 {
		final, err := e.runBranch(ctx, s, branch)
		if err != nil {
			s.finish(ErrorEvent{Err: err})
			return
		}
		s.finish(DoneEvent{Final: []*forest.ChildNode{final}})
		return
	}

	// Fan-out: n independent branches under the same parent. Tools are
	// rejected above, so each branch is a single provider call.
	finals := make([]*forest.ChildNode, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			final, err := e.runBranch(gctx, s, branch)
			if err != nil {
				return err
			}
			finals[i] = final
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.finish(ErrorEvent{Err: err})
		return
	}
	s.finish(DoneEvent{Final: finals})
}

type branchInput struct {
	provider     llm.Provider
	providerName llm.ProviderName
	model        string
	system       string
	history      []llm.Message
	tools        []llm.ToolDefinition
	opts         Options
	parentID     forest.NodeID
	source       forest.SourceInfo
}

// runBranch drives one completion to its terminal assistant node. Each
// iteration: provider call, persist assistant turn, execute tools, persist
// results, repeat. The branch suspends only at the provider call; every
// write is preceded by a cancellation check so no node writes occur after an
// abort is observed.
func (e *Engine) runBranch(ctx context.Context, s *Stream, in branchInput) (*forest.ChildNode, error) {
	params := llm.Parameters{Temperature: in.opts.Temperature, MaxTokens: in.opts.MaxTokens}
	budget := in.opts.toolBudget()
	history := in.history
	parentID := in.parentID

	for iteration := 0; ; iteration++ {
		req := llm.Request{
			SystemMessage: in.system,
			Messages:      history,
			Model:         in.model,
			Parameters:    params,
			Tools:         in.tools,
			ToolChoice:    in.opts.ToolChoice,
		}
		if len(in.tools) == 0 {
			req.ToolChoice = ""
		}

		if ctx.Err() != nil {
			return nil, abortCause(ctx)
		}
		if !s.emit(ctx, ProviderRequestEvent{Provider: in.providerName, Request: req}) {
			return nil, abortCause(ctx)
		}

		resp, err := in.provider.Generate(ctx, req)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, abortCause(ctx)
			}
			return nil, err
		}
		if !s.emit(ctx, ProviderResponseEvent{Provider: in.providerName, Response: resp}) {
			return nil, abortCause(ctx)
		}

		if ctx.Err() != nil {
			return nil, abortCause(ctx)
		}
		node, err := e.store.Append(ctx, parentID, []llm.Message{resp.Message}, forest.NodeMetadata{Source: in.source})
		if err != nil {
			return nil, err
		}
		if !s.emit(ctx, AssistantNodeEvent{Node: node}) {
			return nil, abortCause(ctx)
		}

		calls := resp.Message.ToolUses()
		if len(calls) == 0 {
			return node, nil
		}

		results, err := e.executor.ExecuteAll(ctx, calls)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, abortCause(ctx)
			}
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, abortCause(ctx)
		}
		tip, err := e.store.Append(ctx, node.ID, results, forest.NodeMetadata{Source: in.source})
		if err != nil {
			return nil, err
		}
		if !s.emit(ctx, ToolResultNodeEvent{Node: tip}) {
			return nil, abortCause(ctx)
		}

		if iteration+1 >= budget {
			e.log.Debug().
				Int("limit", budget).
				Msg("tool loop budget exhausted")
			return nil, &ToolLoopLimitError{Limit: budget}
		}

		history = append(append(append([]llm.Message(nil), history...), resp.Message), results...)
		parentID = tip.ID
	}
}

// abortCause translates a cancelled context into the stream's terminal abort
// condition, preserving the reason passed to Stream.Abort.
func abortCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	var abort *AbortError
	if errors.As(cause, &abort) {
		return abort
	}
	return &AbortError{Cause: cause}
}
