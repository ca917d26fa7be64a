package deepagent

import (
	"context"
	"fmt"
	"sync"
)

// Executor is the engine's tool-execution step: it takes a tool-call payload
// in one of the shapes understood by ExtractToolCalls and returns either a
// message-shaped result or an arbitrary value. Decorators (audit.Node) wrap
// this interface without caring which engine sits underneath.
type Executor interface {
	Invoke(ctx context.Context, input any) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, input any) (any, error)

func (f ExecutorFunc) Invoke(ctx context.Context, input any) (any, error) {
	return f(ctx, input)
}

// maxParallelCalls caps concurrent tool-call goroutines so a fan-out turn
// can't overwhelm external services.
const maxParallelCalls = 10

// ToolExecutor is a registry-backed Executor. It resolves each pending tool
// call against the registry, runs calls in parallel, and folds the results
// into the same shape the input arrived in: a *State for state fragments and
// slices, a *ToolMessage for a bare call.
//
// With HandleToolErrors set (the default), tool failures become error-status
// messages the LLM can read and recover from. When unset, the first failure
// aborts the invocation.
type ToolExecutor struct {
	registry         *ToolRegistry
	handleToolErrors bool
}

// ToolExecutorOption configures a ToolExecutor.
type ToolExecutorOption func(*ToolExecutor)

// PropagateToolErrors makes tool failures abort the invocation instead of
// being folded into error-status messages.
func PropagateToolErrors() ToolExecutorOption {
	return func(e *ToolExecutor) { e.handleToolErrors = false }
}

// NewToolExecutor creates a ToolExecutor over the given registry.
func NewToolExecutor(registry *ToolRegistry, opts ...ToolExecutorOption) *ToolExecutor {
	e := &ToolExecutor{registry: registry, handleToolErrors: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invoke executes all pending tool calls in the payload.
func (e *ToolExecutor) Invoke(ctx context.Context, input any) (any, error) {
	calls := ExtractToolCalls(input)
	if len(calls) == 0 {
		calls = []ToolCall{ExtractToolCall(input)}
	}

	messages, err := e.runCalls(ctx, calls)
	if err != nil {
		return nil, err
	}

	// A bare call collapses to a bare message; everything else is state-shaped.
	switch input.(type) {
	case ToolCall, *ToolCall:
		return messages[0], nil
	}
	return &State{Messages: messages}, nil
}

// runCalls executes calls against the registry, single call inline and
// multiple calls on a bounded worker pool.
func (e *ToolExecutor) runCalls(ctx context.Context, calls []ToolCall) ([]*ToolMessage, error) {
	if len(calls) == 1 {
		msg, err := e.runOne(ctx, calls[0])
		if err != nil {
			return nil, err
		}
		return []*ToolMessage{msg}, nil
	}

	messages := make([]*ToolMessage, len(calls))
	errs := make([]error, len(calls))

	type workItem struct {
		idx int
		tc  ToolCall
	}
	workCh := make(chan workItem, len(calls))
	for i, tc := range calls {
		workCh <- workItem{idx: i, tc: tc}
	}
	close(workCh)

	numWorkers := min(len(calls), maxParallelCalls)
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for range numWorkers {
		go func() {
			defer wg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					errs[w.idx] = ctx.Err()
					continue
				}
				messages[w.idx], errs[w.idx] = e.runOne(ctx, w.tc)
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// runOne executes a single call, applying the error-handling policy.
func (e *ToolExecutor) runOne(ctx context.Context, tc ToolCall) (*ToolMessage, error) {
	result, err := e.registry.Execute(ctx, tc.Name, tc.Args)
	if err != nil {
		if !e.handleToolErrors {
			return nil, fmt.Errorf("tool %s: %w", tc.Name, err)
		}
		return NewToolErrorMessage(tc.ID, tc.Name, "error: "+err.Error()), nil
	}
	if result.Error != "" {
		return NewToolErrorMessage(tc.ID, tc.Name, result.Error), nil
	}
	return NewToolMessage(tc.ID, tc.Name, result.Content), nil
}
