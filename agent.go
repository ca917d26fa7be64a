package deepagent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Agent is a unit of work that takes a task and returns a result.
// The deep-agent graph engine provides the real implementation; this module
// only consumes the interface (facade, interactive session, tests).
type Agent interface {
	// Name returns the agent's identifier.
	Name() string
	// Description returns a human-readable description of what the agent does.
	Description() string
	// Execute runs the agent on the given task and returns a result.
	Execute(ctx context.Context, task AgentTask) (AgentResult, error)
}

// StreamingAgent is an optional capability for agents that support event
// streaming. Check via type assertion: if sa, ok := agent.(StreamingAgent); ok { ... }
type StreamingAgent interface {
	Agent
	// ExecuteStream runs the agent like Execute, but emits StreamEvent values
	// into ch throughout execution. The channel is closed when streaming
	// completes.
	ExecuteStream(ctx context.Context, task AgentTask, ch chan<- StreamEvent) (AgentResult, error)
}

// AgentTask is the input to an Agent.
type AgentTask struct {
	// Input is the natural language task description.
	Input string
	// Context carries optional metadata (thread ID, user ID, etc.).
	// Use the Context* constants as keys and the Task* accessors for
	// type-safe reads.
	Context map[string]any
}

// Context key constants for AgentTask.Context.
const (
	// ContextThreadID identifies the conversation thread.
	ContextThreadID = "thread_id"
	// ContextUserID identifies the user.
	ContextUserID = "user_id"
)

// TaskThreadID returns the thread ID from task context, or "" if absent.
func (t AgentTask) TaskThreadID() string {
	if v, ok := t.Context[ContextThreadID].(string); ok {
		return v
	}
	return ""
}

// TaskUserID returns the user ID from task context, or "" if absent.
func (t AgentTask) TaskUserID() string {
	if v, ok := t.Context[ContextUserID].(string); ok {
		return v
	}
	return ""
}

// AgentResult is the output of an Agent.
type AgentResult struct {
	// Output is the agent's final response text.
	Output string `json:"output"`
	// Usage tracks aggregate token usage across all LLM calls.
	Usage Usage `json:"usage"`
	// Steps records per-tool execution traces in chronological order.
	// Nil when no tools were called.
	Steps []StepTrace `json:"steps,omitempty"`
}

// StepTrace records the execution of a single tool call or agent delegation.
type StepTrace struct {
	// Name is the tool or sub-agent name (e.g. "internet_search", "critique-agent").
	Name string `json:"name"`
	// Type is "tool" or "agent".
	Type string `json:"type"`
	// Input is the tool arguments or sub-agent task, truncated to 200 characters.
	Input string `json:"input"`
	// Output is the result content, truncated to 500 characters.
	Output string `json:"output"`
	// Duration is the wall-clock time for this step.
	Duration time.Duration `json:"duration"`
}

// NewStepTrace builds a StepTrace with input/output truncation applied.
func NewStepTrace(name, stepType, input, output string, d time.Duration) StepTrace {
	return StepTrace{
		Name:     name,
		Type:     stepType,
		Input:    truncateStr(input, 200),
		Output:   truncateStr(output, 500),
		Duration: d,
	}
}

// truncateStr truncates a string to n runes.
func truncateStr(s string, n int) string {
	// Byte length ≤ n guarantees rune count ≤ n, avoiding the []rune
	// allocation for short/ASCII strings.
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// --- Executor-backed agent ---

// ExecutorAgent adapts an Executor and a default tool into the Agent
// interface: each task becomes a single tool call routed through the
// executor. It performs no planning — useful for tests, smoke deployments,
// and as the stand-in until a real graph engine is wired in.
type ExecutorAgent struct {
	name        string
	description string
	exec        Executor
	tool        string
	argsFor     func(input string) json.RawMessage
}

// NewExecutorAgent creates an ExecutorAgent that routes every task to the
// named tool with `{"query": <input>}` arguments. Use WithTaskArgs to
// customize the argument mapping.
func NewExecutorAgent(name string, exec Executor, tool string, opts ...ExecutorAgentOption) *ExecutorAgent {
	a := &ExecutorAgent{
		name:        name,
		description: "single-step agent over tool " + tool,
		exec:        exec,
		tool:        tool,
		argsFor: func(input string) json.RawMessage {
			data, _ := json.Marshal(map[string]string{"query": input})
			return data
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExecutorAgentOption configures an ExecutorAgent.
type ExecutorAgentOption func(*ExecutorAgent)

// WithTaskArgs sets the function mapping task input to tool arguments.
func WithTaskArgs(fn func(input string) json.RawMessage) ExecutorAgentOption {
	return func(a *ExecutorAgent) { a.argsFor = fn }
}

// WithDescription sets the agent description.
func WithDescription(s string) ExecutorAgentOption {
	return func(a *ExecutorAgent) { a.description = s }
}

func (a *ExecutorAgent) Name() string        { return a.name }
func (a *ExecutorAgent) Description() string { return a.description }

// Execute routes the task through the executor as one tool call.
func (a *ExecutorAgent) Execute(ctx context.Context, task AgentTask) (AgentResult, error) {
	return a.run(ctx, task, nil)
}

// ExecuteStream is Execute with tool-call start/result events.
func (a *ExecutorAgent) ExecuteStream(ctx context.Context, task AgentTask, ch chan<- StreamEvent) (AgentResult, error) {
	defer close(ch)
	return a.run(ctx, task, ch)
}

func (a *ExecutorAgent) run(ctx context.Context, task AgentTask, ch chan<- StreamEvent) (AgentResult, error) {
	tc := ToolCall{ID: ShortID(), Name: a.tool, Args: a.argsFor(task.Input)}
	if ch != nil {
		ch <- StreamEvent{Type: EventInputReceived, Content: task.Input}
		ch <- StreamEvent{Type: EventToolCallStart, Name: tc.Name, Args: tc.Args}
	}

	start := time.Now()
	result, err := a.exec.Invoke(ctx, []ToolCall{tc})
	if err != nil {
		return AgentResult{}, fmt.Errorf("agent %s: %w", a.name, err)
	}
	output := contentOf(result)
	trace := NewStepTrace(tc.Name, "tool", string(tc.Args), output, time.Since(start))

	if ch != nil {
		ch <- StreamEvent{Type: EventToolCallResult, Name: tc.Name, Content: output, Duration: trace.Duration}
		ch <- StreamEvent{Type: EventTextDelta, Content: output}
	}
	return AgentResult{Output: output, Steps: []StepTrace{trace}}, nil
}

// contentOf extracts the textual content from an executor result.
func contentOf(result any) string {
	switch v := result.(type) {
	case *ToolMessage:
		return v.Content
	case *State:
		if len(v.Messages) > 0 {
			return v.Messages[0].Content
		}
	case string:
		return v
	}
	return fmt.Sprintf("%v", result)
}
