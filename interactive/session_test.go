package interactive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	deepagent "github.com/yukot/deepagent"
)

// scriptedAgent records tasks and replies with a fixed output.
type scriptedAgent struct {
	tasks  []deepagent.AgentTask
	output string
	err    error
	stream bool
}

func (a *scriptedAgent) Name() string        { return "research-agent" }
func (a *scriptedAgent) Description() string { return "answers research questions" }

func (a *scriptedAgent) Execute(_ context.Context, task deepagent.AgentTask) (deepagent.AgentResult, error) {
	a.tasks = append(a.tasks, task)
	if a.err != nil {
		return deepagent.AgentResult{}, a.err
	}
	return deepagent.AgentResult{Output: a.output}, nil
}

// streamingAgent adds ExecuteStream on top of scriptedAgent.
type streamingAgent struct {
	scriptedAgent
}

func (a *streamingAgent) ExecuteStream(_ context.Context, task deepagent.AgentTask, ch chan<- deepagent.StreamEvent) (deepagent.AgentResult, error) {
	defer close(ch)
	a.tasks = append(a.tasks, task)
	if a.err != nil {
		return deepagent.AgentResult{}, a.err
	}
	ch <- deepagent.StreamEvent{Type: deepagent.EventToolCallStart, Name: "internet_search"}
	ch <- deepagent.StreamEvent{Type: deepagent.EventToolCallResult, Name: "internet_search", Content: "3 results"}
	ch <- deepagent.StreamEvent{Type: deepagent.EventTextDelta, Content: a.output}
	return deepagent.AgentResult{Output: a.output}, nil
}

func runSession(t *testing.T, agent deepagent.Agent, input string) (string, *Session) {
	t.Helper()
	var out bytes.Buffer
	s := New(agent, WithInput(strings.NewReader(input)), WithOutput(&out))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), s
}

func TestQuitCommandEndsSession(t *testing.T) {
	agent := &scriptedAgent{output: "ignored"}
	out, _ := runSession(t, agent, "quit\n")
	if !strings.Contains(out, "Session ended.") {
		t.Errorf("output = %s", out)
	}
	if len(agent.tasks) != 0 {
		t.Errorf("agent should not run on quit, tasks = %v", agent.tasks)
	}
}

func TestEOFEndsSession(t *testing.T) {
	out, _ := runSession(t, &scriptedAgent{}, "")
	if !strings.Contains(out, "Goodbye.") {
		t.Errorf("output = %s", out)
	}
}

func TestBlankLinesSkipped(t *testing.T) {
	agent := &scriptedAgent{output: "answer"}
	_, _ = runSession(t, agent, "\n   \nq\n")
	if len(agent.tasks) != 0 {
		t.Errorf("blank lines ran the agent: %v", agent.tasks)
	}
}

func TestTurnCarriesThreadID(t *testing.T) {
	agent := &scriptedAgent{output: "the answer"}
	out, s := runSession(t, agent, "what is go\nexit\n")

	if len(agent.tasks) != 1 {
		t.Fatalf("tasks = %d", len(agent.tasks))
	}
	if agent.tasks[0].Input != "what is go" {
		t.Errorf("input = %q", agent.tasks[0].Input)
	}
	if agent.tasks[0].TaskThreadID() != s.ThreadID() {
		t.Errorf("thread id mismatch: %q vs %q", agent.tasks[0].TaskThreadID(), s.ThreadID())
	}
	if !strings.Contains(out, "the answer") {
		t.Errorf("answer not printed: %s", out)
	}
}

func TestResetAllocatesNewThread(t *testing.T) {
	agent := &scriptedAgent{output: "ok"}
	var out bytes.Buffer
	s := New(agent, WithInput(strings.NewReader("first\n/reset\nsecond\nq\n")), WithOutput(&out))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(agent.tasks) != 2 {
		t.Fatalf("tasks = %d", len(agent.tasks))
	}
	if agent.tasks[0].TaskThreadID() == agent.tasks[1].TaskThreadID() {
		t.Error("reset did not change thread id")
	}
	if !strings.Contains(out.String(), "Session reset.") {
		t.Errorf("output = %s", out.String())
	}
}

func TestStreamingPreviewAndStepCount(t *testing.T) {
	agent := &streamingAgent{scriptedAgent{output: "streamed answer"}}
	out, _ := runSession(t, agent, "topic\nq\n")

	for _, want := range []string{
		"-> tool internet_search",
		"<- internet_search",
		"3 results",
		"Completed 1 step(s)",
		"streamed answer",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestTurnErrorPrintedNotFatal(t *testing.T) {
	agent := &scriptedAgent{err: errors.New("provider down")}
	out, _ := runSession(t, agent, "ask\nq\n")
	if !strings.Contains(out, "Error: provider down") {
		t.Errorf("output = %s", out)
	}
	if !strings.Contains(out, "Session ended.") {
		t.Error("session should continue after a turn error")
	}
}
