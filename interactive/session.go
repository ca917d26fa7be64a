// Package interactive runs a line-oriented terminal session over an Agent,
// with streamed step previews and session-reset commands.
package interactive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	deepagent "github.com/yukot/deepagent"
)

// Prompt is printed before each user turn.
const Prompt = "You> "

// previewLimit caps how much of a message or tool result is echoed per step.
const previewLimit = 300

// Session is an interactive REPL bound to one conversation thread.
type Session struct {
	agent    deepagent.Agent
	in       io.Reader
	out      io.Writer
	logger   *slog.Logger
	threadID string
}

// Option configures a Session.
type Option func(*Session)

// WithInput sets the input reader. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(s *Session) { s.in = r }
}

// WithOutput sets the output writer. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a Session over the given agent with a fresh thread.
func New(agent deepagent.Agent, opts ...Option) *Session {
	s := &Session{
		agent:    agent,
		in:       os.Stdin,
		out:      os.Stdout,
		logger:   slog.New(slog.DiscardHandler),
		threadID: deepagent.NewID(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ThreadID returns the current conversation thread id.
func (s *Session) ThreadID() string { return s.threadID }

// Run reads user turns until EOF, a quit command, or ctx cancellation.
func (s *Session) Run(ctx context.Context) error {
	s.banner()

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out, "\nGoodbye.")
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "/exit", "exit", "quit", "q":
			fmt.Fprintln(s.out, "Session ended.")
			return nil
		case "/reset", "reset":
			s.threadID = deepagent.NewID()
			fmt.Fprintln(s.out, "Session reset.")
			continue
		}

		if err := s.runTurn(ctx, input); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
			s.logger.Error("turn failed", "thread_id", s.threadID, "err", err)
		}
	}
}

func (s *Session) banner() {
	fmt.Fprintf(s.out, "%s — %s\n", s.agent.Name(), s.agent.Description())
	fmt.Fprintln(s.out, "Type a question, or 'quit' to exit, '/reset' to start a new thread.")
}

// runTurn executes one user turn, previewing streamed steps when the agent
// supports streaming.
func (s *Session) runTurn(ctx context.Context, input string) error {
	task := deepagent.AgentTask{
		Input:   input,
		Context: map[string]any{deepagent.ContextThreadID: s.threadID},
	}
	start := time.Now()

	sa, ok := s.agent.(deepagent.StreamingAgent)
	if !ok {
		result, err := s.agent.Execute(ctx, task)
		if err != nil {
			return err
		}
		s.printResult(result, 0, time.Since(start))
		return nil
	}

	var result deepagent.AgentResult
	steps := 0
	for update := range deepagent.NewStreamer(sa).Stream(ctx, task) {
		if update.Err != nil {
			return update.Err
		}
		steps += s.preview(update.Event, &result)
	}
	s.printResult(result, steps, time.Since(start))
	return nil
}

// preview renders one stream event and returns 1 when it counts as a step.
func (s *Session) preview(ev deepagent.StreamEvent, result *deepagent.AgentResult) int {
	switch ev.Type {
	case deepagent.EventToolCallStart:
		fmt.Fprintf(s.out, "  -> tool %s\n", ev.Name)
		return 0
	case deepagent.EventToolCallResult:
		fmt.Fprintf(s.out, "  <- %s (%.2fs): %s\n",
			ev.Name, ev.Duration.Seconds(), truncate(ev.Content, previewLimit))
		return 1
	case deepagent.EventAgentStart:
		fmt.Fprintf(s.out, "  >> sub-agent %s\n", ev.Name)
		return 0
	case deepagent.EventAgentFinish:
		fmt.Fprintf(s.out, "  << sub-agent %s done\n", ev.Name)
		return 1
	case deepagent.EventTextDelta:
		result.Output += ev.Content
		return 0
	case deepagent.EventUpdate:
		fmt.Fprintf(s.out, "  .. %s\n", truncate(ev.Content, previewLimit))
		return 1
	}
	return 0
}

// printResult prints the final answer, step count, timing, and token usage.
func (s *Session) printResult(result deepagent.AgentResult, steps int, elapsed time.Duration) {
	fmt.Fprintf(s.out, "\nCompleted %d step(s) in %.2fs\n", steps, elapsed.Seconds())
	if result.Output != "" {
		fmt.Fprintf(s.out, "\n------ answer ------\n%s\n--------------------\n", result.Output)
	} else {
		fmt.Fprintln(s.out, "[no answer produced]")
	}
	if total := result.Usage.InputTokens + result.Usage.OutputTokens; total > 0 {
		fmt.Fprintf(s.out, "Tokens: %d in / %d out\n",
			result.Usage.InputTokens, result.Usage.OutputTokens)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
