package deepagent

import (
	"context"
	"time"
)

// StepUpdate is one element of a Streamer progress stream: either a stamped
// StreamEvent from the agent or a stream-level failure converted to data.
type StepUpdate struct {
	Event StreamEvent `json:"event"`
	// Err is the agent's terminal error, set only on the final update.
	Err error `json:"-"`
	// Timestamp marks when the update was observed.
	Timestamp time.Time `json:"timestamp"`
}

// Streamer wraps a StreamingAgent and exposes its execution as a plain
// receive channel of timestamped updates. Agent failures never escape as
// errors mid-stream; they arrive as a final error-typed update so consumers
// can render progress and failures uniformly.
type Streamer struct {
	agent StreamingAgent
}

// NewStreamer creates a Streamer over the given agent.
func NewStreamer(agent StreamingAgent) *Streamer {
	return &Streamer{agent: agent}
}

// Stream runs the agent and returns a channel of progress updates.
// The channel is closed when execution completes. The final update carries
// the agent's error, if any.
func (s *Streamer) Stream(ctx context.Context, task AgentTask) <-chan StepUpdate {
	out := make(chan StepUpdate, 16)
	events := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		type execResult struct {
			err error
		}
		done := make(chan execResult, 1)
		go func() {
			_, err := s.agent.ExecuteStream(ctx, task, events)
			done <- execResult{err}
		}()

		for ev := range events {
			out <- StepUpdate{Event: ev, Timestamp: time.Now()}
		}

		if res := <-done; res.err != nil {
			out <- StepUpdate{
				Event:     StreamEvent{Type: EventError, Content: res.err.Error()},
				Err:       res.err,
				Timestamp: time.Now(),
			}
		}
	}()
	return out
}

// Invoke runs the agent without streaming. Convenience for callers that hold
// a Streamer but want the blocking result.
func (s *Streamer) Invoke(ctx context.Context, task AgentTask) (AgentResult, error) {
	return s.agent.Execute(ctx, task)
}
