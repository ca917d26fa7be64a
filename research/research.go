// Package research assembles the deep-research agent: instructions,
// sub-agent specs, and the wiring that hands them to a graph engine.
package research

import (
	"encoding/json"
	"fmt"
	"log/slog"

	deepagent "github.com/yukot/deepagent"
)

// AgentName is the identifier of the top-level research agent.
const AgentName = "research-agent"

// DefaultRecursionLimit bounds graph-engine step recursion.
const DefaultRecursionLimit = 1000

// Instructions is the system prompt for the top-level research agent.
const Instructions = `You are an expert researcher. Your job is to conduct thorough research and then write a polished report.

The first thing you should do is write the original user question to question.txt so you have a record of it.

Use the research-agent to conduct deep research. It will respond to your questions and topics with detailed answers. Break a large topic into sub-questions and dispatch one research-agent per sub-question rather than passing several questions at once.

When you have enough findings, write them to final_report.md. You can call the critique-agent to get a critique of the report, then edit the report based on the critique and repeat until you are satisfied.

Only edit the report once at a time; parallel edits conflict. The final report must be detailed, well structured, and cite the sources the research turned up.`

// SubResearchPrompt drives the dedicated research sub-agent.
const SubResearchPrompt = `You are a dedicated researcher. Your job is to conduct research based on the question you are given.

Conduct thorough research using internet_search and then reply with a detailed answer. Only your FINAL message is passed back to the caller, who has no knowledge of anything except that message, so your final reply must be a complete, self-contained report of your findings with sources.`

// CritiquePrompt drives the report-critique sub-agent.
const CritiquePrompt = `You are a dedicated editor tasked with critiquing a research report.

Read the report in final_report.md and the original question in question.txt. Check that the report fully answers the question, that its structure is clear, that claims are supported by cited sources, and that the depth matches the topic. Respond with a detailed critique listing concrete improvements. Do not edit the report yourself.`

// SubagentSpec describes a sub-agent available to the graph engine.
type SubagentSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	Tools       []string `json:"tools,omitempty"`
}

// ResearchSubagent researches one topic at a time via internet_search.
var ResearchSubagent = SubagentSpec{
	Name:        AgentName,
	Description: "Used to research more in depth questions. Only give this researcher one topic at a time. Do not pass multiple sub questions to this researcher. Instead, break down a large topic into the necessary components and call multiple research agents in parallel, one for each sub question.",
	Prompt:      SubResearchPrompt,
	Tools:       []string{"internet_search"},
}

// CritiqueSubagent reviews the draft report against the recorded question.
var CritiqueSubagent = SubagentSpec{
	Name:        "critique-agent",
	Description: "Used to critique the final report. Give this agent some information about how you want it to critique the report.",
	Prompt:      CritiquePrompt,
}

// AgentSpec is everything an engine needs to build the research agent.
type AgentSpec struct {
	Name           string
	Description    string
	Instructions   string
	Tools          []deepagent.ToolDefinition
	Subagents      []SubagentSpec
	RecursionLimit int
}

// EngineBuilder turns an AgentSpec and an executor into a runnable Agent.
// The executor already carries the audit interception; engines must route
// all tool calls through it.
type EngineBuilder func(spec AgentSpec, exec deepagent.Executor) (deepagent.Agent, error)

// Service builds and holds the research agent.
type Service struct {
	registry *deepagent.ToolRegistry
	exec     deepagent.Executor
	builder  EngineBuilder
	logger   *slog.Logger
	limit    int
}

// Option configures a Service.
type Option func(*Service)

// WithEngineBuilder replaces the default single-step engine with a real
// graph engine.
func WithEngineBuilder(b EngineBuilder) Option {
	return func(s *Service) { s.builder = b }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecursionLimit overrides DefaultRecursionLimit.
func WithRecursionLimit(n int) Option {
	return func(s *Service) { s.limit = n }
}

// New creates a Service over the given tool registry and (audited) executor.
func New(registry *deepagent.ToolRegistry, exec deepagent.Executor, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		exec:     exec,
		builder:  defaultBuilder,
		logger:   slog.New(slog.DiscardHandler),
		limit:    DefaultRecursionLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spec returns the research AgentSpec with the registry's tools attached.
func (s *Service) Spec() AgentSpec {
	return AgentSpec{
		Name:           AgentName,
		Description:    "Conducts deep research and writes a polished, critiqued report.",
		Instructions:   Instructions,
		Tools:          s.registry.AllDefinitions(),
		Subagents:      []SubagentSpec{CritiqueSubagent, ResearchSubagent},
		RecursionLimit: s.limit,
	}
}

// Agent builds the research agent through the configured engine.
func (s *Service) Agent() (deepagent.Agent, error) {
	spec := s.Spec()
	s.logger.Info("building research agent",
		"tools", len(spec.Tools), "subagents", len(spec.Subagents))
	agent, err := s.builder(spec, s.exec)
	if err != nil {
		return nil, fmt.Errorf("research: build agent: %w", err)
	}
	s.logger.Info("research agent ready", "agent", agent.Name())
	return agent, nil
}

// defaultBuilder is the stand-in engine: every task becomes one
// internet_search call through the audited executor.
func defaultBuilder(spec AgentSpec, exec deepagent.Executor) (deepagent.Agent, error) {
	if !hasTool(spec.Tools, "internet_search") {
		return nil, fmt.Errorf("research: internet_search tool not registered")
	}
	return deepagent.NewExecutorAgent(spec.Name, exec, "internet_search",
		deepagent.WithDescription(spec.Description),
		deepagent.WithTaskArgs(func(input string) json.RawMessage {
			data, _ := json.Marshal(map[string]any{"query": input, "max_results": 5})
			return data
		}),
	), nil
}

func hasTool(defs []deepagent.ToolDefinition, name string) bool {
	for _, d := range defs {
		if d.Name == name {
			return true
		}
	}
	return false
}
