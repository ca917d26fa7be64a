// Package deepagent is a thin harness around an external agent-graph engine.
//
// It provides the plumbing a deep-research agent deployment needs without
// reimplementing the engine itself: tool-call shapes and a tool registry,
// an Executor abstraction for the engine's tool-execution step, an auditing
// decorator for that step (package audit), an HTTP facade with SSE streaming
// (package facade), a Redis-backed session layer (package redisclient), and
// interactive terminal helpers (package interactive).
//
// # Quick Start
//
// Wire a tool registry into an audited executor and serve it:
//
//	registry := deepagent.NewToolRegistry()
//	registry.Add(search.New(apiKey))
//
//	exec := deepagent.NewToolExecutor(registry)
//	node, err := audit.NewNode(exec, audit.Config{Workspace: workspace.Resolve()})
//
//	agent := deepagent.NewExecutorAgent("researcher", node, "internet_search")
//	http.ListenAndServe(addr, facade.New(agent, threads).Routes())
//
// # Core Interfaces
//
//   - [Executor] — the engine's tool-execution step (decorated by audit.Node)
//   - [Tool] — pluggable capability for LLM function calling
//   - [Agent] / [StreamingAgent] — composable work unit served by the facade
//   - [Tracer] — optional span seam; observer provides an OTEL implementation
//
// The planning loop, message-state reducers, and checkpointing belong to the
// external engine; this module only depends on their call and response shapes.
package deepagent
