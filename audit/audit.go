// Package audit decorates an engine's tool-execution step with durable
// per-call audit records.
//
// Node wraps a [deepagent.Executor]: every invocation produces exactly one
// JSON audit file plus one line in a daily JSONL summary, and message-shaped
// results are rewritten so the agent sees a workspace-relative reference back
// to the record of the call that produced them. The wrapped call's outcome is
// never altered — errors pass through unchanged, auditing only observes.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	deepagent "github.com/yukot/deepagent"
)

// DefaultDirName is the audit directory created under the workspace root
// when no explicit directory is configured.
const DefaultDirName = "audit_logs"

// Config configures a Node.
type Config struct {
	// Tools lists the definitions of the tools the node fronts.
	// Informational: exposed via Tools() and logged at construction.
	Tools []deepagent.ToolDefinition
	// Dir is the audit directory. Defaults to {Workspace}/audit_logs.
	Dir string
	// Workspace is the workspace root directory name. Used to derive the
	// default Dir and surfaced in workspace-relative path references.
	Workspace string
	// Name is the node's display name. Defaults to "tools".
	Name string
	// Console receives the one-line per-invocation status report.
	// Defaults to os.Stdout.
	Console io.Writer
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *slog.Logger
	// Tracer, when set, emits one span per audited invocation.
	Tracer deepagent.Tracer
}

// Node is an auditing Executor decorator. It holds no mutable state after
// construction; concurrent invocations each write their own record.
type Node struct {
	exec    deepagent.Executor
	tools   []deepagent.ToolDefinition
	dir     string
	name    string
	console io.Writer
	logger  *slog.Logger
	tracer  deepagent.Tracer
}

// NewNode creates a Node wrapping exec. The audit directory is created
// (including parents) if absent; constructing two nodes against the same
// directory is safe.
func NewNode(exec deepagent.Executor, cfg Config) (*Node, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(cfg.Workspace, DefaultDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir %s: %w", dir, err)
	}

	name := cfg.Name
	if name == "" {
		name = "tools"
	}
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("audit node ready", "name", name, "dir", dir, "tools", len(cfg.Tools))
	return &Node{
		exec:    exec,
		tools:   cfg.Tools,
		dir:     dir,
		name:    name,
		console: console,
		logger:  logger,
		tracer:  cfg.Tracer,
	}, nil
}

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

// Dir returns the audit directory.
func (n *Node) Dir() string { return n.dir }

// Tools returns the definitions of the tools the node fronts.
func (n *Node) Tools() []deepagent.ToolDefinition { return n.tools }

// Invoke executes the wrapped step exactly once and persists one audit
// record whether it succeeds or fails.
//
// The record's file path is computed from the invocation start time and the
// call identity before delegation, so the successful result can be rewritten
// to reference its own record. Errors from the wrapped call always propagate
// unchanged; if persisting the record fails after a tool failure, the
// persistence error is logged and swallowed so it cannot displace the
// primary one. On the success path a persistence failure is fatal for the
// invocation.
func (n *Node) Invoke(ctx context.Context, input any) (any, error) {
	tc := deepagent.ExtractToolCall(input)
	start := time.Now()
	path := n.filePath(tc.Name, tc.ID, start)

	var span deepagent.Span
	if n.tracer != nil {
		ctx, span = n.tracer.Start(ctx, "audit.invoke",
			deepagent.StringAttr("tool.name", tc.Name),
			deepagent.StringAttr("tool.call_id", tc.ID))
		defer span.End()
	}

	result, execErr := n.exec.Invoke(ctx, input)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	var output any
	if execErr == nil {
		output, result = attachAuditPath(result, path)
	}

	rec := newRecord(tc, output, execErr, elapsed)
	if persistErr := writeRecord(n.dir, path, rec); persistErr != nil {
		if execErr != nil {
			// The tool failure is the primary signal; losing one audit
			// record must not mask it.
			n.logger.Error("audit write failed after tool error",
				"path", path, "tool", tc.Name, "err", persistErr)
		} else {
			if span != nil {
				span.Error(persistErr)
			}
			return nil, fmt.Errorf("audit: %w", persistErr)
		}
	}

	n.report(tc, execErr, elapsed, path)
	if execErr != nil {
		if span != nil {
			span.Error(execErr)
		}
		return nil, execErr
	}
	if span != nil {
		span.SetAttr(deepagent.Float64Attr("tool.elapsed_ms", elapsed))
	}
	return result, nil
}

// filePath derives the per-call audit file path from the invocation start
// time, the tool name, and the call id. Including the id keeps records for
// same-named calls within the same second distinguishable on disk.
func (n *Node) filePath(toolName, callID string, start time.Time) string {
	return filepath.Join(n.dir, fmt.Sprintf("%s_%s_%s.json", start.Format("150405"), toolName, callID))
}

// report prints the one-line console status. Observability only.
func (n *Node) report(tc deepagent.ToolCall, execErr error, elapsedMS float64, path string) {
	status := "✅ SUCCESS"
	if execErr != nil {
		status = "❌ FAILED"
	}
	id := tc.ID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Fprintf(n.console, "\n[AUDIT] %s Tool: %s | ID: %s | Time: %.2fms\n[AUDIT] Log saved to: %s\n",
		status, tc.Name, id, elapsedMS, path)

	n.logger.Info("tool call audited",
		"node", n.name,
		"tool", tc.Name,
		"call_id", tc.ID,
		"status", statusOf(execErr),
		"elapsed_ms", elapsedMS,
		"path", path)
}

func statusOf(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusSuccess
}
