package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	deepagent "github.com/yukot/deepagent"
)

// newTestNode builds a Node over the given executor with the audit dir under
// a workspace-named directory so path references resolve.
func newTestNode(t *testing.T, exec deepagent.Executor) (*Node, string) {
	t.Helper()
	ws := filepath.Join(t.TempDir(), "workspace")
	node, err := NewNode(exec, Config{Workspace: ws, Console: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return node, ws
}

// readOnlyRecord loads the single per-call record in dir.
func readOnlyRecord(t *testing.T, dir string) (Record, string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var path string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), "summary_") {
			if path != "" {
				t.Fatalf("expected one record file, found %s and %s", path, e.Name())
			}
			path = filepath.Join(dir, e.Name())
		}
	}
	if path == "" {
		t.Fatal("no record file written")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return rec, path
}

func summaryLines(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "summary_*.jsonl"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one summary file, got %v (err %v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestInvokeWritesRecordAndSummary(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return "done", nil
	})
	node, _ := newTestNode(t, exec)

	call := []deepagent.ToolCall{{ID: "call-1", Name: "echo", Args: json.RawMessage(`{"x":1}`)}}
	if _, err := node.Invoke(context.Background(), call); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	rec, path := readOnlyRecord(t, node.Dir())
	if rec.ToolCallID != "call-1" || rec.ToolName != "echo" {
		t.Errorf("record identity = %q/%q", rec.ToolCallID, rec.ToolName)
	}
	if rec.Status != StatusSuccess || rec.Error != nil {
		t.Errorf("status = %q, error = %v", rec.Status, rec.Error)
	}
	if !strings.Contains(filepath.Base(path), "_echo_call-1.json") {
		t.Errorf("file name %q missing tool and call id", filepath.Base(path))
	}

	lines := summaryLines(t, node.Dir())
	if len(lines) != 1 {
		t.Fatalf("summary lines = %d, want 1", len(lines))
	}
	var sum Record
	if err := json.Unmarshal([]byte(lines[0]), &sum); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if sum.ToolCallID != rec.ToolCallID {
		t.Errorf("summary call id %q != record call id %q", sum.ToolCallID, rec.ToolCallID)
	}
}

func TestInvokeErrorPropagatesUnchanged(t *testing.T) {
	timeout := errors.New("upstream timeout")
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return nil, timeout
	})
	node, _ := newTestNode(t, exec)

	_, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: "abc123", Name: "internet_search"}})
	if !errors.Is(err, timeout) {
		t.Fatalf("err = %v, want the executor's error", err)
	}

	rec, _ := readOnlyRecord(t, node.Dir())
	if rec.Status != StatusFailed {
		t.Errorf("status = %q, want failed", rec.Status)
	}
	if rec.Error == nil || *rec.Error != "upstream timeout" {
		t.Errorf("error = %v, want upstream timeout", rec.Error)
	}
	if rec.Output != nil {
		t.Errorf("output = %v, want null", rec.Output)
	}
}

// breakAuditDir replaces the audit directory with a regular file so every
// subsequent record write fails.
func breakAuditDir(t *testing.T, dir string) {
	t.Helper()
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if err := os.WriteFile(dir, []byte("occupied"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestPersistFailureNeverMasksToolError(t *testing.T) {
	timeout := errors.New("upstream timeout")
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return nil, timeout
	})
	node, _ := newTestNode(t, exec)
	breakAuditDir(t, node.Dir())

	_, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: "abc123", Name: "internet_search"}})
	if !errors.Is(err, timeout) {
		t.Fatalf("err = %v, want the executor's error despite the failed write", err)
	}
	if strings.Contains(err.Error(), "audit") {
		t.Errorf("err = %v, persistence failure leaked into the tool error", err)
	}
}

func TestPersistFailureOnSuccessSurfaces(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return "done", nil
	})
	node, _ := newTestNode(t, exec)
	breakAuditDir(t, node.Dir())

	result, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: "abc123", Name: "internet_search"}})
	if err == nil {
		t.Fatal("expected error when the record cannot be written")
	}
	if !strings.HasPrefix(err.Error(), "audit:") {
		t.Errorf("err = %v, want audit-wrapped persistence error", err)
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestInvokeStringResultRewritten(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return "5 results found", nil
	})
	node, _ := newTestNode(t, exec)

	result, err := node.Invoke(context.Background(), []deepagent.ToolCall{
		{ID: "abc123", Name: "internet_search", Args: json.RawMessage(`{"query":"ai","max_results":3}`)},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	got, ok := result.(string)
	if !ok {
		t.Fatalf("result type = %T, want string", result)
	}
	if !strings.HasPrefix(got, PathLabel+"workspace/") {
		t.Errorf("result %q missing workspace-relative reference prefix", got)
	}
	if !strings.HasSuffix(got, "\n5 results found") {
		t.Errorf("result %q does not end with original content", got)
	}

	rec, path := readOnlyRecord(t, node.Dir())
	if rec.Output != "5 results found" {
		t.Errorf("record output = %v, want original unrewritten string", rec.Output)
	}
	var args map[string]any
	if err := json.Unmarshal(rec.Input, &args); err != nil {
		t.Fatalf("unmarshal record input: %v", err)
	}
	if args["query"] != "ai" || args["max_results"] != float64(3) {
		t.Errorf("record input = %v", args)
	}
	if !strings.Contains(filepath.Base(path), "internet_search_abc123") {
		t.Errorf("path %q missing call identity", path)
	}
}

func TestInvokeStateRewritesFirstMessageOnly(t *testing.T) {
	state := &deepagent.State{Messages: []*deepagent.ToolMessage{
		deepagent.NewToolMessage("c1", "echo", "first"),
		deepagent.NewToolMessage("c2", "echo", "second"),
	}}
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return state, nil
	})
	node, _ := newTestNode(t, exec)

	result, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: "c1", Name: "echo"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	got := result.(*deepagent.State)
	if !strings.HasPrefix(got.Messages[0].Content, PathLabel) {
		t.Errorf("first message not rewritten: %q", got.Messages[0].Content)
	}
	if !strings.HasSuffix(got.Messages[0].Content, "\nfirst") {
		t.Errorf("first message lost original content: %q", got.Messages[0].Content)
	}
	if got.Messages[1].Content != "second" {
		t.Errorf("second message touched: %q", got.Messages[1].Content)
	}

	rec, _ := readOnlyRecord(t, node.Dir())
	if rec.Output != "first" {
		t.Errorf("record output = %v, want pre-rewrite content of first message", rec.Output)
	}
}

func TestInvokeToolMessageRewritten(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return deepagent.NewToolMessage("c1", "echo", "hello"), nil
	})
	node, _ := newTestNode(t, exec)

	result, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: "c1", Name: "echo"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	msg := result.(*deepagent.ToolMessage)
	if !strings.HasPrefix(msg.Content, PathLabel) || !strings.HasSuffix(msg.Content, "\nhello") {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestInvokeNonTextResultPassesThrough(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return 42, nil
	})
	node, _ := newTestNode(t, exec)

	result, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: "c1", Name: "echo"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %v, want untouched 42", result)
	}
}

func TestMalformedInputDegradesToUnknown(t *testing.T) {
	for _, input := range []any{
		map[string]any{},
		[]any{"not a mapping"},
		nil,
		"garbage",
	} {
		exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
			return "ok", nil
		})
		node, _ := newTestNode(t, exec)
		if _, err := node.Invoke(context.Background(), input); err != nil {
			t.Fatalf("input %v: Invoke errored: %v", input, err)
		}
		rec, _ := readOnlyRecord(t, node.Dir())
		if rec.ToolName != "unknown" {
			t.Errorf("input %v: tool name = %q, want unknown", input, rec.ToolName)
		}
		if rec.ToolCallID == "" {
			t.Errorf("input %v: missing synthesized call id", input)
		}
	}
}

func TestDirSetupIdempotent(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return nil, nil
	})
	dir := filepath.Join(t.TempDir(), "audit_logs")
	if _, err := NewNode(exec, Config{Dir: dir, Console: &bytes.Buffer{}}); err != nil {
		t.Fatalf("first NewNode: %v", err)
	}
	if _, err := NewNode(exec, Config{Dir: dir, Console: &bytes.Buffer{}}); err != nil {
		t.Fatalf("second NewNode on same dir: %v", err)
	}
}

func TestSameSecondCallsKeepDistinctFiles(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return "ok", nil
	})
	node, _ := newTestNode(t, exec)

	for _, id := range []string{"id-a", "id-b"} {
		if _, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: id, Name: "echo"}}); err != nil {
			t.Fatalf("Invoke %s: %v", id, err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(node.Dir(), "*_echo_*.json"))
	if len(matches) != 2 {
		t.Fatalf("record files = %d, want 2 (no same-second collision)", len(matches))
	}
	if lines := summaryLines(t, node.Dir()); len(lines) != 2 {
		t.Errorf("summary lines = %d, want 2", len(lines))
	}
}

func TestConsoleStatusLine(t *testing.T) {
	exec := deepagent.ExecutorFunc(func(ctx context.Context, input any) (any, error) {
		return "ok", nil
	})
	var console bytes.Buffer
	node, err := NewNode(exec, Config{Dir: filepath.Join(t.TempDir(), "a"), Console: &console})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if _, err := node.Invoke(context.Background(), []deepagent.ToolCall{{ID: "long-id-beyond-8", Name: "echo"}}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	out := console.String()
	if !strings.Contains(out, "SUCCESS") || !strings.Contains(out, "Tool: echo") {
		t.Errorf("console output = %q", out)
	}
	if !strings.Contains(out, "ID: long-id-") {
		t.Errorf("console output %q missing truncated id", out)
	}
}

func TestWorkspaceRelative(t *testing.T) {
	cases := []struct {
		path, want string
	}{
		{"/home/u/workspace/audit_logs/a.json", "workspace/audit_logs/a.json"},
		{"/tmp/elsewhere/a.json", noWorkspacePath},
		{"workspace/a.json", "workspace/a.json"},
	}
	for _, c := range cases {
		if got := workspaceRelative(c.path); got != c.want {
			t.Errorf("workspaceRelative(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestRecordPrettyAndCompactEncoding(t *testing.T) {
	rec := newRecord(deepagent.ToolCall{ID: "id", Name: "搜索", Args: json.RawMessage(`{"q":"你好"}`)}, "结果", nil, 1.5)

	pretty, err := marshalRecord(rec, true)
	if err != nil {
		t.Fatalf("marshal pretty: %v", err)
	}
	if !strings.Contains(string(pretty), "\n  \"tool_name\": \"搜索\"") {
		t.Errorf("pretty form missing 2-space indent or non-ASCII: %s", pretty)
	}

	compact, err := marshalRecord(rec, false)
	if err != nil {
		t.Fatalf("marshal compact: %v", err)
	}
	if c := strings.Count(string(compact), "\n"); c != 1 {
		t.Errorf("compact form newlines = %d, want single trailing", c)
	}
	if !strings.Contains(string(compact), "你好") {
		t.Errorf("compact form escaped non-ASCII: %s", compact)
	}
}

func TestRecordErrorFieldsNullability(t *testing.T) {
	ok := newRecord(deepagent.ToolCall{ID: "a", Name: "t"}, "out", nil, 1)
	data, _ := marshalRecord(ok, false)
	if !strings.Contains(string(data), `"error":null`) {
		t.Errorf("success record should carry null error: %s", data)
	}

	failed := newRecord(deepagent.ToolCall{ID: "a", Name: "t"}, "out", errors.New("boom"), 1)
	data, _ = marshalRecord(failed, false)
	if !strings.Contains(string(data), `"output":null`) || !strings.Contains(string(data), `"status":"failed"`) {
		t.Errorf("failed record fields wrong: %s", data)
	}
}
