package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	deepagent "github.com/yukot/deepagent"
)

// Record statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// PathLabel prefixes the workspace-relative audit reference prepended to
// textual tool output.
const PathLabel = "audit file (workspace-relative): "

// workspaceMarker is the token that anchors workspace-relative paths.
const workspaceMarker = "workspace"

// noWorkspacePath is the literal fallback surfaced when the audit file path
// does not contain the workspace marker. Downstream consumers see this text
// in place of a path; it is not machine-parseable on purpose.
const noWorkspacePath = "no workspace path resolved"

// Record is one durable audit entry per tool invocation. All keys are always
// present in the serialized form; Output and Error are null when inapplicable.
type Record struct {
	ToolCallID      string          `json:"tool_call_id"`
	ToolName        string          `json:"tool_name"`
	Timestamp       string          `json:"timestamp"`
	ExecutionTimeMS float64         `json:"execution_time_ms"`
	Input           json.RawMessage `json:"input"`
	Output          any             `json:"output"`
	Error           *string         `json:"error"`
	Status          string          `json:"status"`
}

// newRecord builds the Record for a completed invocation. Status derives
// from execErr: failed iff the wrapped call returned an error.
func newRecord(tc deepagent.ToolCall, output any, execErr error, elapsedMS float64) Record {
	rec := Record{
		ToolCallID:      tc.ID,
		ToolName:        tc.Name,
		Timestamp:       time.Now().Format(time.RFC3339Nano),
		ExecutionTimeMS: elapsedMS,
		Input:           tc.Args,
		Output:          output,
		Status:          StatusSuccess,
	}
	if execErr != nil {
		msg := execErr.Error()
		rec.Error = &msg
		rec.Status = StatusFailed
		rec.Output = nil
	}
	return rec
}

// writeRecord persists the per-call JSON file and appends the compact
// summary line for the day. The two artifacts are independent: a failure
// between them can leave one without the other.
func writeRecord(dir, path string, rec Record) error {
	pretty, err := marshalRecord(rec, true)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	line, err := marshalRecord(rec, false)
	if err != nil {
		return fmt.Errorf("encode summary line: %w", err)
	}
	summary := filepath.Join(dir, "summary_"+time.Now().Format("20060102")+".jsonl")
	f, err := os.OpenFile(summary, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", summary, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append %s: %w", summary, err)
	}
	return nil
}

// marshalRecord encodes a record as UTF-8 JSON with non-ASCII preserved.
// Pretty form uses 2-space indent for the per-call file; compact form is a
// single newline-terminated line for the summary log.
func marshalRecord(rec Record, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// attachAuditPath extracts the output content from a successful result and
// rewrites textual content in place to carry a reference to its own audit
// record. Returns the extracted content as it was before the rewrite (that
// is what the record stores) and the result to hand back to the caller.
//
// Dispatch by result shape: a message rewrites its content; a state fragment
// rewrites only its first message; a plain string is returned rewritten;
// any other value passes through untouched.
func attachAuditPath(result any, path string) (output any, out any) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case *deepagent.ToolMessage:
		orig := v.Content
		v.Content = prependPathRef(orig, path)
		return orig, v
	case *deepagent.State:
		if len(v.Messages) > 0 && v.Messages[0] != nil {
			orig := v.Messages[0].Content
			v.Messages[0].Content = prependPathRef(orig, path)
			return orig, v
		}
		return nil, v
	case string:
		return v, prependPathRef(v, path)
	default:
		return v, v
	}
}

// prependPathRef prepends the workspace-relative audit reference line.
func prependPathRef(content, path string) string {
	return PathLabel + workspaceRelative(path) + "\n" + content
}

// workspaceRelative returns the suffix of path starting at the first
// occurrence of the workspace marker, or the literal fallback text when the
// marker is absent.
func workspaceRelative(path string) string {
	if i := strings.Index(path, workspaceMarker); i >= 0 {
		return path[i:]
	}
	return noWorkspacePath
}
