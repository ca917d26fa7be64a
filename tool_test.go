package deepagent

import (
	"context"
	"encoding/json"
	"testing"
)

type multiTool struct{}

func (multiTool) Definitions() []ToolDefinition {
	return []ToolDefinition{
		{Name: "alpha", Description: "first"},
		{Name: "beta", Description: "second"},
	}
}

func (multiTool) Execute(_ context.Context, name string, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{Content: "ran " + name}, nil
}

func TestRegistryDispatch(t *testing.T) {
	r := NewToolRegistry()
	r.Add(multiTool{})

	if !r.Has("alpha") || !r.Has("beta") || r.Has("gamma") {
		t.Error("Has misreported registrations")
	}
	if defs := r.AllDefinitions(); len(defs) != 2 {
		t.Errorf("defs = %+v", defs)
	}

	res, err := r.Execute(context.Background(), "beta", nil)
	if err != nil || res.Content != "ran beta" {
		t.Errorf("res = %+v, err = %v", res, err)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewToolRegistry()
	res, err := r.Execute(context.Background(), "missing", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Error != "unknown tool: missing" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestToolMessageConstructors(t *testing.T) {
	ok := NewToolMessage("c1", "echo", "hi")
	if ok.Status != "success" || ok.ToolCallID != "c1" || ok.Content != "hi" {
		t.Errorf("msg = %+v", ok)
	}
	bad := NewToolErrorMessage("c2", "echo", "boom")
	if bad.Status != "error" || bad.Content != "boom" {
		t.Errorf("msg = %+v", bad)
	}
}
