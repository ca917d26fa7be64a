package deepagent

import "encoding/json"

// Tool-call payloads arrive from the engine in several shapes: a slice of
// pending calls, a state fragment, a bare call, or a loosely-typed map.
// Classification happens once here at the boundary; everything downstream
// works with concrete ToolCall values.

// ExtractToolCalls normalizes an engine payload into its pending tool calls.
// Unrecognized shapes yield nil rather than an error.
func ExtractToolCalls(input any) []ToolCall {
	switch v := input.(type) {
	case []ToolCall:
		return v
	case ToolCall:
		return []ToolCall{v}
	case *ToolCall:
		if v != nil {
			return []ToolCall{*v}
		}
	case *State:
		if v != nil {
			return v.ToolCalls
		}
	case State:
		return v.ToolCalls
	case map[string]any:
		if raw, ok := v["tool_calls"]; ok {
			return callsFromAny(raw)
		}
		// A bare mapping is treated as a single tool-call-shaped value.
		return []ToolCall{callFromMap(v)}
	case []any:
		return callsFromAny(v)
	}
	return nil
}

// ExtractToolCall returns the first pending call from an engine payload.
// Malformed input never fails: it degrades to a synthetic "unknown" call
// with a freshly generated short id and empty arguments.
func ExtractToolCall(input any) ToolCall {
	calls := ExtractToolCalls(input)
	if len(calls) == 0 {
		return fallbackCall()
	}
	tc := calls[0]
	if tc.Name == "" {
		tc.Name = "unknown"
	}
	if tc.ID == "" {
		tc.ID = ShortID()
	}
	if len(tc.Args) == 0 {
		tc.Args = json.RawMessage("{}")
	}
	return tc
}

func fallbackCall() ToolCall {
	return ToolCall{ID: ShortID(), Name: "unknown", Args: json.RawMessage("{}")}
}

// callsFromAny converts a loosely-typed sequence into tool calls.
// Non-mapping elements degrade to the synthetic fallback call.
func callsFromAny(raw any) []ToolCall {
	switch seq := raw.(type) {
	case []ToolCall:
		return seq
	case []map[string]any:
		calls := make([]ToolCall, 0, len(seq))
		for _, m := range seq {
			calls = append(calls, callFromMap(m))
		}
		return calls
	case []any:
		calls := make([]ToolCall, 0, len(seq))
		for _, el := range seq {
			if m, ok := el.(map[string]any); ok {
				calls = append(calls, callFromMap(m))
			} else if tc, ok := el.(ToolCall); ok {
				calls = append(calls, tc)
			} else {
				calls = append(calls, fallbackCall())
			}
		}
		return calls
	}
	return nil
}

// callFromMap builds a ToolCall from a tool-call-shaped mapping.
func callFromMap(m map[string]any) ToolCall {
	tc := ToolCall{Args: json.RawMessage("{}")}
	if s, ok := m["name"].(string); ok && s != "" {
		tc.Name = s
	} else {
		tc.Name = "unknown"
	}
	if s, ok := m["id"].(string); ok && s != "" {
		tc.ID = s
	} else {
		tc.ID = ShortID()
	}
	switch args := m["args"].(type) {
	case json.RawMessage:
		if len(args) > 0 {
			tc.Args = args
		}
	case string:
		if args != "" {
			tc.Args = json.RawMessage(args)
		}
	case map[string]any:
		if data, err := json.Marshal(args); err == nil {
			tc.Args = data
		}
	}
	return tc
}
