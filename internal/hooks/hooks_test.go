package hooks

import (
	"errors"
	"testing"
)

func TestEventField(t *testing.T) {
	event := &Event{
		SessionID: "sess-1",
		Type:      EventPreToolUse,
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": "ls", "task_id": "t1"},
		Prompt:    "run it",
	}

	tests := []struct {
		key   string
		want  any
		found bool
	}{
		{"type", EventPreToolUse, true},
		{"tool", "Bash", true},
		{"session_id", "sess-1", true},
		{"prompt", "run it", true},
		{"command", "ls", true},
		{"task_id", "t1", true},
		{"missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := event.Field(tt.key)
			if ok != tt.found {
				t.Fatalf("Field(%q) found = %v, want %v", tt.key, ok, tt.found)
			}
			if ok && got != tt.want {
				t.Errorf("Field(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestEventField_NoToolInput(t *testing.T) {
	event := &Event{Type: EventStop}

	if got, ok := event.Field("tool"); !ok || got != "" {
		t.Errorf("Field(tool) = %v, %v, want empty string present", got, ok)
	}
	if _, ok := event.Field("anything"); ok {
		t.Error("lookup in nil tool input should report not found")
	}
}

func TestResponseBlock(t *testing.T) {
	resp := NewResponse()
	if resp.Blocked() {
		t.Fatal("new response should allow")
	}

	resp.Block("first reason")
	if !resp.Blocked() {
		t.Fatal("response should block after Block")
	}
	if resp.Reason != "first reason" {
		t.Errorf("Reason = %q", resp.Reason)
	}

	resp.Block("second reason")
	if resp.Reason != "first reason; second reason" {
		t.Errorf("joined Reason = %q", resp.Reason)
	}
}

func TestResponseContext(t *testing.T) {
	resp := NewResponse()
	resp.AddContext("one")
	resp.AddContext("")
	resp.AddContext("two")

	if len(resp.Context) != 2 {
		t.Fatalf("Context len = %d, want 2", len(resp.Context))
	}
	if got := resp.InjectedContext(); got != "one\ntwo" {
		t.Errorf("InjectedContext = %q", got)
	}
}

func TestBlockedError(t *testing.T) {
	err := Blocked("too early to stop")

	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("Blocked() did not produce a BlockError: %v", err)
	}
	if be.Reason != "too early to stop" {
		t.Errorf("Reason = %q", be.Reason)
	}
	if err.Error() != "blocked: too early to stop" {
		t.Errorf("Error() = %q", err.Error())
	}
}
