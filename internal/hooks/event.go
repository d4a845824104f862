// Package hooks defines the event and response model exchanged with the
// platform hook adapter. The adapter translates platform-specific hook
// payloads into Events on the way in and Responses back out; everything
// inside the daemon speaks only this model.
package hooks

// Lifecycle event types. Observers key on these via their `on` field.
const (
	EventSessionStart = "session_start"
	EventUserPrompt   = "user_prompt"
	EventPreToolUse   = "pre_tool_use"
	EventPostToolUse  = "post_tool_use"
	EventStop         = "stop"
	EventSessionEnd   = "session_end"
)

// Event is one lifecycle event for a session.
type Event struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	Prompt    string         `json:"prompt,omitempty"`
}

// Field resolves a match key to the event field it addresses. The
// reserved keys map to the struct fields ("tool" is the tool name);
// anything else is looked up in the tool input payload.
func (e *Event) Field(key string) (any, bool) {
	switch key {
	case "type":
		return e.Type, true
	case "tool":
		return e.ToolName, true
	case "session_id":
		return e.SessionID, true
	case "prompt":
		return e.Prompt, true
	}
	value, ok := e.ToolInput[key]
	return value, ok
}
