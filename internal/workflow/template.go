package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// templateData builds the data model observer set templates render
// against. Instance variables shadow session variables under .vars; the
// event is exposed under lowercase keys matching the observer match
// vocabulary.
func templateData(ec *EventContext) (map[string]any, error) {
	sessionVars, err := ec.Store.GetSessionVariables(ec.Event.SessionID)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]any, len(sessionVars)+len(ec.Instance.Variables))
	for k, v := range sessionVars {
		vars[k] = v
	}
	for k, v := range ec.Instance.Variables {
		vars[k] = v
	}

	return map[string]any{
		"event": map[string]any{
			"session_id": ec.Event.SessionID,
			"type":       ec.Event.Type,
			"tool":       ec.Event.ToolName,
			"input":      ec.Event.ToolInput,
			"prompt":     ec.Event.Prompt,
		},
		"vars":     vars,
		"session":  sessionVars,
		"workflow": ec.Def.Name,
		"step":     ec.Instance.CurrentStep,
	}, nil
}

// RenderParam renders one declared action parameter against the event
// context, using the same data model as observer set values.
func RenderParam(ec *EventContext, value any) (any, error) {
	data, err := templateData(ec)
	if err != nil {
		return nil, err
	}
	return renderValue(value, data)
}

// renderValue renders a declared observer set value. Non-strings and
// strings without template markers pass through as literals; rendered
// strings are re-typed so "3" stays a number and "true" a bool.
func renderValue(value any, data map[string]any) (any, error) {
	text, ok := value.(string)
	if !ok || !strings.Contains(text, "{{") {
		return value, nil
	}

	tmpl, err := template.New("set").Funcs(template.FuncMap{
		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", text, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template %q: %w", text, err)
	}

	result := strings.TrimSpace(buf.String())
	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}
	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}
	return result, nil
}
