package hooks

import "strings"

// Decision is the aggregate verdict for one event.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// Response is the single aggregated answer for one event across every
// workflow evaluated for it.
type Response struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
	Context  []string `json:"context,omitempty"`
}

// NewResponse returns an allowing response with no context.
func NewResponse() *Response {
	return &Response{Decision: DecisionAllow}
}

// Block switches the decision to block and records the reason. Reasons
// from multiple blocks are joined.
func (r *Response) Block(reason string) {
	r.Decision = DecisionBlock
	if r.Reason == "" {
		r.Reason = reason
		return
	}
	if reason != "" {
		r.Reason = r.Reason + "; " + reason
	}
}

// Blocked reports whether the decision is block.
func (r *Response) Blocked() bool {
	return r.Decision == DecisionBlock
}

// AddContext appends one piece of injected context. Empty strings are
// dropped.
func (r *Response) AddContext(text string) {
	if text == "" {
		return
	}
	r.Context = append(r.Context, text)
}

// InjectedContext returns all injected context joined for display.
func (r *Response) InjectedContext() string {
	return strings.Join(r.Context, "\n")
}

// BlockError is returned by behaviors and trigger actions that want the
// event blocked. The evaluator converts it into a block decision instead
// of treating it as an execution failure.
type BlockError struct {
	Reason string
}

func (e *BlockError) Error() string {
	return "blocked: " + e.Reason
}

// Blocked returns an error carrying a block decision with the given
// reason.
func Blocked(reason string) error {
	return &BlockError{Reason: reason}
}
