// Package spawn decides whether a session may launch another agent.
package spawn

import (
	"context"
	"fmt"
	"time"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// Reasons returned on denial.
const (
	ReasonDepthExceeded  = "max spawn depth exceeded"
	ReasonBudgetExceeded = "daily budget exceeded"
	ReasonWouldExceed    = "would exceed budget"
)

// budgetWindow is the rolling window "daily" spend is summed over.
const budgetWindow = 24 * time.Hour

// SessionReader is the slice of the session store the gate reads from.
type SessionReader interface {
	GetSession(id string) (*models.Session, error)
	SpentSince(cutoff time.Time) (float64, error)
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the spawn may proceed.
	Allowed bool `json:"allowed"`
	// Reason explains a denial; empty when allowed.
	Reason string `json:"reason,omitempty"`
	// ParentDepth is the depth of the requesting session.
	ParentDepth int `json:"parent_depth"`
}

// Gate enforces the spawn depth limit and the daily cost budget. It
// holds no claim or isolation state, so it can be called as a pre-check
// before any resources are allocated.
type Gate struct {
	sessions  SessionReader
	maxDepth  int
	budgetUSD float64
}

// NewGate creates a gate. A budget of exactly 0 disables budget checks.
func NewGate(sessions SessionReader, maxDepth int, budgetUSD float64) *Gate {
	return &Gate{
		sessions:  sessions,
		maxDepth:  maxDepth,
		budgetUSD: budgetUSD,
	}
}

// CanSpawn checks whether parentSessionID may launch a child agent with
// the given estimated cost. estimatedCost may be 0 when unknown.
func (g *Gate) CanSpawn(ctx context.Context, parentSessionID string, estimatedCost float64) (Decision, error) {
	parent, err := g.sessions.GetSession(parentSessionID)
	if err != nil {
		return Decision{}, fmt.Errorf("look up parent session: %w", err)
	}

	d := Decision{ParentDepth: parent.Depth}

	if parent.Depth+1 > g.maxDepth {
		d.Reason = ReasonDepthExceeded
		return d, nil
	}

	if g.budgetUSD > 0 {
		spent, err := g.sessions.SpentSince(time.Now().Add(-budgetWindow))
		if err != nil {
			return Decision{}, fmt.Errorf("sum recent spend: %w", err)
		}
		if spent >= g.budgetUSD {
			d.Reason = ReasonBudgetExceeded
			return d, nil
		}
		if spent+estimatedCost > g.budgetUSD {
			d.Reason = ReasonWouldExceed
			return d, nil
		}
	}

	d.Allowed = true
	return d, nil
}
