package telemetry

import (
	"context"
	"time"

	"github.com/petasbytes/budgetchat/internal/metrics"
	"github.com/petasbytes/budgetchat/internal/windowing"
)

// Event names.
const (
	EventLocalFeatures  = "local_features"
	EventBudgetEnforced = "budget_enforced"
	EventTurnCompleted  = "turn_completed"
)

const featuresVersion = "1"

// EmitLocalFeatures records size features of the user's input for the turn in ctx.
func (e *Emitter) EmitLocalFeatures(ctx context.Context, user string) {
	if !e.Enabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	e.Emit(EventLocalFeatures, map[string]any{
		"turn_id":          turnID,
		"features_version": featuresVersion,
		"user":             metrics.CountFeatures(user),
	})
}

// EmitBudget records the outcome of a budget enforcement over a log that
// ended up with messages entries.
func (e *Emitter) EmitBudget(ctx context.Context, s windowing.Stats, messages int) {
	if !e.Enabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	e.Emit(EventBudgetEnforced, map[string]any{
		"turn_id":     turnID,
		"budget":      s.Budget,
		"before":      s.Before,
		"total":       s.Total,
		"evicted":     s.Evicted,
		"over_budget": s.OverBudget,
		"messages":    messages,
	})
}

// EmitTurnCompleted records a finished turn. reply is reduced to its features.
func (e *Emitter) EmitTurnCompleted(ctx context.Context, d time.Duration, reply, status string) {
	if !e.Enabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	e.Emit(EventTurnCompleted, map[string]any{
		"turn_id":     turnID,
		"status":      status,
		"duration_ms": d.Milliseconds(),
		"reply":       metrics.CountFeatures(reply),
	})
}
