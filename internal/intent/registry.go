package intent

import (
	"sync"

	"orderpipe/pkg/types"
)

// Registry is the single source of truth mapping an intentId to the plan
// created for it. All lookups and inserts are idempotent on IntentID: a
// second Register call for an intent already known returns the existing
// plan instead of creating a duplicate, which is how the pipeline survives
// upstream retries/duplicate signal delivery.
type Registry struct {
	mu    sync.RWMutex
	plans map[string]*types.PlanContext
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plans: make(map[string]*types.PlanContext)}
}

// Register inserts a freshly created plan, unless one for the same
// IntentID already exists — in which case the existing plan is returned
// and created is false.
func (r *Registry) Register(plan *types.PlanContext) (existing *types.PlanContext, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.plans[plan.PlanID]; ok {
		return p, false
	}
	r.plans[plan.PlanID] = plan
	return plan, true
}

// Get returns the plan for an intentId, if any.
func (r *Registry) Get(intentID string) (*types.PlanContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[intentID]
	return p, ok
}

// All returns a snapshot of every known plan. Order is unspecified.
func (r *Registry) All() []*types.PlanContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.PlanContext, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	return out
}

// Active returns all plans not yet in a terminal status.
func (r *Registry) Active() []*types.PlanContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.PlanContext, 0)
	for _, p := range r.plans {
		if !p.Status.IsTerminal() {
			out = append(out, p)
		}
	}
	return out
}

// Remove deletes a plan from the registry. Callers should only remove
// terminal plans; removing an active plan abandons its state.
func (r *Registry) Remove(intentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plans, intentID)
}
