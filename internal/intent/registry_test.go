package intent

import (
	"testing"

	"orderpipe/pkg/types"
)

func TestRegisterIsIdempotent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	p1 := &types.PlanContext{PlanID: "p1", Status: types.PlanActive}
	got1, created1 := r.Register(p1)
	if !created1 || got1 != p1 {
		t.Fatalf("first Register: created=%v got=%v", created1, got1)
	}

	p2 := &types.PlanContext{PlanID: "p1", Status: types.PlanPending}
	got2, created2 := r.Register(p2)
	if created2 {
		t.Error("expected second Register for same id to report created=false")
	}
	if got2 != p1 {
		t.Error("expected second Register to return the original plan")
	}
}

func TestActiveExcludesTerminalPlans(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(&types.PlanContext{PlanID: "a", Status: types.PlanActive})
	r.Register(&types.PlanContext{PlanID: "b", Status: types.PlanCompleted})

	active := r.Active()
	if len(active) != 1 || active[0].PlanID != "a" {
		t.Errorf("Active() = %+v, want only plan a", active)
	}
}
