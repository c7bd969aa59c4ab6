package main

import (
	"context"
	"testing"

	"snappdf/internal/plans"
)

func TestPlanUpdateKeepsUneditedFields(t *testing.T) {
	env := newTestApp(t)
	env.loginAdmin(t)
	ctx := context.Background()

	created, err := env.app.plans.Create(ctx, plans.Input{
		Name:    "Pro",
		Price:   499,
		Credits: 50,
		Note:    "For teams",
	})
	if err != nil {
		t.Fatalf("creating plan failed: %v", err)
	}

	err = env.app.cmdPlanAdmin(ctx, []string{"update", "-id", created.ID, "-credits", "60"})
	if err != nil {
		t.Fatalf("plan update returned error: %v", err)
	}

	list, err := env.app.plans.List(ctx)
	if err != nil {
		t.Fatalf("listing plans failed: %v", err)
	}
	var got *plans.Plan
	for i := range list {
		if list[i].ID == created.ID {
			got = &list[i]
			break
		}
	}
	if got == nil {
		t.Fatalf("updated plan %s missing from listing", created.ID)
	}
	if got.Credits != 60 {
		t.Fatalf("Credits = %d, want 60", got.Credits)
	}
	if got.Name != "Pro" || got.Price != 499 || got.Note != "For teams" {
		t.Fatalf("unedited fields changed: name=%q price=%d note=%q", got.Name, got.Price, got.Note)
	}
}

func TestPlanUpdateUnknownIDFails(t *testing.T) {
	env := newTestApp(t)
	env.loginAdmin(t)

	err := env.app.cmdPlanAdmin(context.Background(), []string{"update", "-id", "missing", "-price", "100"})
	if err == nil {
		t.Fatal("updating a nonexistent plan succeeded")
	}
}
