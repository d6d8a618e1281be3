package domain

import "testing"

func TestNormalizeRunStatus(t *testing.T) {
	cases := []struct {
		raw      string
		expected RunStatus
	}{
		{"in_progress", RunStatusInProgress},
		{" In_Progress ", RunStatusInProgress},
		{"completed", RunStatusCompleted},
		{"loaded", RunStatusLoaded},
		{"aborted", RunStatusAborted},
		{"", ""},
		{"cancelled", ""},
	}
	for _, tc := range cases {
		if got := NormalizeRunStatus(tc.raw); got != tc.expected {
			t.Fatalf("NormalizeRunStatus(%q) = %q, expected %q", tc.raw, got, tc.expected)
		}
	}
}

func TestCanTransitionRunStatus(t *testing.T) {
	allowed := [][2]RunStatus{
		{RunStatusInProgress, RunStatusCompleted},
		{RunStatusInProgress, RunStatusAborted},
		{RunStatusCompleted, RunStatusLoaded},
	}
	for _, pair := range allowed {
		if !CanTransitionRunStatus(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]RunStatus{
		{RunStatusCompleted, RunStatusInProgress},
		{RunStatusCompleted, RunStatusCompleted},
		{RunStatusLoaded, RunStatusCompleted},
		{RunStatusLoaded, RunStatusLoaded},
		{RunStatusAborted, RunStatusCompleted},
		{RunStatusAborted, RunStatusLoaded},
		{RunStatusInProgress, RunStatusLoaded},
	}
	for _, pair := range denied {
		if CanTransitionRunStatus(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}
}

func TestProductionRunValidate(t *testing.T) {
	valid := ProductionRun{
		ID:              "run-1",
		RecipeID:        "recipe-1",
		RecipeVersionID: "snap-1",
		UserID:          "user-1",
		Status:          RunStatusInProgress,
		ProductionLot:   PlaceholderLot,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(r *ProductionRun)
	}{
		{"missing id", func(r *ProductionRun) { r.ID = " " }},
		{"missing recipe", func(r *ProductionRun) { r.RecipeID = "" }},
		{"missing snapshot", func(r *ProductionRun) { r.RecipeVersionID = "" }},
		{"missing user", func(r *ProductionRun) { r.UserID = "" }},
		{"unknown status", func(r *ProductionRun) { r.Status = "paused" }},
		{"missing lot", func(r *ProductionRun) { r.ProductionLot = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run := valid
			tc.mutate(&run)
			if err := run.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
