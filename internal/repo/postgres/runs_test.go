package postgres

import (
	"strings"
	"testing"
)

func TestCompleteRunQueryIsGuardedAndAtomic(t *testing.T) {
	if !strings.Contains(completeRunQuery, "status = 'in_progress'") {
		t.Fatalf("expected in_progress guard in complete query")
	}
	for _, column := range []string{"finished_at", "production_lot", "status = 'completed'"} {
		if !strings.Contains(completeRunQuery, column) {
			t.Fatalf("expected %s in complete query", column)
		}
	}
	if !strings.Contains(completeRunQuery, "CASE WHEN $4 = '' THEN notes") {
		t.Fatalf("expected empty notes to preserve prior notes")
	}
}

func TestTransitionRunQueryGuardsPriorStatus(t *testing.T) {
	if !strings.Contains(transitionRunQuery, "status = $2") {
		t.Fatalf("expected prior-status guard in transition query")
	}
}

func TestFindCompletedInWindowQueryBoundsBothInstants(t *testing.T) {
	if !strings.Contains(findCompletedInWindowQuery, "started_at BETWEEN $1 AND $2") {
		t.Fatalf("expected started_at window predicate")
	}
	if !strings.Contains(findCompletedInWindowQuery, "finished_at BETWEEN $3 AND $4") {
		t.Fatalf("expected finished_at window predicate")
	}
	if !strings.Contains(findCompletedInWindowQuery, "status = 'completed'") {
		t.Fatalf("expected completed-only predicate")
	}
}
