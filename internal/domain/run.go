package domain

import (
	"errors"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a production run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusLoaded     RunStatus = "loaded"
	RunStatusAborted    RunStatus = "aborted"
)

// PlaceholderLot is the lot value carried by a run until it finishes.
// It is never a valid lot code (wrong length) so it can never be decoded.
const PlaceholderLot = "TEMP"

// ProductionRun is one attempt to execute a recipe, from start to finish.
// RecipeVersionID points at the RecipeSnapshot frozen when the run started.
type ProductionRun struct {
	ID              string
	RecipeID        string
	RecipeVersionID string
	UserID          string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          RunStatus
	ProductionLot   string
	Notes           string
}

func (r ProductionRun) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.RecipeID) == "" {
		return errors.New("recipe id is required")
	}
	if strings.TrimSpace(r.RecipeVersionID) == "" {
		return errors.New("recipe version id is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user id is required")
	}
	if NormalizeRunStatus(string(r.Status)) == "" {
		return errors.New("status is required")
	}
	if strings.TrimSpace(r.ProductionLot) == "" {
		return errors.New("production lot is required")
	}
	return nil
}

// NormalizeRunStatus maps a raw status string to a known RunStatus, or ""
// when the value is not part of the lifecycle.
func NormalizeRunStatus(raw string) RunStatus {
	switch RunStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case RunStatusInProgress:
		return RunStatusInProgress
	case RunStatusCompleted:
		return RunStatusCompleted
	case RunStatusLoaded:
		return RunStatusLoaded
	case RunStatusAborted:
		return RunStatusAborted
	default:
		return ""
	}
}

// CanTransitionRunStatus reports whether the lifecycle permits moving a run
// from one status to another. Completed and aborted runs only move forward;
// loaded is terminal.
func CanTransitionRunStatus(from, to RunStatus) bool {
	switch from {
	case RunStatusInProgress:
		return to == RunStatusCompleted || to == RunStatusAborted
	case RunStatusCompleted:
		return to == RunStatusLoaded
	default:
		return false
	}
}
