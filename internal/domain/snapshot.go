package domain

import (
	"errors"
	"strings"
	"time"
)

// RecipeSnapshot is the immutable record of what a recipe looked like at
// the moment a production run started. Snapshots are write-once: no update
// or delete operation exists anywhere in the system.
type RecipeSnapshot struct {
	ID               string
	RecipeID         string
	VersionNumber    int64
	Name             string
	Description      string
	YieldCount       int
	YieldWeightGrams int
	RestMinutes      int
	Ingredients      []RecipeIngredient
	OvenSchedule     []OvenPhase
	MixingSchedule   []MixingPhase
	CreatedAt        time.Time
	CreatedBy        string
}

func (s RecipeSnapshot) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("snapshot id is required")
	}
	if strings.TrimSpace(s.RecipeID) == "" {
		return errors.New("recipe id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("snapshot name is required")
	}
	if strings.TrimSpace(s.CreatedBy) == "" {
		return errors.New("created by is required")
	}
	return nil
}

// EnsureSnapshotImmutable rejects any difference between two reads of the
// same snapshot. Used by integrity checks; the storage layer exposes no
// mutation path in the first place.
func EnsureSnapshotImmutable(before, after RecipeSnapshot) error {
	if before.ID == "" || after.ID == "" {
		return errors.New("snapshot ids are required")
	}
	if before.ID != after.ID {
		return errors.New("snapshot id changed")
	}
	if before.RecipeID != after.RecipeID {
		return errors.New("recipe id is immutable")
	}
	if before.VersionNumber != after.VersionNumber {
		return errors.New("version number is immutable")
	}
	if before.Name != after.Name {
		return errors.New("name is immutable")
	}
	if len(before.Ingredients) != len(after.Ingredients) {
		return errors.New("ingredient list is immutable")
	}
	for i := range before.Ingredients {
		if before.Ingredients[i] != after.Ingredients[i] {
			return errors.New("ingredient list is immutable")
		}
	}
	if !before.CreatedAt.Equal(after.CreatedAt) {
		return errors.New("created at is immutable")
	}
	return nil
}
