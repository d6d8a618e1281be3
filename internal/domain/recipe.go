package domain

import (
	"errors"
	"strings"
	"time"
)

// Recipe is the live, editable recipe row as read from the recipe catalog.
// Production never works against it directly; a run is bound to an
// immutable RecipeSnapshot taken at start time.
type Recipe struct {
	ID               string
	Name             string
	Description      string
	YieldCount       int
	YieldWeightGrams int
	RestMinutes      int
	CreatedAt        time.Time
}

// RecipeIngredient is one row of a recipe's ordered ingredient list.
type RecipeIngredient struct {
	Position      int
	Name          string
	QuantityGrams float64
	Note          string
}

// OvenPhase is one step of the oven-temperature schedule.
type OvenPhase struct {
	Position        int
	TemperatureC    int
	DurationMinutes int
}

// MixingPhase is one step of the mixing-time schedule.
type MixingPhase struct {
	Position        int
	Speed           string
	DurationMinutes int
}

func (r Recipe) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("recipe id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("recipe name is required")
	}
	return nil
}
