package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/forno-labs/forno-go/internal/domain"
	"github.com/forno-labs/forno-go/internal/repo"
)

// RecipeStore reads the recipe catalog tables owned by the (external)
// recipe management application.
type RecipeStore struct {
	db DB
}

func NewRecipeStore(db DB) *RecipeStore {
	if db == nil {
		return nil
	}
	return &RecipeStore{db: db}
}

func (s *RecipeStore) GetRecipe(ctx context.Context, id string) (domain.Recipe, error) {
	if s == nil || s.db == nil {
		return domain.Recipe{}, fmt.Errorf("recipe store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Recipe{}, fmt.Errorf("recipe id is required")
	}
	var recipe domain.Recipe
	row := s.db.QueryRowContext(
		ctx,
		`SELECT recipe_id, name, description, yield_count, yield_weight_grams, rest_minutes, created_at
		 FROM recipes
		 WHERE recipe_id = $1`,
		id,
	)
	if err := row.Scan(&recipe.ID, &recipe.Name, &recipe.Description, &recipe.YieldCount, &recipe.YieldWeightGrams, &recipe.RestMinutes, &recipe.CreatedAt); err != nil {
		return domain.Recipe{}, handleNotFound(err)
	}
	return recipe, nil
}

func (s *RecipeStore) ListRecipes(ctx context.Context, filter repo.RecipeFilter) ([]domain.Recipe, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("recipe store not initialized")
	}
	clauses := make([]string, 0, 1)
	args := make([]any, 0, 2)

	if strings.TrimSpace(filter.Name) != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}

	query := `SELECT recipe_id, name, description, yield_count, yield_weight_grams, rest_minutes, created_at FROM recipes`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]domain.Recipe, 0)
	for rows.Next() {
		var recipe domain.Recipe
		if err := rows.Scan(&recipe.ID, &recipe.Name, &recipe.Description, &recipe.YieldCount, &recipe.YieldWeightGrams, &recipe.RestMinutes, &recipe.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

func (s *RecipeStore) ListIngredients(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("recipe store not initialized")
	}
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, fmt.Errorf("recipe id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT position, name, quantity_grams, note
		 FROM recipe_ingredients
		 WHERE recipe_id = $1
		 ORDER BY position ASC`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := make([]domain.RecipeIngredient, 0)
	for rows.Next() {
		var ingredient domain.RecipeIngredient
		if err := rows.Scan(&ingredient.Position, &ingredient.Name, &ingredient.QuantityGrams, &ingredient.Note); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		ingredients = append(ingredients, ingredient)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *RecipeStore) ListOvenSchedule(ctx context.Context, recipeID string) ([]domain.OvenPhase, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("recipe store not initialized")
	}
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, fmt.Errorf("recipe id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT position, temperature_c, duration_minutes
		 FROM recipe_oven_phases
		 WHERE recipe_id = $1
		 ORDER BY position ASC`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list oven schedule: %w", err)
	}
	defer rows.Close()

	phases := make([]domain.OvenPhase, 0)
	for rows.Next() {
		var phase domain.OvenPhase
		if err := rows.Scan(&phase.Position, &phase.TemperatureC, &phase.DurationMinutes); err != nil {
			return nil, fmt.Errorf("scan oven phase: %w", err)
		}
		phases = append(phases, phase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list oven schedule: %w", err)
	}
	return phases, nil
}

func (s *RecipeStore) ListMixingSchedule(ctx context.Context, recipeID string) ([]domain.MixingPhase, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("recipe store not initialized")
	}
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, fmt.Errorf("recipe id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT position, speed, duration_minutes
		 FROM recipe_mixing_phases
		 WHERE recipe_id = $1
		 ORDER BY position ASC`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mixing schedule: %w", err)
	}
	defer rows.Close()

	phases := make([]domain.MixingPhase, 0)
	for rows.Next() {
		var phase domain.MixingPhase
		if err := rows.Scan(&phase.Position, &phase.Speed, &phase.DurationMinutes); err != nil {
			return nil, fmt.Errorf("scan mixing phase: %w", err)
		}
		phases = append(phases, phase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mixing schedule: %w", err)
	}
	return phases, nil
}
