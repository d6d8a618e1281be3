package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forno-labs/forno-go/internal/domain"
)

const lockRecipeQuery = `SELECT recipe_id FROM recipes WHERE recipe_id = $1 FOR UPDATE`

const nextSnapshotVersionQuery = `SELECT COALESCE(MAX(version_number), 0) + 1
	 FROM recipe_snapshots
	 WHERE recipe_id = $1`

const insertSnapshotQuery = `INSERT INTO recipe_snapshots (
		snapshot_id,
		recipe_id,
		version_number,
		name,
		description,
		yield_count,
		yield_weight_grams,
		rest_minutes,
		ingredients,
		oven_schedule,
		mixing_schedule,
		created_at,
		created_by
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

const selectSnapshotColumns = `snapshot_id, recipe_id, version_number, name, description,
	yield_count, yield_weight_grams, rest_minutes, ingredients, oven_schedule, mixing_schedule,
	created_at, created_by`

// SnapshotStore persists immutable recipe snapshots. Version numbers are
// assigned inside a transaction that locks the recipe row, so concurrent
// creations for the same recipe serialize and never share a version.
type SnapshotStore struct {
	db TxDB
}

func NewSnapshotStore(db TxDB) *SnapshotStore {
	if db == nil {
		return nil
	}
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) CreateSnapshot(ctx context.Context, snapshot domain.RecipeSnapshot) (domain.RecipeSnapshot, error) {
	if s == nil || s.db == nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("snapshot store not initialized")
	}
	if err := snapshot.Validate(); err != nil {
		return domain.RecipeSnapshot{}, err
	}
	ingredientsJSON, err := encodeJSON(snapshot.Ingredients)
	if err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("encode ingredients: %w", err)
	}
	ovenJSON, err := encodeJSON(snapshot.OvenSchedule)
	if err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("encode oven schedule: %w", err)
	}
	mixingJSON, err := encodeJSON(snapshot.MixingSchedule)
	if err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("encode mixing schedule: %w", err)
	}
	createdAt := normalizeTime(snapshot.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID string
	if err := tx.QueryRowContext(ctx, lockRecipeQuery, strings.TrimSpace(snapshot.RecipeID)).Scan(&lockedID); err != nil {
		return domain.RecipeSnapshot{}, handleNotFound(err)
	}

	var version int64
	if err := tx.QueryRowContext(ctx, nextSnapshotVersionQuery, lockedID).Scan(&version); err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("next snapshot version: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		insertSnapshotQuery,
		strings.TrimSpace(snapshot.ID),
		lockedID,
		version,
		strings.TrimSpace(snapshot.Name),
		strings.TrimSpace(snapshot.Description),
		snapshot.YieldCount,
		snapshot.YieldWeightGrams,
		snapshot.RestMinutes,
		ingredientsJSON,
		ovenJSON,
		mixingJSON,
		createdAt,
		strings.TrimSpace(snapshot.CreatedBy),
	); err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("commit snapshot tx: %w", err)
	}

	snapshot.VersionNumber = version
	snapshot.CreatedAt = createdAt
	return snapshot, nil
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, id string) (domain.RecipeSnapshot, error) {
	if s == nil || s.db == nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("snapshot store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RecipeSnapshot{}, fmt.Errorf("snapshot id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectSnapshotColumns+` FROM recipe_snapshots WHERE snapshot_id = $1`,
		id,
	)
	return scanSnapshot(row.Scan)
}

func (s *SnapshotStore) ListSnapshots(ctx context.Context, recipeID string, limit int) ([]domain.RecipeSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("snapshot store not initialized")
	}
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, fmt.Errorf("recipe id is required")
	}
	query := `SELECT ` + selectSnapshotColumns + ` FROM recipe_snapshots WHERE recipe_id = $1 ORDER BY version_number DESC`
	args := []any{recipeID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]domain.RecipeSnapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

func scanSnapshot(scan func(dest ...any) error) (domain.RecipeSnapshot, error) {
	var snapshot domain.RecipeSnapshot
	var ingredientsJSON, ovenJSON, mixingJSON []byte
	if err := scan(
		&snapshot.ID, &snapshot.RecipeID, &snapshot.VersionNumber, &snapshot.Name, &snapshot.Description,
		&snapshot.YieldCount, &snapshot.YieldWeightGrams, &snapshot.RestMinutes,
		&ingredientsJSON, &ovenJSON, &mixingJSON,
		&snapshot.CreatedAt, &snapshot.CreatedBy,
	); err != nil {
		return domain.RecipeSnapshot{}, handleNotFound(err)
	}
	if err := json.Unmarshal(ingredientsJSON, &snapshot.Ingredients); err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("decode ingredients: %w", err)
	}
	if err := json.Unmarshal(ovenJSON, &snapshot.OvenSchedule); err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("decode oven schedule: %w", err)
	}
	if err := json.Unmarshal(mixingJSON, &snapshot.MixingSchedule); err != nil {
		return domain.RecipeSnapshot{}, fmt.Errorf("decode mixing schedule: %w", err)
	}
	return snapshot, nil
}
