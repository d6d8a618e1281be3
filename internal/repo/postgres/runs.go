package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forno-labs/forno-go/internal/domain"
	"github.com/forno-labs/forno-go/internal/repo"
)

// The one-in-progress-run-per-recipe invariant is enforced by a partial
// unique index:
//
//	CREATE UNIQUE INDEX production_runs_active_recipe_idx
//	ON production_runs (recipe_id) WHERE status = 'in_progress';
//
// A losing concurrent insert surfaces as repo.ErrConflict.
const insertRunQuery = `INSERT INTO production_runs (
		run_id,
		recipe_id,
		recipe_version_id,
		user_id,
		started_at,
		finished_at,
		status,
		production_lot,
		notes
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

// completeRunQuery flips a run to completed in one statement: the status
// guard makes the transition atomic and the CASE keeps prior notes when the
// new notes are empty. finished_at, status, and production_lot land
// together; a completed run is never observable with the placeholder lot.
const completeRunQuery = `UPDATE production_runs
	 SET status = 'completed',
	     finished_at = $2,
	     production_lot = $3,
	     notes = CASE WHEN $4 = '' THEN notes ELSE $4 END
	 WHERE run_id = $1 AND status = 'in_progress'
	 RETURNING ` + selectRunColumns

const transitionRunQuery = `UPDATE production_runs
	 SET status = $3,
	     notes = CASE WHEN $4 = '' THEN notes ELSE $4 END
	 WHERE run_id = $1 AND status = $2
	 RETURNING ` + selectRunColumns

const findCompletedInWindowQuery = `SELECT ` + selectRunColumns + `
	 FROM production_runs
	 WHERE status = 'completed'
	   AND started_at BETWEEN $1 AND $2
	   AND finished_at BETWEEN $3 AND $4
	 ORDER BY finished_at DESC
	 LIMIT 1`

const selectRunColumns = `run_id, recipe_id, recipe_version_id, user_id, started_at, finished_at, status, production_lot, notes`

// RunStore manages production run rows.
type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, run domain.ProductionRun) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	startedAt := normalizeTime(run.StartedAt)
	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(
		ctx,
		insertRunQuery,
		strings.TrimSpace(run.ID),
		strings.TrimSpace(run.RecipeID),
		strings.TrimSpace(run.RecipeVersionID),
		strings.TrimSpace(run.UserID),
		startedAt,
		finishedAt,
		string(run.Status),
		strings.TrimSpace(run.ProductionLot),
		run.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert run: %w", repo.ErrConflict)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.ProductionRun, error) {
	if s == nil || s.db == nil {
		return domain.ProductionRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ProductionRun{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectRunColumns+` FROM production_runs WHERE run_id = $1`,
		id,
	)
	return scanRun(row.Scan)
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.ProductionRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if strings.TrimSpace(filter.RecipeID) != "" {
		args = append(args, strings.TrimSpace(filter.RecipeID))
		clauses = append(clauses, fmt.Sprintf("recipe_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + selectRunColumns + ` FROM production_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.ProductionRun, 0)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStore) CompleteRun(ctx context.Context, id string, finishedAt time.Time, productionLot string, notes string) (domain.ProductionRun, error) {
	if s == nil || s.db == nil {
		return domain.ProductionRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ProductionRun{}, fmt.Errorf("run id is required")
	}
	productionLot = strings.TrimSpace(productionLot)
	if productionLot == "" {
		return domain.ProductionRun{}, fmt.Errorf("production lot is required")
	}
	row := s.db.QueryRowContext(ctx, completeRunQuery, id, finishedAt.UTC(), productionLot, notes)
	run, err := scanRun(row.Scan)
	if err != nil {
		return domain.ProductionRun{}, s.disambiguateTransition(ctx, id, err)
	}
	return run, nil
}

func (s *RunStore) UpdateRunStatus(ctx context.Context, id string, from, to domain.RunStatus, notes string) (domain.ProductionRun, error) {
	if s == nil || s.db == nil {
		return domain.ProductionRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ProductionRun{}, fmt.Errorf("run id is required")
	}
	if !domain.CanTransitionRunStatus(from, to) {
		return domain.ProductionRun{}, fmt.Errorf("transition %s -> %s: %w", from, to, repo.ErrInvalidState)
	}
	row := s.db.QueryRowContext(ctx, transitionRunQuery, id, string(from), string(to), notes)
	run, err := scanRun(row.Scan)
	if err != nil {
		return domain.ProductionRun{}, s.disambiguateTransition(ctx, id, err)
	}
	return run, nil
}

func (s *RunStore) FindCompletedInWindow(ctx context.Context, window repo.CompletedRunWindow) (domain.ProductionRun, error) {
	if s == nil || s.db == nil {
		return domain.ProductionRun{}, fmt.Errorf("run store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		findCompletedInWindowQuery,
		window.StartedFrom.UTC(),
		window.StartedTo.UTC(),
		window.FinishedFrom.UTC(),
		window.FinishedTo.UTC(),
	)
	return scanRun(row.Scan)
}

// disambiguateTransition turns a zero-row guarded update into the right
// error: the run is either missing or in the wrong status.
func (s *RunStore) disambiguateTransition(ctx context.Context, id string, err error) error {
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if _, getErr := s.GetRun(ctx, id); getErr != nil {
		return getErr
	}
	return repo.ErrInvalidState
}

func scanRun(scan func(dest ...any) error) (domain.ProductionRun, error) {
	var run domain.ProductionRun
	var finishedAt sql.NullTime
	var status string
	if err := scan(
		&run.ID, &run.RecipeID, &run.RecipeVersionID, &run.UserID,
		&run.StartedAt, &finishedAt, &status, &run.ProductionLot, &run.Notes,
	); err != nil {
		return domain.ProductionRun{}, handleNotFound(err)
	}
	if finishedAt.Valid {
		finished := finishedAt.Time.UTC()
		run.FinishedAt = &finished
	}
	run.Status = domain.NormalizeRunStatus(status)
	return run, nil
}
