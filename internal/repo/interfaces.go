package repo

import (
	"context"
	"time"

	"github.com/forno-labs/forno-go/internal/domain"
)

type RecipeFilter struct {
	Name  string
	Limit int
}

type UserFilter struct {
	Limit int
}

type RunFilter struct {
	RecipeID string
	Status   domain.RunStatus
	Limit    int
}

// CompletedRunWindow bounds the exact-match search used by lot
// reconciliation: both instants must fall inside their window.
type CompletedRunWindow struct {
	StartedFrom  time.Time
	StartedTo    time.Time
	FinishedFrom time.Time
	FinishedTo   time.Time
}

// RecipeReader is the read-only surface over the recipe catalog. The
// catalog itself (CRUD, cost parameters, editing) lives outside this
// service.
type RecipeReader interface {
	GetRecipe(ctx context.Context, id string) (domain.Recipe, error)
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]domain.Recipe, error)
	ListIngredients(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error)
	ListOvenSchedule(ctx context.Context, recipeID string) ([]domain.OvenPhase, error)
	ListMixingSchedule(ctx context.Context, recipeID string) ([]domain.MixingPhase, error)
}

// UserReader is the read-only surface over the operator directory.
type UserReader interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

// SnapshotRepository stores immutable recipe snapshots. CreateSnapshot
// assigns the next version number for the recipe atomically and returns the
// stored snapshot; no update or delete exists.
type SnapshotRepository interface {
	CreateSnapshot(ctx context.Context, snapshot domain.RecipeSnapshot) (domain.RecipeSnapshot, error)
	GetSnapshot(ctx context.Context, id string) (domain.RecipeSnapshot, error)
	ListSnapshots(ctx context.Context, recipeID string, limit int) ([]domain.RecipeSnapshot, error)
}

// RunRepository manages production run state. CreateRun surfaces
// ErrConflict when the recipe already has an in_progress run. CompleteRun
// and UpdateRunStatus are guarded, atomic transitions: they report
// ErrInvalidState when the run is not in the expected status.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.ProductionRun) error
	GetRun(ctx context.Context, id string) (domain.ProductionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.ProductionRun, error)
	CompleteRun(ctx context.Context, id string, finishedAt time.Time, productionLot string, notes string) (domain.ProductionRun, error)
	UpdateRunStatus(ctx context.Context, id string, from, to domain.RunStatus, notes string) (domain.ProductionRun, error)
	FindCompletedInWindow(ctx context.Context, window CompletedRunWindow) (domain.ProductionRun, error)
}
