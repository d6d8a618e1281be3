// Package production drives the run lifecycle: start captures an
// immutable recipe snapshot, finish stamps the traceability lot code,
// load and abort close out the remaining states.
package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forno-labs/forno-go/internal/domain"
	"github.com/forno-labs/forno-go/internal/lot"
	"github.com/forno-labs/forno-go/internal/platform/auditlog"
	"github.com/forno-labs/forno-go/internal/repo"
)

// SnapshotArchiver copies a stored snapshot to long-term storage.
// Archival is best effort: a failed copy never fails the run start.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snapshot domain.RecipeSnapshot) error
}

// AuditAppender records an event without surfacing storage errors.
type AuditAppender interface {
	Append(ctx context.Context, event auditlog.Event)
}

type AuditInfo struct {
	Actor     string
	RequestID string
	UserAgent string
	IP        net.IP
}

type Service struct {
	recipes   repo.RecipeReader
	users     repo.UserReader
	snapshots repo.SnapshotRepository
	runs      repo.RunRepository

	archive SnapshotArchiver
	audit   AuditAppender
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithArchiver(archive SnapshotArchiver) Option {
	return func(s *Service) { s.archive = archive }
}

func WithAudit(audit AuditAppender) Option {
	return func(s *Service) { s.audit = audit }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(recipes repo.RecipeReader, users repo.UserReader, snapshots repo.SnapshotRepository, runs repo.RunRepository, opts ...Option) *Service {
	if recipes == nil || users == nil || snapshots == nil || runs == nil {
		return nil
	}
	s := &Service{
		recipes:   recipes,
		users:     users,
		snapshots: snapshots,
		runs:      runs,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type StartInput struct {
	RecipeID string
	UserID   string
	// StartedAt may backdate a run that was recorded late. Zero means now.
	StartedAt time.Time
	Notes     string
}

func (in StartInput) Validate() error {
	if strings.TrimSpace(in.RecipeID) == "" {
		return errors.New("recipe id is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return errors.New("user id is required")
	}
	return nil
}

// Start snapshots the recipe and opens a run against that snapshot. The
// recipe can keep evolving afterwards; the run's lot always reconstructs
// from the frozen copy. A second start for the same recipe while one run
// is in progress fails with repo.ErrConflict.
func (s *Service) Start(ctx context.Context, info AuditInfo, in StartInput) (domain.ProductionRun, domain.RecipeSnapshot, error) {
	if err := in.Validate(); err != nil {
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, err
	}

	user, err := s.users.GetUser(ctx, in.UserID)
	if err != nil {
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, fmt.Errorf("load user: %w", err)
	}
	recipe, err := s.recipes.GetRecipe(ctx, in.RecipeID)
	if err != nil {
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, fmt.Errorf("load recipe: %w", err)
	}
	ingredients, err := s.recipes.ListIngredients(ctx, recipe.ID)
	if err != nil {
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, fmt.Errorf("load ingredients: %w", err)
	}
	ovenSchedule, err := s.recipes.ListOvenSchedule(ctx, recipe.ID)
	if err != nil {
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, fmt.Errorf("load oven schedule: %w", err)
	}
	mixingSchedule, err := s.recipes.ListMixingSchedule(ctx, recipe.ID)
	if err != nil {
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, fmt.Errorf("load mixing schedule: %w", err)
	}

	startedAt := in.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	startedAt = startedAt.UTC()

	snapshot, err := s.snapshots.CreateSnapshot(ctx, domain.RecipeSnapshot{
		ID:               uuid.NewString(),
		RecipeID:         recipe.ID,
		Name:             recipe.Name,
		Description:      recipe.Description,
		YieldCount:       recipe.YieldCount,
		YieldWeightGrams: recipe.YieldWeightGrams,
		RestMinutes:      recipe.RestMinutes,
		Ingredients:      ingredients,
		OvenSchedule:     ovenSchedule,
		MixingSchedule:   mixingSchedule,
		CreatedAt:        s.now(),
		CreatedBy:        user.ID,
	})
	if err != nil {
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, fmt.Errorf("create snapshot: %w", err)
	}

	run := domain.ProductionRun{
		ID:              uuid.NewString(),
		RecipeID:        recipe.ID,
		RecipeVersionID: snapshot.ID,
		UserID:          user.ID,
		StartedAt:       startedAt,
		Status:          domain.RunStatusInProgress,
		ProductionLot:   domain.PlaceholderLot,
		Notes:           strings.TrimSpace(in.Notes),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		// The snapshot row stays behind when a concurrent start wins the
		// race. It is inert: no run references it and version numbers
		// remain monotonic.
		return domain.ProductionRun{}, domain.RecipeSnapshot{}, err
	}

	if s.archive != nil {
		if archiveErr := s.archive.ArchiveSnapshot(ctx, snapshot); archiveErr != nil && s.logger != nil {
			s.logger.Warn("snapshot archive failed",
				"snapshot_id", snapshot.ID,
				"recipe_id", recipe.ID,
				"error", archiveErr.Error(),
			)
		}
	}

	s.appendAudit(ctx, info, "production.started", run.ID, map[string]any{
		"recipe_id":   recipe.ID,
		"snapshot_id": snapshot.ID,
		"version":     snapshot.VersionNumber,
		"user_id":     user.ID,
		"started_at":  run.StartedAt,
	})
	return run, snapshot, nil
}

// Finish completes an in-progress run: it derives the lot code from the
// snapshot name, the operator name, and the start/finish instants, then
// flips status and lot in one guarded update.
func (s *Service) Finish(ctx context.Context, info AuditInfo, runID string, notes string) (domain.ProductionRun, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return domain.ProductionRun{}, errors.New("run id is required")
	}

	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return domain.ProductionRun{}, err
	}
	if run.Status != domain.RunStatusInProgress {
		return domain.ProductionRun{}, fmt.Errorf("finish run in status %s: %w", run.Status, repo.ErrInvalidState)
	}

	snapshot, err := s.snapshots.GetSnapshot(ctx, run.RecipeVersionID)
	if err != nil {
		return domain.ProductionRun{}, fmt.Errorf("load snapshot: %w", err)
	}
	user, err := s.users.GetUser(ctx, run.UserID)
	if err != nil {
		return domain.ProductionRun{}, fmt.Errorf("load user: %w", err)
	}

	finishedAt := s.now()
	code := lot.Encode(snapshot.Name, user.OperatorName(), run.StartedAt, finishedAt)

	updated, err := s.runs.CompleteRun(ctx, runID, finishedAt, code, strings.TrimSpace(notes))
	if err != nil {
		return domain.ProductionRun{}, err
	}

	s.appendAudit(ctx, info, "production.completed", updated.ID, map[string]any{
		"recipe_id":      updated.RecipeID,
		"snapshot_id":    updated.RecipeVersionID,
		"production_lot": updated.ProductionLot,
		"finished_at":    finishedAt,
	})
	return updated, nil
}

// MarkLoaded records that a completed run left the bakery on a delivery.
func (s *Service) MarkLoaded(ctx context.Context, info AuditInfo, runID string, notes string) (domain.ProductionRun, error) {
	updated, err := s.runs.UpdateRunStatus(ctx, strings.TrimSpace(runID), domain.RunStatusCompleted, domain.RunStatusLoaded, strings.TrimSpace(notes))
	if err != nil {
		return domain.ProductionRun{}, err
	}
	s.appendAudit(ctx, info, "production.loaded", updated.ID, map[string]any{
		"recipe_id":      updated.RecipeID,
		"production_lot": updated.ProductionLot,
	})
	return updated, nil
}

// Abort closes a run that never produced sellable goods. Aborted runs
// keep the placeholder lot; no code is ever derived for them.
func (s *Service) Abort(ctx context.Context, info AuditInfo, runID string, notes string) (domain.ProductionRun, error) {
	updated, err := s.runs.UpdateRunStatus(ctx, strings.TrimSpace(runID), domain.RunStatusInProgress, domain.RunStatusAborted, strings.TrimSpace(notes))
	if err != nil {
		return domain.ProductionRun{}, err
	}
	s.appendAudit(ctx, info, "production.aborted", updated.ID, map[string]any{
		"recipe_id": updated.RecipeID,
	})
	return updated, nil
}

func (s *Service) GetRun(ctx context.Context, runID string) (domain.ProductionRun, error) {
	return s.runs.GetRun(ctx, strings.TrimSpace(runID))
}

func (s *Service) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.ProductionRun, error) {
	return s.runs.ListRuns(ctx, filter)
}

func (s *Service) GetSnapshot(ctx context.Context, snapshotID string) (domain.RecipeSnapshot, error) {
	return s.snapshots.GetSnapshot(ctx, strings.TrimSpace(snapshotID))
}

func (s *Service) ListRecipes(ctx context.Context, filter repo.RecipeFilter) ([]domain.Recipe, error) {
	return s.recipes.ListRecipes(ctx, filter)
}

func (s *Service) appendAudit(ctx context.Context, info AuditInfo, action string, runID string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	actor := strings.TrimSpace(info.Actor)
	if actor == "" {
		actor = "system"
	}
	s.audit.Append(ctx, auditlog.Event{
		OccurredAt:   s.now(),
		Actor:        actor,
		Action:       action,
		ResourceType: "production_run",
		ResourceID:   runID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Payload:      payload,
	})
}
