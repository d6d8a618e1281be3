package production

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/forno-labs/forno-go/internal/domain"
	"github.com/forno-labs/forno-go/internal/lot"
	"github.com/forno-labs/forno-go/internal/platform/auditlog"
	"github.com/forno-labs/forno-go/internal/repo"
)

type fakeRecipeReader struct {
	recipes     map[string]domain.Recipe
	ingredients map[string][]domain.RecipeIngredient
	oven        map[string][]domain.OvenPhase
	mixing      map[string][]domain.MixingPhase
}

func (f *fakeRecipeReader) GetRecipe(ctx context.Context, id string) (domain.Recipe, error) {
	recipe, ok := f.recipes[id]
	if !ok {
		return domain.Recipe{}, repo.ErrNotFound
	}
	return recipe, nil
}

func (f *fakeRecipeReader) ListRecipes(ctx context.Context, filter repo.RecipeFilter) ([]domain.Recipe, error) {
	out := make([]domain.Recipe, 0, len(f.recipes))
	for _, recipe := range f.recipes {
		out = append(out, recipe)
	}
	return out, nil
}

func (f *fakeRecipeReader) ListIngredients(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error) {
	return f.ingredients[recipeID], nil
}

func (f *fakeRecipeReader) ListOvenSchedule(ctx context.Context, recipeID string) ([]domain.OvenPhase, error) {
	return f.oven[recipeID], nil
}

func (f *fakeRecipeReader) ListMixingSchedule(ctx context.Context, recipeID string) ([]domain.MixingPhase, error) {
	return f.mixing[recipeID], nil
}

type fakeUserReader struct {
	users map[string]domain.User
}

func (f *fakeUserReader) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return domain.User{}, repo.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserReader) ListUsers(ctx context.Context, filter repo.UserFilter) ([]domain.User, error) {
	out := make([]domain.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, user)
	}
	return out, nil
}

type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]domain.RecipeSnapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]domain.RecipeSnapshot)}
}

func (f *fakeSnapshotStore) CreateSnapshot(ctx context.Context, snapshot domain.RecipeSnapshot) (domain.RecipeSnapshot, error) {
	if err := snapshot.Validate(); err != nil {
		return domain.RecipeSnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var maxVersion int64
	for _, existing := range f.snapshots {
		if existing.RecipeID == snapshot.RecipeID && existing.VersionNumber > maxVersion {
			maxVersion = existing.VersionNumber
		}
	}
	snapshot.VersionNumber = maxVersion + 1
	f.snapshots[snapshot.ID] = snapshot
	return snapshot, nil
}

func (f *fakeSnapshotStore) GetSnapshot(ctx context.Context, id string) (domain.RecipeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot, ok := f.snapshots[id]
	if !ok {
		return domain.RecipeSnapshot{}, repo.ErrNotFound
	}
	return snapshot, nil
}

func (f *fakeSnapshotStore) ListSnapshots(ctx context.Context, recipeID string, limit int) ([]domain.RecipeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RecipeSnapshot, 0)
	for _, snapshot := range f.snapshots {
		if snapshot.RecipeID == recipeID {
			out = append(out, snapshot)
		}
	}
	return out, nil
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs map[string]domain.ProductionRun
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[string]domain.ProductionRun)}
}

func (f *fakeRunStore) CreateRun(ctx context.Context, run domain.ProductionRun) error {
	if err := run.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.runs {
		if existing.RecipeID == run.RecipeID && existing.Status == domain.RunStatusInProgress {
			return fmt.Errorf("insert run: %w", repo.ErrConflict)
		}
	}
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, id string) (domain.ProductionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return domain.ProductionRun{}, repo.ErrNotFound
	}
	return run, nil
}

func (f *fakeRunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.ProductionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProductionRun, 0)
	for _, run := range f.runs {
		if filter.RecipeID != "" && run.RecipeID != filter.RecipeID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

func (f *fakeRunStore) CompleteRun(ctx context.Context, id string, finishedAt time.Time, productionLot string, notes string) (domain.ProductionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return domain.ProductionRun{}, repo.ErrNotFound
	}
	if run.Status != domain.RunStatusInProgress {
		return domain.ProductionRun{}, repo.ErrInvalidState
	}
	finished := finishedAt.UTC()
	run.Status = domain.RunStatusCompleted
	run.FinishedAt = &finished
	run.ProductionLot = productionLot
	if notes != "" {
		run.Notes = notes
	}
	f.runs[id] = run
	return run, nil
}

func (f *fakeRunStore) UpdateRunStatus(ctx context.Context, id string, from, to domain.RunStatus, notes string) (domain.ProductionRun, error) {
	if !domain.CanTransitionRunStatus(from, to) {
		return domain.ProductionRun{}, repo.ErrInvalidState
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return domain.ProductionRun{}, repo.ErrNotFound
	}
	if run.Status != from {
		return domain.ProductionRun{}, repo.ErrInvalidState
	}
	run.Status = to
	if notes != "" {
		run.Notes = notes
	}
	f.runs[id] = run
	return run, nil
}

func (f *fakeRunStore) FindCompletedInWindow(ctx context.Context, window repo.CompletedRunWindow) (domain.ProductionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.runs {
		if run.Status != domain.RunStatusCompleted || run.FinishedAt == nil {
			continue
		}
		if run.StartedAt.Before(window.StartedFrom) || run.StartedAt.After(window.StartedTo) {
			continue
		}
		if run.FinishedAt.Before(window.FinishedFrom) || run.FinishedAt.After(window.FinishedTo) {
			continue
		}
		return run, nil
	}
	return domain.ProductionRun{}, repo.ErrNotFound
}

type fakeArchiver struct {
	mu        sync.Mutex
	snapshots []domain.RecipeSnapshot
	err       error
}

func (f *fakeArchiver) ArchiveSnapshot(ctx context.Context, snapshot domain.RecipeSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []auditlog.Event
}

func (f *fakeAudit) Append(ctx context.Context, event auditlog.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.Action)
	}
	return out
}

func testFixtures() (*fakeRecipeReader, *fakeUserReader) {
	recipes := &fakeRecipeReader{
		recipes: map[string]domain.Recipe{
			"rec-1": {ID: "rec-1", Name: "Panettone", YieldCount: 20, YieldWeightGrams: 1000, RestMinutes: 720},
			"rec-2": {ID: "rec-2", Name: "Focaccia", YieldCount: 12, YieldWeightGrams: 400},
		},
		ingredients: map[string][]domain.RecipeIngredient{
			"rec-1": {
				{Position: 1, Name: "Flour", QuantityGrams: 5000},
				{Position: 2, Name: "Candied Orange", QuantityGrams: 800},
			},
		},
		oven: map[string][]domain.OvenPhase{
			"rec-1": {{Position: 1, TemperatureC: 165, DurationMinutes: 50}},
		},
		mixing: map[string][]domain.MixingPhase{
			"rec-1": {{Position: 1, Speed: "slow", DurationMinutes: 15}},
		},
	}
	users := &fakeUserReader{
		users: map[string]domain.User{
			"usr-1": {ID: "usr-1", Username: "mrossi", DisplayName: "Mario Rossi"},
			"usr-2": {ID: "usr-2", Username: "lbianchi", DisplayName: ""},
		},
	}
	return recipes, users
}

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeSnapshotStore, *fakeRunStore) {
	t.Helper()
	recipes, users := testFixtures()
	snapshots := newFakeSnapshotStore()
	runs := newFakeRunStore()
	svc := New(recipes, users, snapshots, runs, opts...)
	if svc == nil {
		t.Fatalf("New() returned nil")
	}
	return svc, snapshots, runs
}

func TestStartCreatesSnapshotAndRun(t *testing.T) {
	started := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	svc, snapshots, _ := newTestService(t, WithClock(func() time.Time { return started }))

	run, snapshot, err := svc.Start(context.Background(), AuditInfo{Actor: "mrossi"}, StartInput{
		RecipeID: "rec-1",
		UserID:   "usr-1",
	})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	if run.Status != domain.RunStatusInProgress {
		t.Fatalf("status=%s, want in_progress", run.Status)
	}
	if run.ProductionLot != domain.PlaceholderLot {
		t.Fatalf("lot=%q, want placeholder", run.ProductionLot)
	}
	if run.RecipeVersionID != snapshot.ID {
		t.Fatalf("run points at snapshot %q, want %q", run.RecipeVersionID, snapshot.ID)
	}
	if !run.StartedAt.Equal(started) {
		t.Fatalf("started_at=%v, want %v", run.StartedAt, started)
	}
	if snapshot.VersionNumber != 1 {
		t.Fatalf("version=%d, want 1", snapshot.VersionNumber)
	}
	if snapshot.Name != "Panettone" {
		t.Fatalf("snapshot name=%q", snapshot.Name)
	}
	if len(snapshot.Ingredients) != 2 || len(snapshot.OvenSchedule) != 1 || len(snapshot.MixingSchedule) != 1 {
		t.Fatalf("snapshot did not capture full recipe: %+v", snapshot)
	}

	stored, err := snapshots.GetSnapshot(context.Background(), snapshot.ID)
	if err != nil {
		t.Fatalf("GetSnapshot() err=%v", err)
	}
	if err := domain.EnsureSnapshotImmutable(snapshot, stored); err != nil {
		t.Fatalf("stored snapshot differs: %v", err)
	}
}

func TestStartBackdatesWhenRequested(t *testing.T) {
	svc, _, _ := newTestService(t)
	backdated := time.Date(2024, 1, 9, 22, 30, 0, 0, time.UTC)

	run, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{
		RecipeID:  "rec-1",
		UserID:    "usr-1",
		StartedAt: backdated,
	})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	if !run.StartedAt.Equal(backdated) {
		t.Fatalf("started_at=%v, want %v", run.StartedAt, backdated)
	}
}

func TestStartUnknownRecipeOrUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-missing", UserID: "usr-1"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown recipe err=%v, want ErrNotFound", err)
	}
	if _, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-missing"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown user err=%v, want ErrNotFound", err)
	}
}

func TestStartConflictsWhileRunInProgress(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"}); err != nil {
		t.Fatalf("first Start() err=%v", err)
	}
	_, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-2"})
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("second Start() err=%v, want ErrConflict", err)
	}

	// A different recipe is unaffected.
	if _, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-2", UserID: "usr-2"}); err != nil {
		t.Fatalf("other recipe Start() err=%v", err)
	}
}

func TestConcurrentStartsAdmitExactlyOne(t *testing.T) {
	svc, _, _ := newTestService(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, repo.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded=%d, want exactly 1", succeeded)
	}
}

func TestSnapshotVersionsIncrementAcrossRuns(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run1, snap1, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	if _, err := svc.Abort(ctx, AuditInfo{}, run1.ID, "mixer jammed"); err != nil {
		t.Fatalf("Abort() err=%v", err)
	}
	_, snap2, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("second Start() err=%v", err)
	}
	if snap1.VersionNumber != 1 || snap2.VersionNumber != 2 {
		t.Fatalf("versions=%d,%d, want 1,2", snap1.VersionNumber, snap2.VersionNumber)
	}
}

func TestConcurrentSnapshotVersionsStayMonotonic(t *testing.T) {
	svc, snapshots, _ := newTestService(t)

	// Every concurrent start captures a snapshot before racing for the
	// run slot, so all of them get a version assigned.
	const attempts = 8
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
			if err != nil && !errors.Is(err, repo.ErrConflict) {
				t.Errorf("Start() err=%v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := snapshots.ListSnapshots(context.Background(), "rec-1", 0)
	if err != nil {
		t.Fatalf("ListSnapshots() err=%v", err)
	}
	if len(stored) != attempts {
		t.Fatalf("snapshots=%d, want %d", len(stored), attempts)
	}
	seen := make(map[int64]bool, attempts)
	for _, snapshot := range stored {
		if snapshot.VersionNumber < 1 || snapshot.VersionNumber > attempts {
			t.Fatalf("version %d outside 1..%d", snapshot.VersionNumber, attempts)
		}
		if seen[snapshot.VersionNumber] {
			t.Fatalf("duplicate version %d", snapshot.VersionNumber)
		}
		seen[snapshot.VersionNumber] = true
	}
}

func TestFinishStampsLotCode(t *testing.T) {
	startedAt := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	finishedAt := time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC)
	current := startedAt
	svc, _, _ := newTestService(t, WithClock(func() time.Time { return current }))
	ctx := context.Background()

	run, _, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}

	current = finishedAt
	finished, err := svc.Finish(ctx, AuditInfo{Actor: "mrossi"}, run.ID, "")
	if err != nil {
		t.Fatalf("Finish() err=%v", err)
	}
	if finished.Status != domain.RunStatusCompleted {
		t.Fatalf("status=%s, want completed", finished.Status)
	}
	if finished.FinishedAt == nil || !finished.FinishedAt.Equal(finishedAt) {
		t.Fatalf("finished_at=%v, want %v", finished.FinishedAt, finishedAt)
	}
	want := lot.Encode("Panettone", "Mario Rossi", startedAt, finishedAt)
	if finished.ProductionLot != want {
		t.Fatalf("lot=%q, want %q", finished.ProductionLot, want)
	}
	if !lot.IsValidFormat(finished.ProductionLot) {
		t.Fatalf("lot %q fails format check", finished.ProductionLot)
	}
}

func TestFinishUsesUsernameWhenDisplayNameMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, _, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-2", UserID: "usr-2"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	finished, err := svc.Finish(ctx, AuditInfo{}, run.ID, "")
	if err != nil {
		t.Fatalf("Finish() err=%v", err)
	}
	// lbianchi -> "LI"
	if finished.ProductionLot[2:4] != "LI" {
		t.Fatalf("operator initials=%q, want LI", finished.ProductionLot[2:4])
	}
}

func TestFinishTwiceFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, _, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	first, err := svc.Finish(ctx, AuditInfo{}, run.ID, "")
	if err != nil {
		t.Fatalf("Finish() err=%v", err)
	}
	if _, err := svc.Finish(ctx, AuditInfo{}, run.ID, ""); !errors.Is(err, repo.ErrInvalidState) {
		t.Fatalf("second Finish() err=%v, want ErrInvalidState", err)
	}

	unchanged, err := svc.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() err=%v", err)
	}
	if unchanged.ProductionLot != first.ProductionLot {
		t.Fatalf("lot changed on failed finish: %q -> %q", first.ProductionLot, unchanged.ProductionLot)
	}
}

func TestFinishKeepsNotesWhenEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, _, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1", Notes: "dough extra wet"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	finished, err := svc.Finish(ctx, AuditInfo{}, run.ID, "")
	if err != nil {
		t.Fatalf("Finish() err=%v", err)
	}
	if finished.Notes != "dough extra wet" {
		t.Fatalf("notes=%q, want original preserved", finished.Notes)
	}

	run2, _, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-2", UserID: "usr-1", Notes: "old"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	finished2, err := svc.Finish(ctx, AuditInfo{}, run2.ID, "oven ran hot")
	if err != nil {
		t.Fatalf("Finish() err=%v", err)
	}
	if finished2.Notes != "oven ran hot" {
		t.Fatalf("notes=%q, want replacement", finished2.Notes)
	}
}

func TestMarkLoadedRequiresCompleted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, _, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	if _, err := svc.MarkLoaded(ctx, AuditInfo{}, run.ID, ""); !errors.Is(err, repo.ErrInvalidState) {
		t.Fatalf("MarkLoaded() on in_progress err=%v, want ErrInvalidState", err)
	}
	if _, err := svc.Finish(ctx, AuditInfo{}, run.ID, ""); err != nil {
		t.Fatalf("Finish() err=%v", err)
	}
	loaded, err := svc.MarkLoaded(ctx, AuditInfo{}, run.ID, "van 2")
	if err != nil {
		t.Fatalf("MarkLoaded() err=%v", err)
	}
	if loaded.Status != domain.RunStatusLoaded {
		t.Fatalf("status=%s, want loaded", loaded.Status)
	}
}

func TestAbortKeepsPlaceholderLot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	run, _, err := svc.Start(ctx, AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	aborted, err := svc.Abort(ctx, AuditInfo{}, run.ID, "power cut")
	if err != nil {
		t.Fatalf("Abort() err=%v", err)
	}
	if aborted.Status != domain.RunStatusAborted {
		t.Fatalf("status=%s, want aborted", aborted.Status)
	}
	if aborted.ProductionLot != domain.PlaceholderLot {
		t.Fatalf("lot=%q, want placeholder", aborted.ProductionLot)
	}
	if _, err := svc.Finish(ctx, AuditInfo{}, run.ID, ""); !errors.Is(err, repo.ErrInvalidState) {
		t.Fatalf("Finish() after abort err=%v, want ErrInvalidState", err)
	}
}

func TestArchiveFailureDoesNotFailStart(t *testing.T) {
	archiver := &fakeArchiver{err: errors.New("minio down")}
	svc, _, _ := newTestService(t, WithArchiver(archiver))

	if _, _, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"}); err != nil {
		t.Fatalf("Start() err=%v, archive failures must not surface", err)
	}
}

func TestArchiveReceivesStoredSnapshot(t *testing.T) {
	archiver := &fakeArchiver{}
	svc, _, _ := newTestService(t, WithArchiver(archiver))

	_, snapshot, err := svc.Start(context.Background(), AuditInfo{}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	if len(archiver.snapshots) != 1 {
		t.Fatalf("archived=%d, want 1", len(archiver.snapshots))
	}
	if archiver.snapshots[0].ID != snapshot.ID || archiver.snapshots[0].VersionNumber != snapshot.VersionNumber {
		t.Fatalf("archived snapshot mismatch: %+v", archiver.snapshots[0])
	}
}

func TestLifecycleAuditTrail(t *testing.T) {
	audit := &fakeAudit{}
	svc, _, _ := newTestService(t, WithAudit(audit))
	ctx := context.Background()

	run, _, err := svc.Start(ctx, AuditInfo{Actor: "mrossi"}, StartInput{RecipeID: "rec-1", UserID: "usr-1"})
	if err != nil {
		t.Fatalf("Start() err=%v", err)
	}
	if _, err := svc.Finish(ctx, AuditInfo{Actor: "mrossi"}, run.ID, ""); err != nil {
		t.Fatalf("Finish() err=%v", err)
	}
	if _, err := svc.MarkLoaded(ctx, AuditInfo{Actor: "mrossi"}, run.ID, ""); err != nil {
		t.Fatalf("MarkLoaded() err=%v", err)
	}

	want := []string{"production.started", "production.completed", "production.loaded"}
	got := audit.actions()
	if len(got) != len(want) {
		t.Fatalf("actions=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("actions[%d]=%q, want %q", i, got[i], want[i])
		}
	}
	for _, event := range audit.events {
		if event.ResourceType != "production_run" || event.ResourceID != run.ID {
			t.Fatalf("event resource=%s/%s, want production_run/%s", event.ResourceType, event.ResourceID, run.ID)
		}
	}
}
