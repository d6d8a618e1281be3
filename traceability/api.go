package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forno-labs/forno-go/internal/domain"
	"github.com/forno-labs/forno-go/internal/platform/auth"
	"github.com/forno-labs/forno-go/internal/platform/metrics"
	"github.com/forno-labs/forno-go/internal/platform/policy"
	"github.com/forno-labs/forno-go/internal/repo"
	"github.com/forno-labs/forno-go/internal/service/production"
	"github.com/forno-labs/forno-go/internal/service/reconcile"
)

type traceabilityAPI struct {
	logger     *slog.Logger
	production *production.Service
	reconcile  *reconcile.Service
	policy     *policy.Spec
	metrics    *metrics.Metrics
}

func newTraceabilityAPI(logger *slog.Logger, productionSvc *production.Service, reconcileSvc *reconcile.Service, policySpec *policy.Spec, m *metrics.Metrics) *traceabilityAPI {
	return &traceabilityAPI{
		logger:     logger,
		production: productionSvc,
		reconcile:  reconcileSvc,
		policy:     policySpec,
		metrics:    m,
	}
}

func (api *traceabilityAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/recipes", api.handleListRecipes)
	mux.HandleFunc("POST /api/v1/recipes/{recipe_id}/production-runs", api.handleStartRun)

	mux.HandleFunc("GET /api/v1/production-runs", api.handleListRuns)
	mux.HandleFunc("GET /api/v1/production-runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("POST /api/v1/production-runs/{run_id}/finish", api.handleFinishRun)
	mux.HandleFunc("POST /api/v1/production-runs/{run_id}/load", api.handleLoadRun)
	mux.HandleFunc("POST /api/v1/production-runs/{run_id}/abort", api.handleAbortRun)

	mux.HandleFunc("GET /api/v1/recipe-snapshots/{snapshot_id}", api.handleGetSnapshot)

	mux.HandleFunc("POST /api/v1/lots/decode", api.handleDecodeLot)
}

type recipeResponse struct {
	RecipeID         string    `json:"recipe_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	YieldCount       int       `json:"yield_count"`
	YieldWeightGrams int       `json:"yield_weight_grams"`
	RestMinutes      int       `json:"rest_minutes"`
	CreatedAt        time.Time `json:"created_at"`
}

type runResponse struct {
	RunID           string     `json:"run_id"`
	RecipeID        string     `json:"recipe_id"`
	RecipeVersionID string     `json:"recipe_version_id"`
	UserID          string     `json:"user_id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Status          string     `json:"status"`
	ProductionLot   string     `json:"production_lot"`
	Notes           string     `json:"notes,omitempty"`
}

type snapshotResponse struct {
	SnapshotID       string                    `json:"snapshot_id"`
	RecipeID         string                    `json:"recipe_id"`
	VersionNumber    int64                     `json:"version_number"`
	Name             string                    `json:"name"`
	Description      string                    `json:"description,omitempty"`
	YieldCount       int                       `json:"yield_count"`
	YieldWeightGrams int                       `json:"yield_weight_grams"`
	RestMinutes      int                       `json:"rest_minutes"`
	Ingredients      []domain.RecipeIngredient `json:"ingredients"`
	OvenSchedule     []domain.OvenPhase        `json:"oven_schedule"`
	MixingSchedule   []domain.MixingPhase      `json:"mixing_schedule"`
	CreatedAt        time.Time                 `json:"created_at"`
	CreatedBy        string                    `json:"created_by"`
}

type candidateResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type decodeLotResponse struct {
	Code             string              `json:"code"`
	RecipeInitials   string              `json:"recipe_initials"`
	UserInitials     string              `json:"user_initials"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	Run              *runResponse        `json:"run,omitempty"`
	RecipeName       string              `json:"recipe_name,omitempty"`
	UserName         string              `json:"user_name,omitempty"`
	CandidateRecipes []candidateResponse `json:"candidate_recipes"`
	CandidateUsers   []candidateResponse `json:"candidate_users"`
}

type startRunRequest struct {
	UserID    string     `json:"user_id"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type runActionRequest struct {
	Notes string `json:"notes,omitempty"`
}

type decodeLotRequest struct {
	Code string `json:"code"`
}

func (api *traceabilityAPI) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	recipes, err := api.production.ListRecipes(r.Context(), repo.RecipeFilter{
		Name:  strings.TrimSpace(r.URL.Query().Get("name")),
		Limit: limit,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		out = append(out, recipeResponse{
			RecipeID:         recipe.ID,
			Name:             recipe.Name,
			Description:      recipe.Description,
			YieldCount:       recipe.YieldCount,
			YieldWeightGrams: recipe.YieldWeightGrams,
			RestMinutes:      recipe.RestMinutes,
			CreatedAt:        recipe.CreatedAt,
		})
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"recipes": out})
}

func (api *traceabilityAPI) handleStartRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	recipeID := strings.TrimSpace(r.PathValue("recipe_id"))

	var req startRunRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "user_id_required")
		return
	}

	if !api.authorize(w, r, identity, "production.start", policy.RecipeContext{RecipeID: recipeID}, policy.RunContext{}) {
		return
	}

	in := production.StartInput{
		RecipeID: recipeID,
		UserID:   strings.TrimSpace(req.UserID),
		Notes:    req.Notes,
	}
	if req.StartedAt != nil {
		in.StartedAt = *req.StartedAt
	}

	run, snapshot, err := api.production.Start(r.Context(), auditInfo(identity, r), in)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	if api.metrics != nil {
		api.metrics.RunsStarted.Inc()
	}

	w.Header().Set("Location", "/api/v1/production-runs/"+run.ID)
	api.writeJSON(w, http.StatusCreated, map[string]any{
		"run":      toRunResponse(run),
		"snapshot": toSnapshotResponse(snapshot),
	})
}

func (api *traceabilityAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	filter := repo.RunFilter{
		RecipeID: strings.TrimSpace(r.URL.Query().Get("recipe_id")),
		Limit:    limit,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.NormalizeRunStatus(raw)
		if status == "" {
			api.writeError(w, r, http.StatusBadRequest, "invalid_status")
			return
		}
		filter.Status = status
	}

	runs, err := api.production.ListRuns(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (api *traceabilityAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := api.production.GetRun(r.Context(), r.PathValue("run_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (api *traceabilityAPI) handleFinishRun(w http.ResponseWriter, r *http.Request) {
	api.handleRunTransition(w, r, "production.finish", func(info production.AuditInfo, runID, notes string) (domain.ProductionRun, error) {
		run, err := api.production.Finish(r.Context(), info, runID, notes)
		if err == nil && api.metrics != nil {
			api.metrics.RunsCompleted.Inc()
		}
		return run, err
	})
}

func (api *traceabilityAPI) handleLoadRun(w http.ResponseWriter, r *http.Request) {
	api.handleRunTransition(w, r, "production.load", func(info production.AuditInfo, runID, notes string) (domain.ProductionRun, error) {
		run, err := api.production.MarkLoaded(r.Context(), info, runID, notes)
		if err == nil && api.metrics != nil {
			api.metrics.RunsLoaded.Inc()
		}
		return run, err
	})
}

func (api *traceabilityAPI) handleAbortRun(w http.ResponseWriter, r *http.Request) {
	api.handleRunTransition(w, r, "production.abort", func(info production.AuditInfo, runID, notes string) (domain.ProductionRun, error) {
		run, err := api.production.Abort(r.Context(), info, runID, notes)
		if err == nil && api.metrics != nil {
			api.metrics.RunsAborted.Inc()
		}
		return run, err
	})
}

func (api *traceabilityAPI) handleRunTransition(w http.ResponseWriter, r *http.Request, action string, transition func(info production.AuditInfo, runID, notes string) (domain.ProductionRun, error)) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	runID := strings.TrimSpace(r.PathValue("run_id"))

	var req runActionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	current, err := api.production.GetRun(r.Context(), runID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	if !api.authorize(w, r, identity, action,
		policy.RecipeContext{RecipeID: current.RecipeID},
		policy.RunContext{RunID: current.ID, Status: string(current.Status)},
	) {
		return
	}

	run, err := transition(auditInfo(identity, r), runID, req.Notes)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (api *traceabilityAPI) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := api.production.GetSnapshot(r.Context(), r.PathValue("snapshot_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}

func (api *traceabilityAPI) handleDecodeLot(w http.ResponseWriter, r *http.Request) {
	var req decodeLotRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	resolution, err := api.reconcile.Resolve(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidLotCode) {
			api.countDecode("invalid")
			api.writeError(w, r, http.StatusBadRequest, "invalid_lot_code")
			return
		}
		api.writeServiceError(w, r, err)
		return
	}

	resp := decodeLotResponse{
		Code:             strings.ToUpper(strings.TrimSpace(req.Code)),
		RecipeInitials:   resolution.Decoded.RecipeInitials,
		UserInitials:     resolution.Decoded.UserInitials,
		StartedAt:        resolution.Decoded.StartedAt,
		FinishedAt:       resolution.Decoded.FinishedAt,
		RecipeName:       resolution.RecipeName,
		UserName:         resolution.UserName,
		CandidateRecipes: make([]candidateResponse, 0, len(resolution.CandidateRecipes)),
		CandidateUsers:   make([]candidateResponse, 0, len(resolution.CandidateUsers)),
	}
	if resolution.Run != nil {
		run := toRunResponse(*resolution.Run)
		resp.Run = &run
		api.countDecode("match")
	} else {
		api.countDecode("no_match")
	}
	for _, candidate := range resolution.CandidateRecipes {
		resp.CandidateRecipes = append(resp.CandidateRecipes, candidateResponse(candidate))
	}
	for _, candidate := range resolution.CandidateUsers {
		resp.CandidateUsers = append(resp.CandidateUsers, candidateResponse(candidate))
	}
	api.writeJSON(w, http.StatusOK, resp)
}

// authorize consults the capability policy when one is loaded. The RBAC
// middleware has already gated by role; the policy adds per-recipe and
// per-action rules on top.
func (api *traceabilityAPI) authorize(w http.ResponseWriter, r *http.Request, identity auth.Identity, action string, recipeCtx policy.RecipeContext, runCtx policy.RunContext) bool {
	if api.policy == nil {
		return true
	}
	allowed, decision, err := policy.Allowed(*api.policy, policy.Context{
		Action: action,
		Actor: policy.ActorContext{
			Subject: identity.Subject,
			Email:   identity.Email,
			Roles:   identity.Roles,
		},
		Recipe: recipeCtx,
		Run:    runCtx,
	})
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return false
	}
	if !allowed {
		if api.logger != nil {
			api.logger.Warn("capability denied",
				"action", action,
				"subject", identity.Subject,
				"rule_id", decision.RuleID,
				"request_id", r.Header.Get("X-Request-Id"),
			)
		}
		api.writeError(w, r, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (api *traceabilityAPI) countDecode(result string) {
	if api.metrics != nil {
		api.metrics.LotDecodes.WithLabelValues(result).Inc()
	}
}

func (api *traceabilityAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrConflict):
		api.writeError(w, r, http.StatusConflict, "run_in_progress")
	case errors.Is(err, repo.ErrInvalidState):
		api.writeError(w, r, http.StatusConflict, "invalid_state")
	default:
		if api.logger != nil {
			api.logger.Error("request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Header.Get("X-Request-Id"),
				"error", err.Error(),
			)
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func toRunResponse(run domain.ProductionRun) runResponse {
	return runResponse{
		RunID:           run.ID,
		RecipeID:        run.RecipeID,
		RecipeVersionID: run.RecipeVersionID,
		UserID:          run.UserID,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		Status:          string(run.Status),
		ProductionLot:   run.ProductionLot,
		Notes:           run.Notes,
	}
}

func toSnapshotResponse(snapshot domain.RecipeSnapshot) snapshotResponse {
	return snapshotResponse{
		SnapshotID:       snapshot.ID,
		RecipeID:         snapshot.RecipeID,
		VersionNumber:    snapshot.VersionNumber,
		Name:             snapshot.Name,
		Description:      snapshot.Description,
		YieldCount:       snapshot.YieldCount,
		YieldWeightGrams: snapshot.YieldWeightGrams,
		RestMinutes:      snapshot.RestMinutes,
		Ingredients:      snapshot.Ingredients,
		OvenSchedule:     snapshot.OvenSchedule,
		MixingSchedule:   snapshot.MixingSchedule,
		CreatedAt:        snapshot.CreatedAt,
		CreatedBy:        snapshot.CreatedBy,
	}
}

func auditInfo(identity auth.Identity, r *http.Request) production.AuditInfo {
	return production.AuditInfo{
		Actor:     identity.Subject,
		RequestID: r.Header.Get("X-Request-Id"),
		UserAgent: r.UserAgent(),
		IP:        requestIP(r.RemoteAddr),
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *traceabilityAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *traceabilityAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
