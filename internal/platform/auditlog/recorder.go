package auditlog

import (
	"context"
	"log/slog"
)

// Recorder appends audit events without failing the calling operation.
// A run that completed in the database stays completed even when the
// audit insert fails; the failure is logged instead.
type Recorder struct {
	DB     QueryRower
	Logger *slog.Logger
}

func NewRecorder(db QueryRower, logger *slog.Logger) *Recorder {
	if db == nil {
		return nil
	}
	return &Recorder{DB: db, Logger: logger}
}

func (r *Recorder) Append(ctx context.Context, event Event) {
	if r == nil || r.DB == nil {
		return
	}
	if _, err := Insert(ctx, r.DB, event); err != nil && r.Logger != nil {
		r.Logger.Warn("audit append failed",
			"action", event.Action,
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID,
			"error", err.Error(),
		)
	}
}
