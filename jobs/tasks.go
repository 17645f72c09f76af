package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeReconcile re-runs the catalog and system-role seeding.
	TaskTypeReconcile = "rbac:reconcile"
)

// ReconcilePayload describes an on-demand reconciliation request.
type ReconcilePayload struct {
	RequestedBy int64 `json:"requestedBy"`
}

// NewReconcileTask constructs an Asynq task.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReconcile, data), nil
}

// Reconciler re-applies the built-in catalog; satisfied by the seed package.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// NewReconcileHandler processes TaskTypeReconcile tasks.
func NewReconcileHandler(reconciler Reconciler, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReconcilePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if logger != nil {
			logger.Info("reconcile requested", slog.Int64("requested_by", payload.RequestedBy))
		}
		return reconciler.Reconcile(ctx)
	}
}
