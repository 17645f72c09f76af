package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) Reconcile(context.Context) error {
	f.calls++
	return f.err
}

func TestReconcileHandler(t *testing.T) {
	rec := &fakeReconciler{}
	handler := NewReconcileHandler(rec, nil)

	task, err := NewReconcileTask(ReconcilePayload{RequestedBy: 7})
	require.NoError(t, err)
	require.Equal(t, TaskTypeReconcile, task.Type())

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 1, rec.calls)
}

func TestReconcileHandlerSkipsMalformedPayload(t *testing.T) {
	rec := &fakeReconciler{}
	handler := NewReconcileHandler(rec, nil)

	err := handler(context.Background(), asynq.NewTask(TaskTypeReconcile, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, rec.calls)
}

func TestReconcileHandlerPropagatesFailure(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	handler := NewReconcileHandler(rec, nil)

	task, err := NewReconcileTask(ReconcilePayload{})
	require.NoError(t, err)
	require.Error(t, handler(context.Background(), task))
}
