package database

import (
	"context"
	"testing"
	"time"

	"carrental/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "upsert", BookingID: "b-1", Payload: `{"id":"b-1"}`}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.SyncStatusPending, task.Status)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b-1", pending[0].BookingID)
	assert.Nil(t, pending[0].LastError)

	t.Run("RetryInFutureIsNotPending", func(t *testing.T) {
		next := time.Now().UTC().Add(time.Hour)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "boom", &next))

		got, err := db.GetSyncTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.RetryCount)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "boom", *got.LastError)

		pending, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("RetryDueIsPending", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Minute)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "again", &past))

		pending, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("Failed", func(t *testing.T) {
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, "gave up", nil))

		failed, err := db.GetFailedSyncTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.NotNil(t, failed[0].ProcessedAt)
	})

	t.Run("Completed", func(t *testing.T) {
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil))

		got, err := db.GetSyncTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusCompleted, got.Status)
		assert.Nil(t, got.LastError)
	})

	_, err = db.GetSyncTask(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
