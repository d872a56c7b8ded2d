package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"carrental/internal/database"
	"carrental/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testBooking(id string) *models.Booking {
	return &models.Booking{
		ID:              id,
		BookingUID:      "uid-" + id,
		CarID:           "car-1",
		CustomerID:      "cust-1",
		StartDate:       models.NewDate(2030, 3, 1),
		EndDate:         models.NewDate(2030, 3, 3),
		TotalBillAmount: 4500,
		Brand:           "Kia",
		Model:           "Seltos",
		CustomerName:    "tester",
		MobileNo:        "+100",
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	booking := testBooking("b-1")
	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, booking.ID, booking); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upserts() != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upserts())
	}
	if got := sheets.lastBooking(); got == nil || got.StartDate.String() != "2030-03-01" {
		t.Fatalf("booking not carried through payload: %+v", got)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, "b-2", testBooking("b-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now().Add(-time.Second)) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("task should wait for its retry time, got %d pending", len(pending))
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskDelete, "b-3", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	if sheets.deletes() != 1 {
		t.Fatalf("expected delete call, got %d", sheets.deletes())
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	task := models.SyncTask{TaskType: TaskUpsert, BookingID: "b-4", Payload: "{broken"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestSheetsWorker_HandleSheetTask(t *testing.T) {
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(nil, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{Booking: testBooking("b-1")}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upserts() != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upserts())
		}
	})

	t.Run("UpsertWithoutBooking", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{BookingID: "b-1"}); err == nil {
			t.Fatalf("expected error for missing booking")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskDelete, sheetTaskPayload{BookingID: "b-9"}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.deletes() != 1 {
			t.Fatalf("expected 1 delete call, got %d", sheets.deletes())
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, "rename", sheetTaskPayload{BookingID: "b-9"}); err == nil {
			t.Fatalf("expected error for unknown type")
		}
	})

	t.Run("NoSheets", func(t *testing.T) {
		bare := NewSheetsWorker(nil, nil, nil, RetryPolicy{}, nil)
		if err := bare.handleSheetTask(ctx, TaskDelete, sheetTaskPayload{BookingID: "b-9"}); err == nil {
			t.Fatalf("expected error without sheets client")
		}
	})
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2}.withDefaults()
	if p.MaxRetries != 2 || p.InitialDelay != DefaultRetryPolicy.InitialDelay || p.BackoffFactor != 2 {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestSheetsWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("IDFromBooking", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, "", testBooking("b-7")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		task, ok := worker.tryLocalQueue()
		if !ok || task.BookingID != "b-7" {
			t.Fatalf("unexpected task %+v", task)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", "b-1", nil); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("MissingBookingID", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskDelete, "", nil); err == nil {
			t.Fatalf("expected error for missing booking id")
		}
	})

	t.Run("UpsertNeedsBooking", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, "b-1", nil); err == nil {
			t.Fatalf("expected error for missing booking")
		}
	})
}

func TestSheetsWorker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("quota exceeded")}
	worker := NewSheetsWorker(db, sheets, client, RetryPolicy{MaxRetries: 1}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, TaskUpsert, "b-5", testBooking("b-5")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.tryLocalQueue(); ok {
		t.Fatalf("task should go to redis, not the local queue")
	}
	if n, _ := mr.List(redisQueueKey); len(n) != 1 {
		t.Fatalf("expected 1 queued item, got %d", len(n))
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	if task.BookingID != "b-5" {
		t.Fatalf("unexpected booking id %q", task.BookingID)
	}
	worker.processTask(ctx, &task)

	dead, err := mr.List(deadLetterKey)
	if err != nil || len(dead) != 1 {
		t.Fatalf("expected 1 dead-letter entry, got %v (%v)", dead, err)
	}
	var deadTask models.SyncTask
	if err := json.Unmarshal([]byte(dead[0]), &deadTask); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if deadTask.ID != task.ID {
		t.Fatalf("dead letter id %d, want %d", deadTask.ID, task.ID)
	}
}

func TestSheetsWorker_RedisDownFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, client, RetryPolicy{}, nil)

	if err := worker.EnqueueTask(context.Background(), TaskDelete, "b-6", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.tryLocalQueue(); !ok {
		t.Fatalf("expected local fallback when redis is down")
	}
}

func TestSheetsWorker_Start(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	worker.pollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	// persisted without going through EnqueueTask, so only polling finds it
	payload, _ := json.Marshal(sheetTaskPayload{BookingID: "b-8"})
	orphan := models.SyncTask{TaskType: TaskDelete, BookingID: "b-8", Payload: string(payload)}
	if err := db.CreateSyncTask(context.Background(), &orphan); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := worker.EnqueueTask(context.Background(), TaskUpsert, "b-9", testBooking("b-9")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sheets.upserts() < 1 || sheets.deletes() < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("worker did not drain tasks: upserts=%d deletes=%d", sheets.upserts(), sheets.deletes())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop")
	}

	status, _, _ := loadTaskStatus(t, db, orphan.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected polled task completed, got %s", status)
	}
}

// Helpers

type fakeSheets struct {
	mu          sync.Mutex
	err         error
	upsertCalls int
	deleteCalls int
	last        *models.Booking
}

func (f *fakeSheets) UpsertBooking(ctx context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.last = b
	return f.err
}

func (f *fakeSheets) DeleteBookingRow(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.err
}

func (f *fakeSheets) upserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

func (f *fakeSheets) deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

func (f *fakeSheets) lastBooking() *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
