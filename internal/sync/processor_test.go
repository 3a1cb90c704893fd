package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashaai/fieldsync/internal/backend"
	"github.com/ashaai/fieldsync/internal/backend/memory"
	"github.com/ashaai/fieldsync/internal/codec"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/metrics"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/remote"
	"github.com/ashaai/fieldsync/internal/store"
	"github.com/ashaai/fieldsync/internal/sync/queue"
)

func quietLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

type harness struct {
	store   *store.Store
	backend *memory.Backend
	proc    *Processor
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, opts ...ProcessorOption) *harness {
	t.Helper()
	l := quietLogger()
	st := store.New(store.WithLogger(l))
	st.SetOnline(true)
	mb := memory.New()
	m := metrics.NewUnregistered()
	rec := NewReconciler(mb, st, WithReconcileLogger(l), WithReconcileMetrics(m))
	opts = append([]ProcessorOption{WithReconciler(rec), WithLogger(l), WithMetrics(m)}, opts...)
	return &harness{
		store:   st,
		backend: mb,
		proc:    NewProcessor(st, remote.New(mb), opts...),
		metrics: m,
	}
}

func healthLog(id string) models.HealthLog {
	return models.HealthLog{
		ID:            id,
		BeneficiaryID: "b1",
		Date:          "2026-10-18T09:00:00Z",
		BPSystolic:    120,
		BPDiastolic:   80,
		Symptoms:      []string{"headache"},
	}
}

func healthItem(id string, retries int) models.SyncQueueItem {
	payload, _ := json.Marshal(healthLog(id))
	item := queue.NewItem(models.OpAddHealthLog, payload, time.Now())
	item.RetryCount = retries
	return item
}

func queueIDs(st *store.Store) []string {
	var ids []string
	for _, item := range st.Snapshot().SyncQueue {
		ids = append(ids, item.ID)
	}
	return ids
}

// =====================================================
// Guard
// =====================================================

func TestDrain_skipped(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.proc.Drain(context.Background())
		assert.ErrorIs(t, err, ErrDrainSkipped)
	})

	t.Run("offline", func(t *testing.T) {
		h := newHarness(t)
		h.store.Enqueue(healthItem("h1", 0))
		h.store.SetOnline(false)

		_, err := h.proc.Drain(context.Background())
		assert.ErrorIs(t, err, ErrDrainSkipped)
		assert.Len(t, h.store.Snapshot().SyncQueue, 1)
		assert.Zero(t, h.backend.Calls(memory.MethodInsert))
	})
}

func TestDrain_concurrentTriggersSendOnce(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"h1", "h2", "h3"} {
		h.store.Enqueue(healthItem(id, 0))
	}

	release := h.backend.Hold()
	done := make(chan error, 1)
	go func() {
		_, err := h.proc.Drain(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.store.Snapshot().IsSyncing }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		_, err := h.proc.Drain(context.Background())
		assert.ErrorIs(t, err, ErrDrainSkipped)
	}
	release()
	require.NoError(t, <-done)

	assert.Equal(t, 3, h.backend.Calls(memory.MethodInsert))
	assert.Len(t, h.backend.Rows(backend.TableHealthLogs), 3)
	assert.Empty(t, h.store.Snapshot().SyncQueue)
	assert.False(t, h.store.Snapshot().IsSyncing)
}

// =====================================================
// Outcomes
// =====================================================

func TestDrain_success(t *testing.T) {
	h := newHarness(t)
	h.store.Update(func(st *store.State) {
		st.HealthLogs = append(st.HealthLogs, healthLog("h1"), healthLog("h2"))
	})
	h.store.Enqueue(healthItem("h1", 0))
	h.store.Enqueue(healthItem("h2", 0))

	result, err := h.proc.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Processed)
	assert.True(t, result.Reconciled)
	assert.Empty(t, h.store.Snapshot().SyncQueue)
	assert.Len(t, h.backend.Rows(backend.TableHealthLogs), 2)
	assert.Equal(t, 1, h.backend.Calls(memory.MethodList)/len(backend.Tables))
	assert.Len(t, h.store.Snapshot().HealthLogs, 2)
}

func TestDrain_conflictIsNotDuplicated(t *testing.T) {
	h := newHarness(t)
	row, err := codec.Encode(codec.HealthLogs, healthLog("h1"))
	require.NoError(t, err)
	require.NoError(t, h.backend.Seed(backend.TableHealthLogs, row))
	h.store.Enqueue(healthItem("h1", 2))

	result, err := h.proc.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Conflicts)
	assert.Zero(t, result.Succeeded)
	assert.Empty(t, h.store.Snapshot().SyncQueue)
	assert.Len(t, h.backend.Rows(backend.TableHealthLogs), 1)
	assert.True(t, result.Reconciled)
}

func TestDrain_boundedFailure(t *testing.T) {
	tests := []struct {
		name        string
		retryCount  int
		wantQueue   int
		wantDropped int
		wantRetry   int
	}{
		{"first failure retried", 0, 1, 0, 1},
		{"at ceiling retried", 4, 1, 0, 5},
		{"past ceiling dropped", 5, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.Enqueue(healthItem("h1", tt.retryCount))
			h.backend.FailNext(1, backend.StatusError("insert health_logs", 500, "boom"))

			result, err := h.proc.Drain(context.Background())
			require.NoError(t, err)

			q := h.store.Snapshot().SyncQueue
			require.Len(t, q, tt.wantQueue)
			assert.Equal(t, tt.wantDropped, result.Dropped)
			if tt.wantQueue > 0 {
				assert.Equal(t, tt.wantRetry, q[0].RetryCount)
			}
			assert.Equal(t, tt.wantDropped > 0, result.Reconciled)
		})
	}
}

// A reconcile after a partial pass replaces local rows wholesale, so a row
// whose write is still queued is hidden until its replay lands.
func TestDrain_reconcileHidesQueuedRowUntilReplay(t *testing.T) {
	h := newHarness(t)
	h.store.Update(func(st *store.State) {
		st.HealthLogs = append(st.HealthLogs, healthLog("pending"), healthLog("sent"))
	})
	h.store.Enqueue(healthItem("pending", 0))
	h.store.Enqueue(healthItem("sent", 0))
	h.backend.FailNext(1, backend.StatusError("insert health_logs", 500, "boom"))

	localIDs := func() []string {
		var ids []string
		for _, l := range h.store.Snapshot().HealthLogs {
			ids = append(ids, l.ID)
		}
		return ids
	}

	result, err := h.proc.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Retried)
	assert.True(t, result.Reconciled)
	require.Len(t, h.store.Snapshot().SyncQueue, 1)
	assert.Equal(t, []string{"sent"}, localIDs(), "queued row replaced by the backend copy")

	result, err = h.proc.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.True(t, result.Reconciled)
	assert.Empty(t, h.store.Snapshot().SyncQueue)
	assert.ElementsMatch(t, []string{"pending", "sent"}, localIDs())
}

func TestDrain_alwaysFailingItemGetsSixAttempts(t *testing.T) {
	h := newHarness(t)
	h.store.Enqueue(healthItem("h1", 0))
	h.backend.FailNext(100, backend.StatusError("insert health_logs", 500, "boom"))

	passes := 0
	for len(h.store.Snapshot().SyncQueue) > 0 && passes < 20 {
		_, err := h.proc.Drain(context.Background())
		require.NoError(t, err)
		passes++
	}

	assert.Equal(t, queue.DefaultMaxRetries+1, passes)
	assert.Equal(t, queue.DefaultMaxRetries+1, h.backend.Calls(memory.MethodInsert))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.DrainItems.WithLabelValues(metrics.OutcomeDropped)))
}

func TestDrain_networkFailureNeverDropped(t *testing.T) {
	h := newHarness(t)
	h.store.Enqueue(healthItem("h1", 40))
	h.backend.SetOffline(true)

	result, err := h.proc.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Retried)
	assert.False(t, result.Reconciled)
	q := h.store.Snapshot().SyncQueue
	require.Len(t, q, 1)
	assert.Equal(t, 41, q[0].RetryCount)
	assert.Zero(t, h.backend.Calls(memory.MethodList))
}

func TestDrain_unknownKindIsBounded(t *testing.T) {
	h := newHarness(t)
	item := healthItem("h1", 5)
	item.Type = "NOT_A_KIND"
	h.store.Enqueue(item)

	result, err := h.proc.Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Dropped)
	assert.Empty(t, h.store.Snapshot().SyncQueue)
}

// =====================================================
// Ordering
// =====================================================

func TestDrain_enqueuedDuringPassGoesAfterSurvivors(t *testing.T) {
	h := newHarness(t)
	a := healthItem("a", 0)
	b := healthItem("b", 0)
	h.store.Enqueue(a)
	h.store.Enqueue(b)
	h.backend.FailNext(1, backend.NetworkError("insert", errors.New("reset")))

	release := h.backend.Hold()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.proc.Drain(context.Background())
	}()

	require.Eventually(t, func() bool { return h.backend.Calls(memory.MethodInsert) >= 1 }, time.Second, time.Millisecond)
	c := healthItem("c", 0)
	h.store.Enqueue(c)
	release()
	<-done

	assert.Equal(t, []string{a.ID, c.ID}, queueIDs(h.store))
}

func TestDrain_cancelledContextLeavesQueue(t *testing.T) {
	h := newHarness(t)
	h.store.Enqueue(healthItem("h1", 0))
	h.store.Enqueue(healthItem("h2", 0))
	before := queueIDs(h.store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := h.proc.Drain(ctx)
	require.NoError(t, err)

	assert.Zero(t, result.Processed)
	assert.Equal(t, before, queueIDs(h.store))
	assert.False(t, h.store.Snapshot().IsSyncing)
}

// =====================================================
// Observers
// =====================================================

type recordingObserver struct {
	started   atomic.Int32
	completed atomic.Int32
	last      atomic.Pointer[DrainResult]
}

func (o *recordingObserver) DrainStarted(int) { o.started.Add(1) }

func (o *recordingObserver) DrainCompleted(r *DrainResult) {
	o.completed.Add(1)
	o.last.Store(r)
}

func TestDrain_notifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	h := newHarness(t, WithObserver(obs))
	h.store.Enqueue(healthItem("h1", 0))

	_, err := h.proc.Drain(context.Background())
	require.NoError(t, err)
	_, err = h.proc.Drain(context.Background())
	require.ErrorIs(t, err, ErrDrainSkipped)

	assert.Equal(t, int32(1), obs.started.Load())
	assert.Equal(t, int32(1), obs.completed.Load())
	assert.Equal(t, 1, obs.last.Load().Succeeded)
}

func TestErrDrainSkipped_code(t *testing.T) {
	assert.True(t, apperrors.Is(ErrDrainSkipped, apperrors.ErrSyncInProgress))
}
