// Package scheduler retries queued writes in the background while online, so
// items that failed with a network error are not stuck until the next
// connectivity transition.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/store"
	syncpkg "github.com/ashaai/fieldsync/internal/sync"
	"github.com/ashaai/fieldsync/internal/sync/queue"
)

// DefaultRetryInterval is how often a drain is attempted while online.
const DefaultRetryInterval = 30 * time.Second

// drainTimeout bounds one background pass.
const drainTimeout = 5 * time.Minute

// Scheduler manages background drain passes.
type Scheduler struct {
	drainer       syncpkg.Drainer
	store         *store.Store
	retryInterval time.Duration
	log           *logging.Logger

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	isRunning  bool
	lastDrain  time.Time
	lastResult *syncpkg.DrainResult
	lastErr    error
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	RetryInterval time.Duration
	Logger        *logging.Logger
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{RetryInterval: DefaultRetryInterval}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(drainer syncpkg.Drainer, st *store.Store, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	interval := config.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return &Scheduler{
		drainer:       drainer,
		store:         st,
		retryInterval: interval,
		log:           logging.OrDefault(config.Logger).With(map[string]interface{}{"component": "scheduler"}),
	}
}

// Start starts the background loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.retryLoop(ctx, stopCh)

	s.log.Info("Background drain scheduler started", map[string]interface{}{
		"interval_seconds": s.retryInterval.Seconds(),
	})
}

// Stop stops the loop and waits for it to exit. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("Background drain scheduler stopped")
}

func (s *Scheduler) retryLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			st := s.store.Snapshot()
			if !st.IsOnline || st.IsSyncing || st.Pending() == 0 {
				continue
			}
			_, _ = s.DrainNow(ctx)
		}
	}
}

// TriggerDrain starts a drain in the background. It returns false when a
// drain cannot start right now.
func (s *Scheduler) TriggerDrain(ctx context.Context) bool {
	st := s.store.Snapshot()
	if !st.IsOnline || st.IsSyncing || st.Pending() == 0 {
		return false
	}
	go func() { _, _ = s.DrainNow(ctx) }()
	return true
}

// DrainNow runs a drain and waits for it.
func (s *Scheduler) DrainNow(ctx context.Context) (*syncpkg.DrainResult, error) {
	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	result, err := s.drainer.Drain(drainCtx)
	if errors.Is(err, syncpkg.ErrDrainSkipped) {
		s.log.Debug("Drain skipped")
		return nil, err
	}

	s.mu.Lock()
	s.lastDrain = time.Now()
	s.lastResult = result
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Drain failed", err)
	}
	return result, err
}

// SchedulerStatus is a point-in-time view of the scheduler and queue.
type SchedulerStatus struct {
	IsRunning     bool                 `json:"isRunning"`
	IsOnline      bool                 `json:"isOnline"`
	IsSyncing     bool                 `json:"isSyncing"`
	LastDrainTime *time.Time           `json:"lastDrainTime,omitempty"`
	LastResult    *syncpkg.DrainResult `json:"lastResult,omitempty"`
	LastError     string               `json:"lastError,omitempty"`
	PendingItems  int                  `json:"pendingItems"`
	QueueStats    queue.Stats          `json:"queueStats"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus() SchedulerStatus {
	st := s.store.Snapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		IsRunning:    s.isRunning,
		IsOnline:     st.IsOnline,
		IsSyncing:    st.IsSyncing,
		LastResult:   s.lastResult,
		PendingItems: st.Pending(),
		QueueStats:   queue.GetStats(st.SyncQueue),
	}
	if !s.lastDrain.IsZero() {
		t := s.lastDrain
		status.LastDrainTime = &t
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
