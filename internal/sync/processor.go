package sync

import (
	"context"
	"time"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/metrics"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/store"
	"github.com/ashaai/fieldsync/internal/sync/queue"
)

// ErrDrainSkipped is returned when a drain could not claim the queue.
var ErrDrainSkipped = apperrors.New(apperrors.ErrSyncInProgress, "drain skipped: offline, already syncing or queue empty")

// Replayer re-sends a queued item to the backend.
type Replayer interface {
	Replay(ctx context.Context, item models.SyncQueueItem) error
}

// DrainResult represents the result of a drain pass.
type DrainResult struct {
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	Duration   time.Duration `json:"duration"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Conflicts  int           `json:"conflicts"`
	Retried    int           `json:"retried"`
	Dropped    int           `json:"dropped"`
	Reconciled bool          `json:"reconciled"`
}

// Processor drains the sync queue.
type Processor struct {
	store      *store.Store
	replayer   Replayer
	reconciler *Reconciler
	policy     queue.Policy
	metrics    *metrics.Metrics
	observers  []Observer
	log        *logging.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithReconciler runs r once after every pass that shrank the queue.
func WithReconciler(r *Reconciler) ProcessorOption {
	return func(p *Processor) { p.reconciler = r }
}

// WithPolicy overrides the retry policy.
func WithPolicy(policy queue.Policy) ProcessorOption {
	return func(p *Processor) { p.policy = policy }
}

func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) { p.observers = append(p.observers, o) }
}

func WithLogger(l *logging.Logger) ProcessorOption {
	return func(p *Processor) { p.log = l }
}

// NewProcessor creates a Processor over st that replays items through r.
func NewProcessor(st *store.Store, r Replayer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:    st,
		replayer: r,
		policy:   queue.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewUnregistered()
	}
	p.log = logging.OrDefault(p.log).With(map[string]interface{}{"component": "processor"})
	return p
}

// Drain replays a snapshot of the queue front to back. Items that are still
// pending go back to the queue ahead of anything enqueued during the pass.
// When the queue shrank, a reconciliation fetch follows.
func (p *Processor) Drain(ctx context.Context) (*DrainResult, error) {
	items, ok := p.store.BeginSync()
	if !ok {
		return nil, ErrDrainSkipped
	}

	result := &DrainResult{StartTime: time.Now()}
	p.metrics.IncrementDrains()
	for _, o := range p.observers {
		o.DrainStarted(len(items))
	}

	p.log.Info("Drain started", map[string]interface{}{"pending": len(items)})

	var plan queue.Plan
	for _, item := range items {
		// Items left unprocessed stay queued untouched.
		if ctx.Err() != nil {
			break
		}
		err := p.replayer.Replay(ctx, item)
		next, out := p.policy.Transition(item, err)
		plan.Record(item, next, out)
		p.observe(item, next, out)
	}

	p.store.EndSync(plan.Survivors, plan.ConsumedIDs())

	result.Processed = len(plan.ConsumedIDs())
	result.Succeeded = len(plan.Succeeded)
	result.Conflicts = len(plan.Conflicts)
	result.Retried = len(plan.Survivors)
	result.Dropped = len(plan.Dropped)

	if plan.Shrank() && p.reconciler != nil {
		if _, err := p.reconciler.Fetch(ctx, true); err != nil {
			p.log.Debug("Reconciliation after drain skipped", map[string]interface{}{"error": err.Error()})
		} else {
			result.Reconciled = true
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	p.log.Info("Drain completed", map[string]interface{}{
		"succeeded":   result.Succeeded,
		"conflicts":   result.Conflicts,
		"retried":     result.Retried,
		"dropped":     result.Dropped,
		"reconciled":  result.Reconciled,
		"duration_ms": result.Duration.Milliseconds(),
	})
	for _, o := range p.observers {
		o.DrainCompleted(result)
	}
	return result, nil
}

func (p *Processor) observe(item, next models.SyncQueueItem, out queue.Outcome) {
	switch out.Status {
	case queue.QueueStatusSucceeded:
		if out.Conflict {
			p.metrics.ObserveDrainItem(metrics.OutcomeConflict)
			p.log.Debug("Queue item already applied", map[string]interface{}{
				"item_id": item.ID,
				"kind":    string(item.Type),
			})
			return
		}
		p.metrics.ObserveDrainItem(metrics.OutcomeSucceeded)
	case queue.QueueStatusDropped:
		p.metrics.ObserveDrainItem(metrics.OutcomeDropped)
		p.log.Warn("Dropping queue item after repeated failures", map[string]interface{}{
			"item_id":     item.ID,
			"kind":        string(item.Type),
			"retry_count": next.RetryCount,
			"error":       errorText(out.Err),
			"payload":     string(item.Payload),
		})
	default:
		p.metrics.ObserveDrainItem(metrics.OutcomeRetried)
		p.log.Debug("Queue item will be retried", map[string]interface{}{
			"item_id":     item.ID,
			"kind":        string(item.Type),
			"retry_count": next.RetryCount,
			"error_kind":  string(out.Kind),
		})
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
