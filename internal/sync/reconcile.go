package sync

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashaai/fieldsync/internal/backend"
	"github.com/ashaai/fieldsync/internal/codec"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/metrics"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/store"
)

// DefaultFetchConcurrency bounds parallel collection fetches.
const DefaultFetchConcurrency = 4

// ErrFetchSkipped is returned when a fetch is already running or the store is offline.
var ErrFetchSkipped = apperrors.New(apperrors.ErrSyncInProgress, "reconciliation skipped")

// ReconcileResult reports which collections were replaced.
type ReconcileResult struct {
	Replaced []string      `json:"replaced"`
	Failed   []string      `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Reconciler replaces local collections with the backend's authoritative copy.
type Reconciler struct {
	backend     backend.Backend
	store       *store.Store
	concurrency int
	metrics     *metrics.Metrics
	log         *logging.Logger

	fetching atomic.Int32
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithFetchConcurrency limits concurrent collection fetches.
func WithFetchConcurrency(n int) ReconcilerOption {
	return func(r *Reconciler) { r.concurrency = n }
}

func WithReconcileMetrics(m *metrics.Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

func WithReconcileLogger(l *logging.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.log = l }
}

// NewReconciler creates a Reconciler.
func NewReconciler(b backend.Backend, st *store.Store, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{backend: b, store: st, concurrency: DefaultFetchConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultFetchConcurrency
	}
	if r.metrics == nil {
		r.metrics = metrics.NewUnregistered()
	}
	r.log = logging.OrDefault(r.log).With(map[string]interface{}{"component": "reconciler"})
	return r
}

// IsFetching reports whether a fetch is running.
func (r *Reconciler) IsFetching() bool {
	return r.fetching.Load() > 0
}

// collection fetches one table and returns the store mutation that installs it.
type collection struct {
	table codec.Table
	fetch func(ctx context.Context) (func(*store.State), error)
}

func fetchInto[T any](b backend.Backend, t codec.Table, set func(*store.State, []T)) collection {
	return collection{
		table: t,
		fetch: func(ctx context.Context) (func(*store.State), error) {
			rows, err := b.List(ctx, t.Name)
			if err != nil {
				return nil, err
			}
			items, err := codec.DecodeAll[T](t, rows)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInvalid, "decode "+t.Name, err)
			}
			return func(st *store.State) { set(st, items) }, nil
		},
	}
}

func (r *Reconciler) collections() []collection {
	b := r.backend
	return []collection{
		fetchInto(b, codec.Profiles, func(st *store.State, v []models.BeneficiaryProfile) { st.Beneficiaries = v }),
		fetchInto(b, codec.Children, func(st *store.State, v []models.Child) { st.Children = v }),
		fetchInto(b, codec.Schemes, func(st *store.State, v []models.Scheme) { st.Schemes = v }),
		fetchInto(b, codec.Enrollments, func(st *store.State, v []models.Enrollment) { st.Enrollments = v }),
		fetchInto(b, codec.DailyLogs, func(st *store.State, v []models.DailyLog) { st.DailyLogs = v }),
		fetchInto(b, codec.HealthLogs, func(st *store.State, v []models.HealthLog) { st.HealthLogs = v }),
		fetchInto(b, codec.Alerts, func(st *store.State, v []models.Alert) {
			sortNewestFirst(v)
			st.Alerts = v
		}),
	}
}

// sortNewestFirst orders alerts by timestamp, most recent first. Alerts with
// an unparsable timestamp sort last.
func sortNewestFirst(alerts []models.Alert) {
	at := func(a models.Alert) time.Time {
		t, err := time.Parse(time.RFC3339Nano, a.Timestamp)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	slices.SortStableFunc(alerts, func(a, b models.Alert) int {
		return at(b).Compare(at(a))
	})
}

// Fetch pulls every collection concurrently and replaces the local copies in
// a single store transition. A collection whose fetch fails keeps its local
// value. Without force, a fetch already in flight makes this call a no-op.
func (r *Reconciler) Fetch(ctx context.Context, force bool) (*ReconcileResult, error) {
	if !r.store.Snapshot().IsOnline {
		r.metrics.ObserveReconcile(metrics.ReconcileSkipped)
		return nil, ErrFetchSkipped
	}
	if n := r.fetching.Add(1); n > 1 && !force {
		r.fetching.Add(-1)
		r.metrics.ObserveReconcile(metrics.ReconcileSkipped)
		return nil, ErrFetchSkipped
	}
	defer r.fetching.Add(-1)

	start := time.Now()
	cols := r.collections()
	applies := make([]func(*store.State), len(cols))
	errs := make([]error, len(cols))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, c := range cols {
		g.Go(func() error {
			applies[i], errs[i] = c.fetch(ctx)
			return nil
		})
	}
	_ = g.Wait()

	result := &ReconcileResult{}
	for i, c := range cols {
		if errs[i] != nil {
			result.Failed = append(result.Failed, c.table.Name)
			r.metrics.IncrementReconcileFailure(c.table.Name)
			r.log.Warn("Collection fetch failed, keeping local copy", map[string]interface{}{
				"collection": c.table.Name,
				"error":      errs[i].Error(),
			})
			continue
		}
		result.Replaced = append(result.Replaced, c.table.Name)
	}

	r.store.Update(func(st *store.State) {
		for _, apply := range applies {
			if apply != nil {
				apply(st)
			}
		}
	})

	result.Duration = time.Since(start)
	if len(result.Failed) > 0 {
		r.metrics.ObserveReconcile(metrics.ReconcilePartial)
	} else {
		r.metrics.ObserveReconcile(metrics.ReconcileOK)
	}
	r.log.Info("Reconciliation completed", map[string]interface{}{
		"replaced":    len(result.Replaced),
		"failed":      len(result.Failed),
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}
