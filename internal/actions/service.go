// Package actions holds the domain operation handlers.
//
// Every handler applies its local effect first, then attempts the remote
// write. Queueable writes that fail are appended to the sync queue with the
// exact payload that was attempted, so a later replay sends the same bytes.
// Local state is never rolled back.
package actions

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/metrics"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/remote"
	"github.com/ashaai/fieldsync/internal/store"
	"github.com/ashaai/fieldsync/internal/sync/queue"
)

// Service runs domain operations against a store and a remote gateway.
type Service struct {
	store   *store.Store
	gw      *remote.Gateway
	metrics *metrics.Metrics
	log     *logging.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(st *store.Store, gw *remote.Gateway, opts ...Option) *Service {
	s := &Service{store: st, gw: gw, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewUnregistered()
	}
	s.log = logging.OrDefault(s.log).With(map[string]interface{}{"component": "actions"})
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// write attempts a queueable remote write and queues it on failure. A
// conflict means the write already landed and is not queued.
func (s *Service) write(ctx context.Context, kind models.OperationKind, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "encode "+string(kind)+" payload", err)
	}

	err = s.gw.Write(ctx, kind, payload)
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) == apperrors.KindConflict {
		s.log.Debug("Remote write already applied", map[string]interface{}{"kind": string(kind)})
		return nil
	}

	item := queue.NewItem(kind, payload, s.now())
	s.store.Enqueue(item)
	s.metrics.IncrementEnqueued(string(kind))
	s.log.Info("Remote write failed, queued for sync", map[string]interface{}{
		"kind":       string(kind),
		"item_id":    item.ID,
		"error_kind": string(apperrors.KindOf(err)),
		"error":      err.Error(),
	})
	return nil
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func required(field, value string) error {
	if value == "" {
		return apperrors.New(apperrors.ErrInvalid, field+" is required")
	}
	return nil
}
