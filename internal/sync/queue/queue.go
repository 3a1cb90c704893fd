// Package queue is the state machine for queued remote writes.
//
//	Pending -> InFlight -> Succeeded | Retrying | Dropped
//
// Everything here is pure: transitions return new values and never touch the
// store, so the processor can decide a whole pass before committing it.
package queue

import (
	"encoding/json"
	"time"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/uuid"
)

// DefaultMaxRetries is the bounded-failure ceiling.
const DefaultMaxRetries = 5

// QueueStatus represents the state of a queued operation.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusInFlight  QueueStatus = "in_flight"
	QueueStatusSucceeded QueueStatus = "succeeded"
	QueueStatusRetrying  QueueStatus = "retrying"
	QueueStatusDropped   QueueStatus = "dropped"
)

// Outcome is the result of one replay attempt.
type Outcome struct {
	Status QueueStatus
	// Kind is the failure class; empty on a clean success.
	Kind     apperrors.Kind
	Conflict bool
	Err      error
}

// Policy holds the retry ceiling.
type Policy struct {
	MaxRetries int
}

// DefaultPolicy retries bounded failures five times.
var DefaultPolicy = Policy{MaxRetries: DefaultMaxRetries}

// NewItem builds a fresh queue item for a failed handler-time write.
func NewItem(kind models.OperationKind, payload json.RawMessage, now time.Time) models.SyncQueueItem {
	return models.SyncQueueItem{
		ID:         uuid.New(),
		Type:       kind,
		Payload:    payload,
		CreatedAt:  now.UnixMilli(),
		RetryCount: 0,
	}
}

// Classify maps a replay error to its class.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Status: QueueStatusSucceeded}
	}
	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindConflict:
		return Outcome{Status: QueueStatusSucceeded, Kind: kind, Conflict: true, Err: err}
	default:
		return Outcome{Status: QueueStatusRetrying, Kind: kind, Err: err}
	}
}

// Transition applies one attempt's result to item under the default policy.
func Transition(item models.SyncQueueItem, err error) (models.SyncQueueItem, Outcome) {
	return DefaultPolicy.Transition(item, err)
}

// Transition applies one attempt's result to item. The returned item carries
// the incremented retry count when the outcome is Retrying or Dropped. Network
// failures are never dropped.
func (p Policy) Transition(item models.SyncQueueItem, err error) (models.SyncQueueItem, Outcome) {
	out := Classify(err)
	if out.Status != QueueStatusRetrying {
		return item, out
	}
	next := item
	next.RetryCount = item.RetryCount + 1
	if out.Kind == apperrors.KindBounded && next.RetryCount > p.max() {
		out.Status = QueueStatusDropped
	}
	return next, out
}

func (p Policy) max() int {
	if p.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return p.MaxRetries
}

// Plan accumulates the decisions of one drain pass.
type Plan struct {
	Survivors []models.SyncQueueItem
	Succeeded []string
	Conflicts []string
	Dropped   []models.SyncQueueItem
	consumed  []string
}

// Record adds the result of processing item.
func (p *Plan) Record(item, next models.SyncQueueItem, out Outcome) {
	p.consumed = append(p.consumed, item.ID)
	switch out.Status {
	case QueueStatusSucceeded:
		if out.Conflict {
			p.Conflicts = append(p.Conflicts, item.ID)
		} else {
			p.Succeeded = append(p.Succeeded, item.ID)
		}
	case QueueStatusDropped:
		p.Dropped = append(p.Dropped, next)
	default:
		p.Survivors = append(p.Survivors, next)
	}
}

// ConsumedIDs lists every item the pass looked at.
func (p *Plan) ConsumedIDs() []string {
	return p.consumed
}

// Shrank reports whether the pass removed anything from the queue.
func (p *Plan) Shrank() bool {
	return len(p.Succeeded)+len(p.Conflicts)+len(p.Dropped) > 0
}

// Stats summarises a queue.
type Stats struct {
	Total         int                          `json:"total"`
	ByKind        map[models.OperationKind]int `json:"byKind"`
	Retrying      int                          `json:"retrying"`
	MaxRetryCount int                          `json:"maxRetryCount"`
	OldestAt      int64                        `json:"oldestAt,omitempty"`
}

// GetStats returns queue statistics.
func GetStats(items []models.SyncQueueItem) Stats {
	s := Stats{Total: len(items), ByKind: make(map[models.OperationKind]int)}
	for _, item := range items {
		s.ByKind[item.Type]++
		if item.RetryCount > 0 {
			s.Retrying++
		}
		if item.RetryCount > s.MaxRetryCount {
			s.MaxRetryCount = item.RetryCount
		}
		if s.OldestAt == 0 || item.CreatedAt < s.OldestAt {
			s.OldestAt = item.CreatedAt
		}
	}
	return s
}
