// Package sync drains the queue of failed remote writes and reconciles local
// state with the backend afterwards.
package sync

import (
	"context"
)

// Drainer runs one drain pass. The scheduler, the connectivity monitor and
// the HTTP API depend on this instead of the concrete Processor.
type Drainer interface {
	// Drain replays every queued item once. It returns ErrDrainSkipped when
	// offline, already draining or the queue is empty.
	Drain(ctx context.Context) (*DrainResult, error)
}

// Observer is told when a drain pass starts and completes.
type Observer interface {
	DrainStarted(pending int)
	DrainCompleted(result *DrainResult)
}
