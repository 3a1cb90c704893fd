// Package connectivity turns reachability signals into store transitions and
// drain attempts.
package connectivity

import (
	"context"
	"errors"
	"sync"

	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/metrics"
	"github.com/ashaai/fieldsync/internal/store"
	syncpkg "github.com/ashaai/fieldsync/internal/sync"
)

// Source emits true when the backend becomes reachable and false when it
// stops being reachable.
type Source interface {
	Updates() <-chan bool
}

// Monitor is the only writer of the store's online flag.
type Monitor struct {
	store   *store.Store
	drainer syncpkg.Drainer
	metrics *metrics.Metrics
	log     *logging.Logger

	mu        sync.Mutex
	observers []func(online bool)
	drains    sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mon *Monitor) { mon.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(mon *Monitor) { mon.log = l }
}

// NewMonitor creates a monitor that drains through d on every online event.
func NewMonitor(st *store.Store, d syncpkg.Drainer, opts ...Option) *Monitor {
	m := &Monitor{store: st, drainer: d}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewUnregistered()
	}
	m.log = logging.OrDefault(m.log).With(map[string]interface{}{"component": "connectivity"})
	return m
}

// OnChange registers fn to run whenever the online flag flips.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Run consumes src until ctx is done or the source closes its channel.
func (m *Monitor) Run(ctx context.Context, src Source) {
	updates := src.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-updates:
			if !ok {
				return
			}
			m.Set(ctx, online)
		}
	}
}

// Set applies one connectivity event. Going online always starts a drain
// attempt in its own goroutine, even when the store was already online; the
// drain guard keeps attempts from overlapping.
func (m *Monitor) Set(ctx context.Context, online bool) {
	changed := m.store.SetOnline(online)
	m.metrics.SetOnline(online)

	if changed {
		m.log.Info("Connectivity changed", map[string]interface{}{"is_online": online})
		m.mu.Lock()
		observers := append([]func(bool){}, m.observers...)
		m.mu.Unlock()
		for _, fn := range observers {
			fn(online)
		}
	}

	if !online {
		return
	}
	m.drains.Add(1)
	go func() {
		defer m.drains.Done()
		if _, err := m.drainer.Drain(ctx); err != nil && !errors.Is(err, syncpkg.ErrDrainSkipped) {
			m.log.Error("Drain after reconnect failed", err)
		}
	}()
}

// Wait blocks until every drain started by Set has returned.
func (m *Monitor) Wait() {
	m.drains.Wait()
}
