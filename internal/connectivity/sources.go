package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/ashaai/fieldsync/internal/logging"
)

// Manual is a Source driven by explicit calls.
type Manual struct {
	ch   chan bool
	once sync.Once
}

// NewManual creates a manual source.
func NewManual() *Manual {
	return &Manual{ch: make(chan bool, 16)}
}

// SetOnline emits an event.
func (m *Manual) SetOnline(online bool) {
	m.ch <- online
}

// Updates implements Source.
func (m *Manual) Updates() <-chan bool {
	return m.ch
}

// Close ends the stream.
func (m *Manual) Close() {
	m.once.Do(func() { close(m.ch) })
}

// HealthChecker reports whether the backend answers.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// DefaultProbeInterval is the polling period of a Prober.
const DefaultProbeInterval = 10 * time.Second

// Prober polls a health endpoint and emits on every state change. The first
// probe always emits.
type Prober struct {
	checker  HealthChecker
	interval time.Duration
	timeout  time.Duration
	ch       chan bool
	log      *logging.Logger
}

// NewProber creates a prober. Call Run to start polling.
func NewProber(checker HealthChecker, interval time.Duration, log *logging.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		checker:  checker,
		interval: interval,
		timeout:  interval,
		ch:       make(chan bool, 1),
		log:      logging.OrDefault(log),
	}
}

// Updates implements Source.
func (p *Prober) Updates() <-chan bool {
	return p.ch
}

// Run polls until ctx is done, then closes the update channel.
func (p *Prober) Run(ctx context.Context) {
	defer close(p.ch)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *bool
	for {
		online := p.probe(ctx)
		if last == nil || *last != online {
			select {
			case p.ch <- online:
			case <-ctx.Done():
				return
			}
			last = &online
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Prober) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.checker.Health(ctx); err != nil {
		p.log.Debug("Health probe failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}
