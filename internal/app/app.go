// Package app wires the sync engine together.
package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ashaai/fieldsync/internal/actions"
	"github.com/ashaai/fieldsync/internal/api"
	"github.com/ashaai/fieldsync/internal/backend"
	"github.com/ashaai/fieldsync/internal/backend/rest"
	"github.com/ashaai/fieldsync/internal/config"
	"github.com/ashaai/fieldsync/internal/connectivity"
	"github.com/ashaai/fieldsync/internal/crypto"
	"github.com/ashaai/fieldsync/internal/db"
	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/metrics"
	"github.com/ashaai/fieldsync/internal/remote"
	"github.com/ashaai/fieldsync/internal/statushub"
	"github.com/ashaai/fieldsync/internal/store"
	syncpkg "github.com/ashaai/fieldsync/internal/sync"
	"github.com/ashaai/fieldsync/internal/sync/queue"
	"github.com/ashaai/fieldsync/internal/sync/scheduler"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component.
type App struct {
	cfg     config.Config
	log     *logging.Logger
	logFile io.Closer
	db      *db.DB
	checker connectivity.HealthChecker

	Store      *store.Store
	Backend    backend.Backend
	Actions    *actions.Service
	Reconciler *syncpkg.Reconciler
	Processor  *syncpkg.Processor
	Monitor    *connectivity.Monitor
	Scheduler  *scheduler.Scheduler
	Hub        *statushub.Hub
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics

	stops []func()
}

type options struct {
	backend backend.Backend
	checker connectivity.HealthChecker
	logger  *logging.Logger
	clock   func() time.Time
}

// Option configures New.
type Option func(*options)

// WithBackend replaces the REST client. checker may be nil when the app is
// never Run.
func WithBackend(b backend.Backend, checker connectivity.HealthChecker) Option {
	return func(o *options) {
		o.backend = b
		o.checker = checker
	}
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source for handler timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// New builds the app from cfg. The store is rehydrated from the database in
// cfg.DataDir before anything else touches it.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg}
	a.log = o.logger
	if a.log == nil {
		var out io.Writer = os.Stderr
		if cfg.LogFile != "" {
			w := logging.NewFileWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
			a.logFile = w
			out = w
		}
		a.log = logging.New(out, logging.ParseLevel(cfg.LogLevel))
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		a.closeLog()
		return nil, err
	}
	a.db = database

	var repoOpts []db.StateOption
	if cfg.StateKey != "" {
		sealer, err := crypto.NewSealer(cfg.StateKey)
		if err != nil {
			_ = database.Close()
			a.closeLog()
			return nil, err
		}
		repoOpts = append(repoOpts, db.WithSealer(sealer))
	}
	repo := db.NewStateRepository(database, repoOpts...)

	a.Store, err = store.Open(ctx, repo,
		store.WithSaver(repo),
		store.WithSaveDebounce(cfg.SaveDebounce),
		store.WithLogger(a.log),
	)
	if err != nil {
		_ = database.Close()
		a.closeLog()
		return nil, err
	}

	a.Backend, a.checker = o.backend, o.checker
	if a.Backend == nil {
		client := rest.New(cfg.BackendURL, rest.WithTimeout(cfg.HTTPTimeout))
		a.Backend, a.checker = client, client
	}
	gw := remote.New(a.Backend)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector())
	a.Metrics = metrics.New(a.Registry)

	actionOpts := []actions.Option{actions.WithMetrics(a.Metrics), actions.WithLogger(a.log)}
	if o.clock != nil {
		actionOpts = append(actionOpts, actions.WithClock(o.clock))
	}
	a.Actions = actions.NewService(a.Store, gw, actionOpts...)

	a.Hub = statushub.NewHub(a.log)
	a.Reconciler = syncpkg.NewReconciler(a.Backend, a.Store,
		syncpkg.WithFetchConcurrency(cfg.FetchConcurrency),
		syncpkg.WithReconcileMetrics(a.Metrics),
		syncpkg.WithReconcileLogger(a.log),
	)
	a.Processor = syncpkg.NewProcessor(a.Store, gw,
		syncpkg.WithReconciler(a.Reconciler),
		syncpkg.WithPolicy(queue.Policy{MaxRetries: cfg.MaxRetries}),
		syncpkg.WithMetrics(a.Metrics),
		syncpkg.WithObserver(a.Hub),
		syncpkg.WithLogger(a.log),
	)
	a.Monitor = connectivity.NewMonitor(a.Store, a.Processor,
		connectivity.WithMetrics(a.Metrics),
		connectivity.WithLogger(a.log),
	)
	a.Monitor.OnChange(a.Hub.ConnectivityChanged)
	a.Scheduler = scheduler.NewScheduler(a.Processor, a.Store, &scheduler.SchedulerConfig{
		RetryInterval: cfg.RetryInterval,
		Logger:        a.log,
	})

	a.Metrics.SetQueueLength(a.Store.Snapshot().Pending())
	a.stops = append(a.stops,
		a.Store.Subscribe(func(s store.State) { a.Metrics.SetQueueLength(s.Pending()) }),
		a.Hub.Watch(a.Store),
	)
	return a, nil
}

// Logger returns the app logger.
func (a *App) Logger() *logging.Logger {
	return a.log
}

// Handler returns the HTTP status API.
func (a *App) Handler() http.Handler {
	return api.NewHandler(api.Deps{
		Store:        a.Store,
		Scheduler:    a.Scheduler,
		Connectivity: a.Monitor,
		WS:           a.Hub,
		Gatherer:     a.Registry,
		Logger:       a.log,
	})
}

// Run starts the hub, the connectivity prober, the retry scheduler and, when
// a listen address is configured, the HTTP API. It blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.checker == nil {
		return errors.New("app: no health checker for connectivity probing")
	}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(ctx)
		return nil
	})

	prober := connectivity.NewProber(a.checker, a.cfg.ProbeInterval, a.log)
	g.Go(func() error {
		prober.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.Monitor.Run(ctx, prober)
		return nil
	})

	a.Scheduler.Start(ctx)
	defer a.Scheduler.Stop()

	if a.cfg.ListenAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.ListenAddr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.log.Info("HTTP API listening", map[string]interface{}{"addr": a.cfg.ListenAddr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.log.Info("Sync engine started", map[string]interface{}{
		"backend": a.cfg.BackendURL,
		"pending": a.Store.Snapshot().Pending(),
	})
	err := g.Wait()
	a.Monitor.Wait()
	return err
}

// Close flushes pending state and releases the database.
func (a *App) Close() error {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.Store.Flush(ctx)
	if cerr := a.db.Close(); err == nil {
		err = cerr
	}
	a.closeLog()
	return err
}

func (a *App) closeLog() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}
