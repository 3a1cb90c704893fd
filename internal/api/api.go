// Package api exposes sync status and controls over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/store"
	syncpkg "github.com/ashaai/fieldsync/internal/sync"
	"github.com/ashaai/fieldsync/internal/sync/queue"
	"github.com/ashaai/fieldsync/internal/sync/scheduler"
)

// DrainRunner runs a drain on request and reports scheduler state.
type DrainRunner interface {
	DrainNow(ctx context.Context) (*syncpkg.DrainResult, error)
	GetStatus() scheduler.SchedulerStatus
}

// ConnectivitySetter applies a manual connectivity override.
type ConnectivitySetter interface {
	Set(ctx context.Context, online bool)
}

// Deps are the components the handler reads from. WS and Gatherer are optional.
type Deps struct {
	Store        *store.Store
	Scheduler    DrainRunner
	Connectivity ConnectivitySetter
	WS           http.Handler
	Gatherer     prometheus.Gatherer
	Logger       *logging.Logger
}

// NewHandler builds the router.
func NewHandler(d Deps) http.Handler {
	h := &handler{deps: d, log: logging.OrDefault(d.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/api/sync", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/queue", h.queue)
		r.Post("/drain", h.drain)
		r.Post("/online", h.online)
	})
	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type handler struct {
	deps Deps
	log  *logging.Logger
}

// status handles GET /api/sync/status.
func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Scheduler.GetStatus())
}

type queueResponse struct {
	Items []models.SyncQueueItem `json:"items"`
	Stats queue.Stats            `json:"stats"`
}

// queue handles GET /api/sync/queue.
func (h *handler) queue(w http.ResponseWriter, r *http.Request) {
	items := h.deps.Store.Snapshot().SyncQueue
	if items == nil {
		items = []models.SyncQueueItem{}
	}
	writeJSON(w, http.StatusOK, queueResponse{Items: items, Stats: queue.GetStats(items)})
}

// drain handles POST /api/sync/drain. A skipped pass answers 409.
func (h *handler) drain(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Scheduler.DrainNow(r.Context())
	if err != nil {
		if errors.Is(err, syncpkg.ErrDrainSkipped) {
			writeError(w, http.StatusConflict, err)
			return
		}
		h.log.Error("Manual drain failed", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type onlineRequest struct {
	Online *bool `json:"online"`
}

// online handles POST /api/sync/online.
func (h *handler) online(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil || req.Online == nil {
		writeError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrInvalid, "online is required"))
		return
	}
	// The drain it may start outlives the request.
	h.deps.Connectivity.Set(context.WithoutCancel(r.Context()), *req.Online)
	writeJSON(w, http.StatusOK, h.deps.Store.Snapshot().Status())
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Code: string(apperrors.CodeOf(err)), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
