package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ashaai/fieldsync/internal/backend"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/logging"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// NewHandler exposes b over the REST protocol.
func NewHandler(b backend.Backend, logger *logging.Logger) http.Handler {
	h := &handler{b: b, log: logging.OrDefault(logger)}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", h.health)
	r.Route("/rest/{table}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.insert)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	r.Post("/rpc/"+backend.RPCIncrementEnrollmentCount, h.increment)
	return r
}

type handler struct {
	b   backend.Backend
	log *logging.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	rows, err := h.b.List(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []backend.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) insert(w http.ResponseWriter, r *http.Request) {
	body, ok := h.body(w, r)
	if !ok {
		return
	}
	table := chi.URLParam(r, "table")
	var err error
	if oc := r.URL.Query().Get("on_conflict"); oc != "" {
		err = h.b.Upsert(r.Context(), table, body, strings.Split(oc, ","))
	} else {
		err = h.b.Insert(r.Context(), table, body)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	body, ok := h.body(w, r)
	if !ok {
		return
	}
	if err := h.b.Update(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"), body); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.b.Delete(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) increment(w http.ResponseWriter, r *http.Request) {
	var req rpcIncrement
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil || req.SchemeID == "" {
		h.fail(w, r, apperrors.New(apperrors.ErrInvalid, "scheme_id is required"))
		return
	}
	if err := h.b.IncrementEnrollmentCount(r.Context(), req.SchemeID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) body(w http.ResponseWriter, r *http.Request) (backend.Row, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || !json.Valid(data) {
		h.fail(w, r, apperrors.New(apperrors.ErrInvalid, "body must be JSON"))
		return nil, false
	}
	return data, true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	if status >= 500 {
		h.log.Error("backend request failed", err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
	writeJSON(w, status, errorBody{Code: string(code), Message: err.Error()})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrConflict, apperrors.ErrDuplicate:
		return http.StatusConflict
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrInvalid:
		return http.StatusBadRequest
	case apperrors.ErrNetwork, apperrors.ErrOffline:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
