package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appsamples "github.com/latentlab/proficiency/internal/application/samples"
	domain "github.com/latentlab/proficiency/internal/domain/samples"
)

// Router is the thin trigger surface around the generation engine. The
// engine itself stays transport-free.
type Router struct {
	svc *appsamples.Service
}

func NewRouter(svc *appsamples.Service, extra ...func(http.Handler) http.Handler) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	for _, m := range extra {
		mux.Use(m)
	}

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/v1/{participant}", func(rt chi.Router) {
		rt.Post("/samples", r.wrap(r.handleCreate))
		rt.Get("/samples/latest", r.wrap(r.handleLatest))
		rt.Get("/samples/{id}", r.wrap(r.handleGet))
		rt.Get("/samples/{id}/groups", r.wrap(r.handleGroups))
		rt.Get("/samples/{id}/events", r.wrap(r.handleEvents))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrCorpusUnavailable),
				errors.Is(err, domain.ErrInsufficientCandidates):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, domain.ErrUsageConflict):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// POST /v1/{participant}/samples
func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) error {
	participant := chi.URLParam(req, "participant")
	sample, err := r.svc.CreateSample(req.Context(), participant)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, sample)
}

// GET /v1/{participant}/samples/latest?limit=N
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	participant := chi.URLParam(req, "participant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	out, err := r.svc.Latest(req.Context(), participant, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, out)
}

// GET /v1/{participant}/samples/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	participant := chi.URLParam(req, "participant")
	id := chi.URLParam(req, "id")
	sample, err := r.svc.Get(req.Context(), participant, domain.SampleID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sample)
}

// GET /v1/{participant}/samples/{id}/groups
func (r *Router) handleGroups(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	groups, err := r.svc.Groups(req.Context(), domain.SampleID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, groups)
}

// GET /v1/{participant}/samples/{id}/events?limit=N
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) error {
	participant := chi.URLParam(req, "participant")
	id := chi.URLParam(req, "id")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	events, err := r.svc.AuditTrail(req.Context(), participant, id, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
