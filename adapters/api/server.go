// Package api exposes suite CRUD, validation, and estimation over HTTP.
// It is one caller of the core commands; the CLI is another.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tablecheck/app"
	"tablecheck/domain/batch"
	"tablecheck/domain/core"
	"tablecheck/domain/expectation"
	"tablecheck/internal/estimate"
	"tablecheck/internal/expectations"
	"tablecheck/internal/metrics"
	"tablecheck/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wires the validation core behind an HTTP router. The engine
// holds the registered computers only; each request runs against a
// scoped copy so no metric value survives its validation run.
type Server struct {
	resolver ports.BatchResolver
	store    ports.SuiteStore
	engine   *metrics.Engine
	registry *expectations.Registry
	router   chi.Router
}

// NewServer builds the server and its routes
func NewServer(resolver ports.BatchResolver, store ports.SuiteStore, engine *metrics.Engine, registry *expectations.Registry) *Server {
	s := &Server{
		resolver: resolver,
		store:    store,
		engine:   engine,
		registry: registry,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/suites", func(r chi.Router) {
		r.Get("/", s.handleListSuites)
		r.Post("/", s.handleSaveSuite)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetSuite)
			r.Delete("/", s.handleDeleteSuite)
			r.Post("/expectations", s.handleAddExpectation)
			r.Post("/validate", s.handleValidate)
		})
	})
	r.Post("/estimate", s.handleEstimate)
	r.Get("/results/{runID}", s.handleGetResult)

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleListSuites(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListSuites(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"suites": names})
}

func (s *Server) handleSaveSuite(w http.ResponseWriter, r *http.Request) {
	var suite expectation.Suite
	if err := json.NewDecoder(r.Body).Decode(&suite); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid suite document"})
		return
	}
	if suite.Name == "" {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "expectation_suite_name is required"})
		return
	}
	if err := s.store.SaveSuite(r.Context(), &suite); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"saved": suite.Name})
}

func (s *Server) handleGetSuite(w http.ResponseWriter, r *http.Request) {
	suite, err := s.store.GetSuite(r.Context(), core.SuiteName(chi.URLParam(r, "name")))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, suite)
}

func (s *Server) handleDeleteSuite(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSuite(r.Context(), core.SuiteName(chi.URLParam(r, "name"))); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddExpectation(w http.ResponseWriter, r *http.Request) {
	name := core.SuiteName(chi.URLParam(r, "name"))
	var cfg expectation.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expectation configuration"})
		return
	}

	suite, err := s.store.GetSuite(r.Context(), name)
	if err != nil {
		if errors.Is(err, core.ErrSuiteNotFound) {
			suite = expectation.NewSuite(name)
		} else {
			s.respondError(w, err)
			return
		}
	}

	overwritten, err := suite.Add(cfg)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.SaveSuite(r.Context(), suite); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"suite":       suite.Name,
		"count":       suite.Len(),
		"overwritten": overwritten,
	})
}

type validateRequest struct {
	BatchRequest batch.Request `json:"batch_request"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	name := core.SuiteName(chi.URLParam(r, "name"))
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid validate request"})
		return
	}

	suite, err := s.store.GetSuite(r.Context(), name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	batches, err := s.resolver.Resolve(r.Context(), req.BatchRequest)
	if err != nil {
		s.respondError(w, err)
		return
	}

	validator := app.NewValidator(suite, s.engine.Scoped(), s.registry, s.store)
	if err := validator.BindBatches(batches); err != nil {
		s.respondError(w, err)
		return
	}
	result, err := validator.RunValidation(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.SaveResult(r.Context(), result); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type estimateRequest struct {
	Expectation  expectation.Config `json:"expectation_config"`
	BatchRequest batch.Request      `json:"batch_request"`
	Precision    *int               `json:"precision,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid estimate request"})
		return
	}

	estimator := estimate.NewEstimator(s.engine.Scoped(), s.registry)
	if ok, err := estimator.IsEstimable(req.Expectation.Type); err != nil {
		s.respondError(w, err)
		return
	} else if !ok {
		s.respondError(w, core.ErrNotEstimable)
		return
	}

	batches, err := s.resolver.Resolve(r.Context(), req.BatchRequest)
	if err != nil {
		s.respondError(w, err)
		return
	}

	policy := estimate.DefaultPolicy()
	if req.Precision != nil {
		policy.Precision = *req.Precision
	}
	report, err := estimator.Estimate(r.Context(), req.Expectation, batches, policy)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.GetResult(r.Context(), core.RunID(chi.URLParam(r, "runID")))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case core.IsBatchSpecError(err), core.IsConfigError(err):
		status = http.StatusBadRequest
	case core.IsDataError(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
