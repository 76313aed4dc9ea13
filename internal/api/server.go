package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"softone/internal/geo"
	"softone/internal/link"
	"softone/internal/remote"
	"softone/internal/syncengine"
	"softone/internal/visit"
)

// HTTPServer exposes the visit scheduling workflow over HTTP.
type HTTPServer struct {
	engine    *syncengine.Engine
	lifecycle *visit.Lifecycle
	exporter  *visit.ReportExporter
	links     *link.Resolver
	distance  visit.DistanceEstimator
	validate  *validator.Validate
	logger    *zerolog.Logger
	server    *http.Server
}

// NewHTTPServer wires the workflow services into an HTTP server listening
// on the given port.
func NewHTTPServer(port int, engine *syncengine.Engine, lifecycle *visit.Lifecycle, exporter *visit.ReportExporter, links *link.Resolver, distance visit.DistanceEstimator, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		engine:    engine,
		lifecycle: lifecycle,
		exporter:  exporter,
		links:     links,
		distance:  distance,
		validate:  validator.New(),
		logger:    logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/visits", s.handleCreateVisit)
	mux.HandleFunc("POST /api/v1/visits/sync", s.handleSyncVisits)
	mux.HandleFunc("GET /api/v1/visits/pending", s.handlePendingVisits)
	mux.HandleFunc("DELETE /api/v1/visits/pending/{key}", s.handleRemovePending)
	mux.HandleFunc("GET /api/v1/visits/{id}/verify", s.handleVerifyVisit)

	mux.HandleFunc("POST /api/v1/visits/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/v1/visits/{id}/complete", s.handleComplete)
	mux.HandleFunc("POST /api/v1/visits/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/v1/visits/{id}/postpone", s.handlePostpone)
	mux.HandleFunc("POST /api/v1/visits/{id}/finalize", s.handleFinalize)
	mux.HandleFunc("POST /api/v1/visits/{id}/recover", s.handleRecover)
	mux.HandleFunc("POST /api/v1/visits/{id}/navigate", s.handleNavigate)

	mux.HandleFunc("POST /api/v1/distance", s.handleDistance)
	mux.HandleFunc("POST /api/v1/reports/visits", s.handleVisitReport)

	return mux
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody parses and validates the JSON request body into dst.
func (s *HTTPServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeDomainError maps workflow errors onto HTTP statuses.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	var oe *visit.OverrideRequiredError
	if errors.As(err, &oe) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        "override required",
			"reason":       oe.Reason,
			"distanciaKm":  oe.DistanceKM,
			"overridable":  true,
		})
		return
	}
	if errors.Is(err, visit.ErrConfirmationRequired) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       "confirmation required",
			"overridable": true,
		})
		return
	}
	var te *visit.TransitionError
	if errors.As(err, &te) {
		writeError(w, http.StatusConflict, te.Error())
		return
	}
	if errors.Is(err, geo.ErrManualEntry) {
		writeError(w, http.StatusUnprocessableEntity, "distance could not be resolved; enter kilometers manually")
		return
	}

	var se *remote.StoreError
	if errors.As(err, &se) {
		switch se.Kind {
		case remote.KindNotFound:
			writeError(w, http.StatusNotFound, se.UserMessage())
		case remote.KindInvalidData:
			writeError(w, http.StatusBadRequest, se.UserMessage())
		case remote.KindSessionExpired:
			writeError(w, http.StatusUnauthorized, se.UserMessage())
		default:
			writeError(w, http.StatusBadGateway, se.UserMessage())
		}
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
