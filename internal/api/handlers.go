package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/report"
	"github.com/trogers1052/trade-ledger/internal/service"
)

// LedgerService is the service surface the handlers use
type LedgerService interface {
	RecordTrade(ctx context.Context, req service.RecordRequest) (*models.Trade, error)
	Report(ctx context.Context, instrument string) (*models.PositionReport, error)
	Trades(instrument string) ([]*models.Trade, error)
	Instruments() ([]*models.Instrument, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping() error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc LedgerService
	db  Pinger
	log zerolog.Logger
}

// NewHandler creates a new Handler. db may be nil.
func NewHandler(svc LedgerService, db Pinger, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		db:  db,
		log: log.With().Str("component", "api").Logger(),
	}
}

// GetInstruments handles GET /instruments
func (h *Handler) GetInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.svc.Instruments()
	if err != nil {
		h.respondError(w, err)
		return
	}
	if instruments == nil {
		instruments = []*models.Instrument{}
	}

	respondJSON(w, http.StatusOK, instruments)
}

// GetTrades handles GET /instruments/{code}/trades
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	trades, err := h.svc.Trades(code)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetReport handles GET /instruments/{code}/report. format=text returns the
// rendered table instead of JSON.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	rep, err := h.svc.Report(r.Context(), code)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := report.WriteText(w, rep); err != nil {
			h.log.Error().Err(err).Str("instrument", code).Msg("Failed to render report")
		}
		return
	}

	respondJSON(w, http.StatusOK, rep)
}

// RecordTrade handles POST /trades
func (h *Handler) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var req service.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	trade, err := h.svc.RecordTrade(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, trade)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// respondError maps service errors to status codes
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTrade):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrDuplicateTrade):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error().Err(err).Msg("Request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// logRequests logs method, path, status and latency of every request
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Msg("Handled request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
