package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/WessleyAI/findyourcar/engine/browser"
	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/engine/render"
	"github.com/WessleyAI/findyourcar/pkg/metrics"
	"github.com/WessleyAI/findyourcar/pkg/mid"
)

// catalogSession is the part of *browser.Session the handlers drive.
type catalogSession interface {
	Search(ctx context.Context, raw string) error
	UpdatePrice(lo, hi int) domain.PriceRange
	Reset(ctx context.Context) error
	Snapshot() browser.Snapshot
}

func newRouter(s catalogSession, reg *metrics.Registry, logger *slog.Logger, corsOrigin, assets string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handlePage(s, logger))
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/cars", handleCars(s))
	mux.HandleFunc("POST /api/search", handleSearch(s, logger))
	mux.HandleFunc("POST /api/price", handlePrice(s))
	mux.HandleFunc("POST /api/reset", handleReset(s, logger))
	mux.HandleFunc("POST /search", handleFormSearch(s, logger))
	mux.HandleFunc("POST /price", handleFormPrice(s))
	mux.HandleFunc("POST /reset", handleFormReset(s, logger))
	mux.Handle("GET /metrics", reg.Handler())
	if assets != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(assets))))
	}

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(corsOrigin),
		mid.OTel("findyourcar"),
	)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handlePage(s catalogSession, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := render.WritePage(w, s.Snapshot().Page()); err != nil {
			logger.Error("render page", "err", err)
		}
	}
}

func handleCars(s catalogSession) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
}

func handleSearch(s catalogSession, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.Search(r.Context(), req.Query); err != nil {
			writeSessionError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

func handlePrice(s catalogSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.PriceRange
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := domain.ValidatePriceRange(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.UpdatePrice(req.Min, req.Max)
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

func handleReset(s catalogSession, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Reset(r.Context()); err != nil {
			writeSessionError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// Form variants back the HTML page and redirect to it when done.

func handleFormSearch(s catalogSession, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Search(r.Context(), r.PostFormValue("query")); err != nil && !errors.Is(err, domain.ErrSearchSuperseded) {
			logger.Warn("search", "err", err)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func handleFormPrice(s catalogSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pr := domain.PriceRange{
			Min: formInt(r, "min", domain.PriceFloor),
			Max: formInt(r, "max", domain.PriceCeiling),
		}
		if err := domain.ValidatePriceRange(pr); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.UpdatePrice(pr.Min, pr.Max)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func handleFormReset(s catalogSession, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Reset(r.Context()); err != nil {
			logger.Warn("reset", "err", err)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// --- Helpers ---

func formInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.PostFormValue(key))
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeSessionError maps session errors onto status codes.
func writeSessionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSearchSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoListings):
		writeError(w, http.StatusBadGateway, browser.LoadFailedBanner)
	case errors.Is(err, domain.ErrCatalogDegraded):
		writeError(w, http.StatusBadGateway, browser.DegradedBanner)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		logger.Error("session error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
