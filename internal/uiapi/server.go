package uiapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/growcalendar/grow-calendar/internal/catalog"
	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
	"github.com/growcalendar/grow-calendar/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	svc       *service.Service
	db        Pinger
	staticDir string
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewServer creates the HTTP API. db may be nil, in which case /healthz only
// reports that the process is up.
func NewServer(svc *service.Service, db Pinger, staticDir string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		svc:       svc,
		db:        db,
		staticDir: staticDir,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.countRequests)

	// CORS for local development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// Serve static files
	r.Get("/", s.serveUI)
	r.Get("/static/*", s.serveStatic)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/weather", s.handleGetWeather)
		r.Get("/crop-progress", s.handleGetCropProgress)
		r.Get("/calendar", s.handleGetCalendar)
		r.Get("/catalog", s.handleListCatalog)
		r.Get("/catalog/{id}", s.handleGetCatalogEntry)
	})

	return r
}

// countRequests records every response by route pattern and status
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.metrics == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      "1.0.0",
		"zips":         status.Zips,
		"catalogCrops": status.CatalogSize,
		"frostPolicy":  status.FrostPolicy,
		"time":         status.Time,
	})
}

func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	zip, ok := requireZip(w, r)
	if !ok {
		return
	}

	weekly, err := s.svc.Weather(r.Context(), zip)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, weekly)
}

func (s *Server) handleGetCropProgress(w http.ResponseWriter, r *http.Request) {
	zip, ok := requireZip(w, r)
	if !ok {
		return
	}

	report, err := s.svc.CropProgress(r.Context(), zip)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	zip, ok := requireZip(w, r)
	if !ok {
		return
	}

	cal, err := s.svc.Calendar(r.Context(), zip)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cal)
}

type catalogEntry struct {
	ID string `json:"id"`
	*engine.CropInstruction
}

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	c := s.svc.Catalog()
	entries := make([]catalogEntry, 0, len(c))
	for _, id := range catalog.IDs(c) {
		entries = append(entries, catalogEntry{ID: id, CropInstruction: c[id]})
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetCatalogEntry(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(chi.URLParam(r, "id"))

	instr, ok := s.svc.Catalog()[id]
	if !ok {
		respondError(w, http.StatusNotFound, "crop not found")
		return
	}

	respondJSON(w, http.StatusOK, catalogEntry{ID: id, CropInstruction: instr})
}

func requireZip(w http.ResponseWriter, r *http.Request) (string, bool) {
	zip := strings.TrimSpace(r.URL.Query().Get("zip"))
	if zip == "" {
		respondError(w, http.StatusBadRequest, "zip is required")
		return "", false
	}
	return zip, true
}

// respondServiceError maps service errors onto status codes. Upstream details
// are logged by the service and never sent to the client.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidZip):
		respondError(w, http.StatusBadRequest, "invalid zip code")
	case errors.Is(err, service.ErrUnknownZip):
		respondError(w, http.StatusNotFound, "unknown zip code")
	case errors.Is(err, service.ErrDataUnavailable):
		respondError(w, http.StatusBadGateway, "data unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) serveUI(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	// Disable caching for development
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(s.staticDir, "static")))).ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
