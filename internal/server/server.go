// Package server exposes map sessions over HTTP: the page, the event
// endpoint, generated images and exported overlay tiles.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/ndvimap/assets"
	"github.com/MeKo-Tech/ndvimap/internal/app"
	"github.com/MeKo-Tech/ndvimap/internal/chart"
	"github.com/MeKo-Tech/ndvimap/internal/draw"
	"github.com/MeKo-Tech/ndvimap/internal/export"
	"github.com/MeKo-Tech/ndvimap/internal/layers"
	"github.com/MeKo-Tech/ndvimap/internal/legend"
	"github.com/MeKo-Tech/ndvimap/internal/view"
)

const maxEventBytes = 1 << 20

// Exporter snapshots overlays into archives.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Report, error)
}

// Config configures the server.
type Config struct {
	NewController func() *app.Controller
	SessionTTL    time.Duration
	// Exporter may be nil, which disables POST /api/exports.
	Exporter     Exporter
	ExportsDir   string
	CacheControl string
	Logger       *slog.Logger
}

// Server routes requests to per-session controllers.
type Server struct {
	cfg      Config
	views    *view.Renderer
	sessions *Sessions
	archives *ArchiveHandler
	logger   *slog.Logger
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.NewController == nil {
		return nil, errors.New("server: NewController is required")
	}
	views, err := view.New()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		views:    views,
		sessions: NewSessions(cfg.SessionTTL, cfg.NewController),
		archives: NewArchiveHandler(cfg.ExportsDir, cfg.CacheControl, cfg.Logger),
		logger:   cfg.Logger,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
	})
	mux.HandleFunc("GET /{$}", s.handlePage)

	static, err := fs.Sub(assets.WebFS, "web")
	if err != nil {
		panic(fmt.Sprintf("embedded web assets: %v", err))
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("POST /api/events", s.handleEvent)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/roi.geojson", s.handleROI)
	mux.HandleFunc("GET /api/chart.png", s.handleChart)
	mux.HandleFunc("POST /api/exports", s.handleExport)
	mux.HandleFunc("GET /legend/{file}", s.handleLegend)

	tiles := withCORS(s.archives)
	mux.Handle("GET /tiles/{archive}/{tile}", tiles)
	mux.Handle("OPTIONS /tiles/{archive}/{tile}", tiles)

	return s.logRequests(mux)
}

// Close releases open archives.
func (s *Server) Close() error {
	return s.archives.Close()
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.Get(w, r)

	var buf bytes.Buffer
	if err := s.views.Page(&buf, ctrl.Model()); err != nil {
		s.log().Error("render page", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

type eventResponse struct {
	Model   view.Model `json:"model"`
	Sidebar string     `json:"sidebar"`
	Alert   string     `json:"alert,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.Get(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	ev, err := app.DecodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := eventResponse{}
	if err := ctrl.Dispatch(r.Context(), ev); err != nil {
		var alert *app.Alert
		if !errors.As(err, &alert) {
			s.log().Warn("event rejected", "type", ev.Type(), "error", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp.Alert = alert.Message
	}

	resp.Model = ctrl.Model()
	resp.Sidebar, err = s.views.SidebarHTML(resp.Model)
	if err != nil {
		s.log().Error("render sidebar", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Get(w, r).Model())
}

func (s *Server) handleROI(w http.ResponseWriter, r *http.Request) {
	data, err := s.sessions.Get(w, r).DrawnGeoJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="roi.geojson"`)
	_, _ = w.Write(data)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.sessions.Lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := ctrl.WriteChart(&buf); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			http.NotFound(w, r)
			return
		}
		s.log().Error("render chart", "error", err)
		http.Error(w, "chart failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	scale := 1
	if key, hi := strings.CutSuffix(name, "@2x"); hi {
		name, scale = key, 2
	}

	var (
		l     layers.Legend
		found bool
	)
	if ctrl, ok := s.sessions.Lookup(r); ok {
		l, found = ctrl.Legend(name)
	}
	if !found && name == layers.NDVILegend.Key {
		l, found = layers.NDVILegend, true
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := legend.WritePNG(&buf, l, scale); err != nil {
		s.log().Error("render legend", "legend", name, "error", err)
		http.Error(w, "legend failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if s.cfg.CacheControl != "" {
		w.Header().Set("Cache-Control", s.cfg.CacheControl)
	}
	_, _ = buf.WriteTo(w)
}

type exportRequest struct {
	Overlay string `json:"overlay"`
	MinZoom int    `json:"min_zoom"`
	MaxZoom int    `json:"max_zoom"`
}

type exportResponse struct {
	*export.Report
	TilesURL string `json:"tiles_url"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Exporter == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("exports are disabled"))
		return
	}
	ctrl, ok := s.sessions.Lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no session"))
		return
	}

	var req exportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON payload: %w", err))
		return
	}

	overlay, bound, err := ctrl.ExportTarget(req.Overlay)
	switch {
	case errors.Is(err, layers.ErrUnknownOverlay):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, draw.ErrNoGeometry):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	report, err := s.cfg.Exporter.Export(r.Context(), export.Request{
		Name:        overlay.Name,
		TileURL:     overlay.URL,
		Bounds:      bound,
		MinZoom:     req.MinZoom,
		MaxZoom:     req.MaxZoom,
		Attribution: overlay.Satellite,
	})
	switch {
	case errors.Is(err, export.ErrInvalidZoom), errors.Is(err, export.ErrTooManyTiles):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.log().Error("export failed", "overlay", overlay.ID, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{
		Report:   report,
		TilesURL: "/tiles/" + report.Archive + "/z{z}_x{x}_y{y}.png",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
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

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log().Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
