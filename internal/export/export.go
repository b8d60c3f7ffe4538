// Package export snapshots an analysis overlay over the drawn area into an
// MBTiles archive.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/MeKo-Tech/ndvimap/internal/mbtiles"
	"github.com/MeKo-Tech/ndvimap/internal/tile"
	"github.com/MeKo-Tech/ndvimap/internal/worker"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

const (
	DefaultMaxZoom  = 16
	DefaultMaxTiles = 5000

	// Extension of archive files in the exports directory.
	Extension = ".mbtiles"
)

var (
	ErrInvalidZoom  = errors.New("invalid zoom range")
	ErrTooManyTiles = errors.New("too many tiles")
	ErrNoTiles      = errors.New("no tile could be fetched")
)

// Request describes one export.
type Request struct {
	Name        string
	TileURL     string
	Bounds      orb.Bound
	MinZoom     int
	MaxZoom     int
	Attribution string
}

// Report summarises a finished export.
type Report struct {
	Archive string `json:"archive"`
	Path    string `json:"path"`
	Tiles   int    `json:"tiles"`
	Written int    `json:"written"`
	Failed  int    `json:"failed"`
	Bytes   int64  `json:"bytes"`
	MinZoom int    `json:"min_zoom"`
	MaxZoom int    `json:"max_zoom"`
}

// Status is a snapshot of a running export. Committed counts the tiles
// already flushed to the archive.
type Status struct {
	Archive   string
	Total     int
	Done      int
	Failed    int
	Committed int
	Bytes     int64
}

// ProgressFunc receives the status after every tile.
type ProgressFunc func(Status)

// Config configures an Exporter.
type Config struct {
	Dir        string
	Workers    int
	MaxZoom    int
	MaxTiles   int
	HTTPClient *http.Client
	UserAgent  string
	OnProgress ProgressFunc
	Logger     *slog.Logger
}

// Exporter fetches overlay tiles and writes them into archives under Dir.
type Exporter struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates an exporter, applying defaults for unset limits.
func New(cfg Config) *Exporter {
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = DefaultMaxZoom
	}
	if cfg.MaxTiles <= 0 {
		cfg.MaxTiles = DefaultMaxTiles
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Exporter{cfg: cfg, client: client, logger: cfg.Logger}
}

// Dir returns the directory archives are written to.
func (e *Exporter) Dir() string { return e.cfg.Dir }

// Export writes every tile of the overlay covering the request bounds.
// Tiles that fail to download are counted, not retried.
func (e *Exporter) Export(ctx context.Context, req Request) (*Report, error) {
	if req.MinZoom < 0 || req.MaxZoom < req.MinZoom {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidZoom, req.MinZoom, req.MaxZoom)
	}
	if req.MaxZoom > e.cfg.MaxZoom {
		return nil, fmt.Errorf("%w: max zoom %d exceeds limit %d", ErrInvalidZoom, req.MaxZoom, e.cfg.MaxZoom)
	}
	if req.TileURL == "" {
		return nil, errors.New("export: empty tile URL")
	}

	total := tile.TileCount(req.Bounds, req.MinZoom, req.MaxZoom)
	if total > e.cfg.MaxTiles {
		return nil, fmt.Errorf("%w: %d tiles exceed limit %d", ErrTooManyTiles, total, e.cfg.MaxTiles)
	}

	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}

	archive := ArchiveName(req.Name)
	path := filepath.Join(e.cfg.Dir, archive+Extension)

	meta := mbtiles.Metadata{
		Name:        req.Name,
		Type:        "overlay",
		Version:     "1.0",
		MinZoom:     req.MinZoom,
		MaxZoom:     req.MaxZoom,
		Attribution: req.Attribution,
		Description: req.TileURL,
	}
	meta.SetBound(req.Bounds, req.MinZoom)

	w, err := mbtiles.New(path, meta)
	if err != nil {
		return nil, err
	}

	e.log().Info("export started", "archive", archive, "tiles", total, "min_zoom", req.MinZoom, "max_zoom", req.MaxZoom)

	tiles := tile.TilesInBound(req.Bounds, req.MinZoom, req.MaxZoom)
	tasks := make([]worker.Task, len(tiles))
	for i, c := range tiles {
		tasks[i] = worker.Task{Coords: c}
	}

	report := &Report{Archive: archive, Path: path, Tiles: total, MinZoom: req.MinZoom, MaxZoom: req.MaxZoom}
	status := Status{Archive: archive, Total: total}
	var writeErr error
	pool := worker.New(worker.Config{
		Workers: e.cfg.Workers,
		Fetcher: &httpFetcher{client: e.client, template: req.TileURL, userAgent: e.cfg.UserAgent},
		OnResult: func(r worker.Result) {
			status.Done++
			c := r.Task.Coords
			switch {
			case r.Err != nil:
				status.Failed++
				e.log().Debug("tile failed", "tile", c.String(), "error", r.Err)
			case writeErr != nil:
			default:
				if err := w.WriteTile(int(c.Z), int(c.X), int(c.Y), r.Data); err != nil {
					writeErr = err
				} else {
					status.Bytes += int64(len(r.Data))
				}
			}
			if e.cfg.OnProgress != nil {
				status.Committed = w.Written()
				e.cfg.OnProgress(status)
			}
		},
	})
	pool.Run(ctx, tasks)

	if err := w.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	report.Failed = status.Failed
	report.Bytes = status.Bytes
	if writeErr == nil {
		report.Written, writeErr = storedTiles(path)
	}

	if writeErr == nil && report.Written == 0 {
		writeErr = ErrNoTiles
	}
	if writeErr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("export %s: %w", archive, writeErr)
	}

	e.log().Info("export finished", "archive", archive, "written", report.Written, "failed", report.Failed, "bytes", report.Bytes)
	return report, nil
}

// storedTiles counts the tiles in a closed archive.
func storedTiles(path string) (int, error) {
	r, err := mbtiles.OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return r.Count()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ArchiveName turns a layer name into a unique, URL-safe archive name.
func ArchiveName(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "overlay"
	}
	return slug + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

var validArchive = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidArchiveName reports whether s could have come from ArchiveName.
func ValidArchiveName(s string) bool {
	return validArchive.MatchString(s)
}

type httpFetcher struct {
	client    *http.Client
	template  string
	userAgent string
}

func (f *httpFetcher) Fetch(ctx context.Context, c tile.Coords) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tile.ExpandURL(f.template, c), nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile %s: status %d", c, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", c, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("tile %s: empty body", c)
	}
	return data, nil
}

func (e *Exporter) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
