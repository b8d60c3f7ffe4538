package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/ndvimap/internal/export"
	"github.com/MeKo-Tech/ndvimap/internal/mbtiles"
	"github.com/MeKo-Tech/ndvimap/internal/tile"
)

// ArchiveHandler serves tiles from exported archives at
// /tiles/{archive}/z{z}_x{x}_y{y}.{ext}.
type ArchiveHandler struct {
	dir          string
	cacheControl string
	logger       *slog.Logger

	mu      sync.Mutex
	readers map[string]*archive
}

type archive struct {
	reader      *mbtiles.Reader
	contentType string
}

// NewArchiveHandler serves the archives found in dir. Archives are opened
// on first request and kept open until Close.
func NewArchiveHandler(dir, cacheControl string, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		dir:          dir,
		cacheControl: cacheControl,
		logger:       logger,
		readers:      make(map[string]*archive),
	}
}

func (h *ArchiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("archive")
	coords, ok := parseTileName(r.PathValue("tile"))
	if !ok || !export.ValidArchiveName(name) {
		http.NotFound(w, r)
		return
	}

	a, err := h.open(name)
	if errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log().Error("Failed to open archive", "archive", name, "error", err)
		http.Error(w, "archive unavailable", http.StatusInternalServerError)
		return
	}

	data, err := a.reader.ReadTile(int(coords.Z), int(coords.X), int(coords.Y))
	if errors.Is(err, mbtiles.ErrTileNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log().Error("Failed to read tile", "archive", name, "coords", coords.String(), "error", err)
		http.Error(w, "tile unavailable", http.StatusInternalServerError)
		return
	}

	if h.cacheControl != "" {
		w.Header().Set("Cache-Control", h.cacheControl)
	}
	w.Header().Set("Content-Type", a.contentType)
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *ArchiveHandler) open(name string) (*archive, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if a, ok := h.readers[name]; ok {
		return a, nil
	}

	path := filepath.Join(h.dir, name+export.Extension)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	reader, err := mbtiles.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	meta, err := reader.Metadata()
	if err != nil {
		reader.Close()
		return nil, err
	}

	a := &archive{reader: reader, contentType: mbtiles.ContentType(meta.Format)}
	h.readers[name] = a
	return a, nil
}

// Close closes every open archive.
func (h *ArchiveHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for name, a := range h.readers {
		if err := a.reader.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(h.readers, name)
	}
	return errors.Join(errs...)
}

func (h *ArchiveHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseTileName parses a file name like z13_x4317_y2692.png. The extension
// is not checked against the archive's format.
func parseTileName(base string) (tile.Coords, bool) {
	ext := filepath.Ext(base)
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return tile.Coords{}, false
	}

	coords, err := tile.ParseCoords(strings.TrimSuffix(base, ext))
	if err != nil {
		return tile.Coords{}, false
	}
	return coords, true
}
