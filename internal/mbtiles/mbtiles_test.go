package mbtiles

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

var (
	fakePNG  = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte("overlay")...)
	fakeJPEG = append([]byte{0xff, 0xd8, 0xff, 0xe0}, []byte("overlay")...)
)

func TestWriter_New(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ndvi.mbtiles")

	w, err := New(dbPath, Metadata{Name: "NDVI Período 1", Type: "overlay"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tiles'").Scan(&count); err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected tiles table to exist, got count=%d", count)
	}
}

func TestWriter_RejectsEmptyTile(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "x.mbtiles"), Metadata{})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if err := w.WriteTile(1, 0, 0, nil); err == nil {
		t.Error("expected error for empty tile")
	}
}

func TestRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ndvi.mbtiles")

	meta := Metadata{
		Name:        "NDVI Seca (Sentinel-2)",
		Type:        "overlay",
		MinZoom:     8,
		MaxZoom:     10,
		Attribution: "Sentinel-2",
	}
	meta.SetBound(orb.Bound{Min: orb.Point{-48, -16}, Max: orb.Point{-47, -15}}, 8)

	w, err := New(dbPath, meta)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	w.batchSize = 2

	tiles := []struct{ z, x, y int }{
		{8, 93, 139},
		{8, 94, 139},
		{9, 187, 278},
	}
	for _, tl := range tiles {
		if err := w.WriteTile(tl.z, tl.x, tl.y, fakeJPEG); err != nil {
			t.Fatalf("Failed to write tile %d/%d/%d: %v", tl.z, tl.x, tl.y, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	if w.Written() != len(tiles) {
		t.Errorf("Written() = %d, want %d", w.Written(), len(tiles))
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	for _, tl := range tiles {
		data, err := r.ReadTile(tl.z, tl.x, tl.y)
		if err != nil {
			t.Fatalf("ReadTile(%d/%d/%d) error = %v", tl.z, tl.x, tl.y, err)
		}
		if !bytes.Equal(data, fakeJPEG) {
			t.Errorf("tile %d/%d/%d data mismatch", tl.z, tl.x, tl.y)
		}
	}

	if _, err := r.ReadTile(8, 0, 0); !errors.Is(err, ErrTileNotFound) {
		t.Errorf("missing tile error = %v, want ErrTileNotFound", err)
	}

	n, err := r.Count()
	if err != nil || n != len(tiles) {
		t.Errorf("Count() = %d, %v", n, err)
	}

	got, err := r.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if got.Name != meta.Name || got.Type != "overlay" || got.MinZoom != 8 || got.MaxZoom != 10 {
		t.Errorf("Metadata() = %+v", got)
	}
	if got.Format != "jpg" {
		t.Errorf("sniffed format = %q, want jpg", got.Format)
	}
	if got.Bounds[0] != -48 || got.Bounds[3] != -15 {
		t.Errorf("Bounds = %v", got.Bounds)
	}
	if got.Center[2] != 8 {
		t.Errorf("Center = %v", got.Center)
	}
}

func TestReader_DecompressesGzipTiles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gz.mbtiles")
	w, err := New(dbPath, Metadata{Format: "png"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write(fakePNG)
	_ = gw.Close()

	if err := w.WriteTile(2, 1, 1, buf.Bytes()); err != nil {
		t.Fatalf("WriteTile() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	data, err := r.ReadTile(2, 1, 1)
	if err != nil {
		t.Fatalf("ReadTile() error = %v", err)
	}
	if !bytes.Equal(data, fakePNG) {
		t.Error("gzip tile was not decompressed")
	}
}

func TestOpenReader_NotAnArchive(t *testing.T) {
	if _, err := OpenReader(filepath.Join(t.TempDir(), "missing.mbtiles")); err == nil {
		t.Error("expected error opening a missing archive")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{fakePNG, "png"},
		{fakeJPEG, "jpg"},
		{[]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{[]byte("garbage"), "png"},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.data); got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.data[:4], got, tt.want)
		}
	}

	if ContentType("jpg") != "image/jpeg" || ContentType("") != "image/png" {
		t.Error("unexpected content types")
	}
}
