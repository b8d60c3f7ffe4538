package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/ndvimap/internal/export"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Snapshot a tile layer over a bounding box into an MBTiles archive",
	Long: `Export downloads every tile of an XYZ layer, such as an NDVI overlay URL
returned by the analysis service, that covers a bounding box and stores them
in an MBTiles archive. Tiles that fail to download are counted and skipped.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("tile-url", "", "Tile URL template with {z}, {x}, {y} and optional {s}")
	exportCmd.Flags().String("bbox", "", "Bounding box: minLon,minLat,maxLon,maxLat (e.g., \"-48.1,-16.1,-47.7,-15.6\")")
	exportCmd.Flags().String("name", "overlay", "Layer name stored in the archive metadata")
	exportCmd.Flags().String("attribution", "", "Attribution stored in the archive metadata")
	exportCmd.Flags().Int("zoom-min", 8, "Minimum zoom level")
	exportCmd.Flags().Int("zoom-max", 12, "Maximum zoom level")
	exportCmd.Flags().String("dir", "./exports", "Directory the archive is written to")
	exportCmd.Flags().IntP("workers", "w", 0, "Number of parallel downloads (default: number of CPUs)")
	exportCmd.Flags().Int("max-zoom", export.DefaultMaxZoom, "Highest zoom level accepted")
	exportCmd.Flags().Int("max-tiles", export.DefaultMaxTiles, "Largest number of tiles accepted")
	exportCmd.Flags().Bool("progress", true, "Show progress bar")

	bindFlags(exportCmd, false, map[string]string{
		"export.tile_url":    "tile-url",
		"export.bbox":        "bbox",
		"export.name":        "name",
		"export.attribution": "attribution",
		"export.zoom_min":    "zoom-min",
		"export.zoom_max":    "zoom-max",
		"export.dir":         "dir",
		"export.workers":     "workers",
		"export.max_zoom":    "max-zoom",
		"export.max_tiles":   "max-tiles",
		"export.progress":    "progress",
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	tileURL := viper.GetString("export.tile_url")
	bboxStr := viper.GetString("export.bbox")
	zoomMin := viper.GetInt("export.zoom_min")
	zoomMax := viper.GetInt("export.zoom_max")
	workers := viper.GetInt("export.workers")
	showProgress := viper.GetBool("export.progress")

	if logger == nil {
		initLogging()
	}

	if tileURL == "" {
		return fmt.Errorf("--tile-url is required")
	}
	bbox, err := parseBBox(bboxStr)
	if err != nil {
		return fmt.Errorf("invalid bbox: %w", err)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	meter := export.NewMeter(os.Stderr, showProgress)
	exporter := export.New(export.Config{
		Dir:        viper.GetString("export.dir"),
		Workers:    workers,
		MaxZoom:    viper.GetInt("export.max_zoom"),
		MaxTiles:   viper.GetInt("export.max_tiles"),
		UserAgent:  viper.GetString("geocoder.user_agent"),
		OnProgress: meter.Update,
		Logger:     logger,
	})

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("Starting export",
		"bbox", bboxStr,
		"zoom_range", fmt.Sprintf("%d-%d", zoomMin, zoomMax),
		"workers", workers,
		"dir", exporter.Dir(),
	)

	report, err := exporter.Export(ctx, export.Request{
		Name:        viper.GetString("export.name"),
		TileURL:     tileURL,
		Bounds:      bbox,
		MinZoom:     zoomMin,
		MaxZoom:     zoomMax,
		Attribution: viper.GetString("export.attribution"),
	})
	meter.Finish()
	if err != nil {
		return err
	}

	logger.Info("Export finished",
		"archive", report.Archive,
		"tiles", fmt.Sprintf("%d/%d", report.Written, report.Tiles),
		"size", humanize.Bytes(uint64(report.Bytes)),
		"elapsed", meter.Elapsed(),
	)
	if report.Failed > 0 {
		logger.Warn("Some tiles could not be fetched", "failed_count", report.Failed)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Path)
	return nil
}

// parseBBox parses a bounding box string "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		v[i] = val
	}

	if v[0] >= v[2] {
		return orb.Bound{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", v[0], v[2])
	}
	if v[1] >= v[3] {
		return orb.Bound{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", v[1], v[3])
	}

	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
