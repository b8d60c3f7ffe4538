package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/ndvimap/internal/app"
	"github.com/MeKo-Tech/ndvimap/internal/export"
	"github.com/MeKo-Tech/ndvimap/internal/server"
	"github.com/MeKo-Tech/ndvimap/internal/view"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive map",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Duration("session-ttl", 2*time.Hour, "Drop map sessions idle for longer than this (0 keeps them)")
	serveCmd.Flags().String("exports-dir", "./exports", "Directory for exported overlay archives")
	serveCmd.Flags().String("cache-control", "public, max-age=3600", "Cache-Control header for exported tiles and legends")
	serveCmd.Flags().Bool("disable-exports", false, "Disable overlay export")

	serveCmd.Flags().Float64("center-lat", app.DefaultMapView.Lat, "Initial map latitude")
	serveCmd.Flags().Float64("center-lon", app.DefaultMapView.Lon, "Initial map longitude")
	serveCmd.Flags().Int("zoom", app.DefaultMapView.Zoom, "Initial map zoom")

	bindFlags(serveCmd, false, map[string]string{
		"serve.addr":            "addr",
		"serve.session_ttl":     "session-ttl",
		"serve.exports_dir":     "exports-dir",
		"serve.cache_control":   "cache-control",
		"serve.disable_exports": "disable-exports",
		"map.center_lat":        "center-lat",
		"map.center_lon":        "center-lon",
		"map.zoom":              "zoom",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	exportsDir := viper.GetString("serve.exports_dir")
	mapView := view.MapView{
		Lat:  viper.GetFloat64("map.center_lat"),
		Lon:  viper.GetFloat64("map.center_lon"),
		Zoom: viper.GetInt("map.zoom"),
	}

	analyzer := newAnalysisClient()
	geocoder := newGeocoder()

	cfg := server.Config{
		NewController: func() *app.Controller {
			return app.New(app.Config{
				Analyzer: analyzer,
				Geocoder: geocoder,
				Logger:   logger,
				Map:      mapView,
			})
		},
		SessionTTL:   viper.GetDuration("serve.session_ttl"),
		ExportsDir:   exportsDir,
		CacheControl: viper.GetString("serve.cache_control"),
		Logger:       logger,
	}
	// Export limits come from the export.* keys shared with the export command.
	if !viper.GetBool("serve.disable_exports") {
		cfg.Exporter = export.New(export.Config{
			Dir:       exportsDir,
			Workers:   viper.GetInt("export.workers"),
			MaxZoom:   viper.GetInt("export.max_zoom"),
			MaxTiles:  viper.GetInt("export.max_tiles"),
			UserAgent: viper.GetString("geocoder.user_agent"),
			Logger:    logger,
		})
	}

	s, err := server.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	logger.Info("map server listening",
		"addr", addr,
		"api", analyzer.BaseURL(),
		"exports_dir", exportsDir,
		"exports", cfg.Exporter != nil,
	)

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
