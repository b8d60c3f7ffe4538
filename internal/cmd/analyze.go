package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/ndvimap/internal/analysis"
	"github.com/MeKo-Tech/ndvimap/internal/app"
	"github.com/MeKo-Tech/ndvimap/internal/draw"
	"github.com/MeKo-Tech/ndvimap/internal/render"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Request NDVI or climate statistics without the map",
	Long: `Analyze sends one request to the analysis service and prints the result cards.

The area is a GeoJSON file (geometry, Feature or FeatureCollection) or a point.
Periods are given as [label=]start:end with dates in YYYY-MM-DD, e.g.

  ndvimap analyze --roi area.geojson --period Seca=2024-06-01:2024-09-30
  ndvimap analyze --mode climate --point -47.93,-15.78 --period 2024-01-01:2024-12-31`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("mode", string(analysis.ModeVegetation), "Analysis: vegetation or climate")
	analyzeCmd.Flags().String("roi", "", "GeoJSON file with the region of interest")
	analyzeCmd.Flags().String("point", "", "Point as lon,lat")
	analyzeCmd.Flags().StringArray("period", nil, "Date period [label=]start:end (repeatable)")
	analyzeCmd.Flags().Bool("json", false, "Print the result view as JSON")
	analyzeCmd.Flags().String("chart", "", "Write a PNG chart of the NDVI means to this file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	modeFlag, _ := cmd.Flags().GetString("mode")
	roiPath, _ := cmd.Flags().GetString("roi")
	pointFlag, _ := cmd.Flags().GetString("point")
	periods, _ := cmd.Flags().GetStringArray("period")
	asJSON, _ := cmd.Flags().GetBool("json")
	chartPath, _ := cmd.Flags().GetString("chart")

	mode, err := analysis.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	if roiPath == "" && pointFlag == "" {
		return errors.New("--roi or --point is required")
	}

	ctrl := app.New(app.Config{
		Analyzer: newAnalysisClient(),
		Geocoder: newGeocoder(),
		Logger:   logger,
	})

	ctx, cancel := signalContext()
	defer cancel()

	var events []app.Event
	if roiPath != "" {
		g, err := readROI(roiPath)
		if err != nil {
			return err
		}
		events = append(events, app.GeometryDrawn{Kind: kindOf(g), Geometry: g})
	}
	if pointFlag != "" {
		pt, err := parsePoint(pointFlag)
		if err != nil {
			return fmt.Errorf("invalid point: %w", err)
		}
		events = append(events, app.GeometryDrawn{Kind: draw.KindMarker, Geometry: pt})
	}
	for i, raw := range periods {
		label, start, end, err := parsePeriodFlag(raw)
		if err != nil {
			return fmt.Errorf("invalid period %q: %w", raw, err)
		}
		n := i + 1
		if n > 1 {
			events = append(events, app.PeriodAdded{})
		}
		events = append(events, app.PeriodDatesChanged{Period: n, Start: start, End: end})
		if label != "" {
			events = append(events, app.PeriodRenamed{Period: n, Label: label})
		}
	}
	events = append(events, app.AnalyzeRequested{Mode: mode})

	for _, ev := range events {
		if err := ctrl.Dispatch(ctx, ev); err != nil {
			return err
		}
	}

	results := ctrl.Model().Results
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printResults(out, results)
	}

	if results.Phase == render.PhaseFailed {
		return errors.New(results.Failure)
	}

	if chartPath != "" {
		f, err := os.Create(chartPath)
		if err != nil {
			return fmt.Errorf("failed to create chart file: %w", err)
		}
		defer f.Close()
		if err := ctrl.WriteChart(f); err != nil {
			return fmt.Errorf("failed to write chart: %w", err)
		}
		logger.Info("Chart written", "path", chartPath)
	}
	return nil
}

func printResults(w io.Writer, v render.View) {
	if v.Phase == render.PhaseFailed {
		fmt.Fprintln(w, v.Failure)
		return
	}
	for _, n := range v.Notices {
		fmt.Fprintln(w, n)
	}
	for i, c := range v.Cards {
		if i > 0 || len(v.Notices) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, c.Title)
		for _, s := range c.Stats {
			fmt.Fprintf(w, "  %s: %s\n", s.Label, s.Value)
		}
		for _, e := range c.Errors {
			fmt.Fprintf(w, "  ! %s\n", e)
		}
	}
}

// readROI loads the first geometry of a GeoJSON file.
func readROI(path string) (orb.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROI: %w", err)
	}

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && fc.Type == "FeatureCollection" {
		for _, f := range fc.Features {
			if f.Geometry != nil {
				return f.Geometry, nil
			}
		}
		return nil, fmt.Errorf("%s: %w", path, draw.ErrNoGeometry)
	}
	return draw.DecodeGeometry(data)
}

func kindOf(g orb.Geometry) draw.Kind {
	if _, ok := g.(orb.Point); ok {
		return draw.KindMarker
	}
	return draw.KindPolygon
}

// parsePoint parses "lon,lat".
func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("expected lon,lat, got %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude: %w", err)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("point %v,%v out of range", lon, lat)
	}
	return orb.Point{lon, lat}, nil
}

// parsePeriodFlag splits "[label=]start:end". Dates are validated later,
// together with the rest of the request.
func parsePeriodFlag(s string) (label, start, end string, err error) {
	rest := s
	if i := strings.LastIndex(s, "="); i >= 0 {
		label, rest = strings.TrimSpace(s[:i]), s[i+1:]
	}
	start, end, ok := strings.Cut(rest, ":")
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if !ok || start == "" || end == "" {
		return "", "", "", errors.New("expected [label=]start:end")
	}
	return label, start, end, nil
}
