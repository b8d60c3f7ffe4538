// Package app owns the state of one map session and applies user events to it.
//
// All mutations go through Controller.Dispatch. Network calls run with the
// controller unlocked; their results are applied only if no newer analysis
// or clear happened in the meantime.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MeKo-Tech/ndvimap/internal/analysis"
	"github.com/MeKo-Tech/ndvimap/internal/chart"
	"github.com/MeKo-Tech/ndvimap/internal/draw"
	"github.com/MeKo-Tech/ndvimap/internal/geocode"
	"github.com/MeKo-Tech/ndvimap/internal/layers"
	"github.com/MeKo-Tech/ndvimap/internal/period"
	"github.com/MeKo-Tech/ndvimap/internal/render"
	"github.com/MeKo-Tech/ndvimap/internal/view"
	"github.com/paulmach/orb"
)

// Alert texts of the geocoder.
const (
	MsgEmptySearch = "Por favor, insira um termo de busca."
	MsgNotFound    = "Endereço não encontrado!"
	MsgSearchError = "Erro ao buscar localização: %v"
)

// SearchZoom is the zoom level used when centring on a search result.
const SearchZoom = 14

// DefaultMapView centres on Brazil.
var DefaultMapView = view.MapView{Lat: -15.7801, Lon: -47.9292, Zoom: 5}

var ErrNoSearchResult = errors.New("no such search result")

// Alert is a blocking message for the user. The action that raised it had
// no effect on the state.
type Alert struct {
	Message string
	Err     error
}

func (a *Alert) Error() string { return a.Message }

func (a *Alert) Unwrap() error { return a.Err }

// Analyzer calls the remote analysis service.
type Analyzer interface {
	Vegetation(ctx context.Context, req *analysis.VegetationRequest) (*analysis.VegetationResponse, error)
	Climate(ctx context.Context, req *analysis.ClimateRequest) (*analysis.ClimateResponse, error)
}

// Geocoder looks up free-text addresses.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Config wires a controller.
type Config struct {
	Analyzer Analyzer
	Geocoder Geocoder
	Logger   *slog.Logger
	// Map is the initial view; zero means DefaultMapView.
	Map view.MapView
}

// State is everything a session shows.
type State struct {
	Surface       *draw.Surface
	Periods       *period.List
	Layers        *layers.Registry
	Results       *render.Renderer
	Map           view.MapView
	Basemap       string
	Search        *view.SearchMarker
	SearchResults []geocode.Result
	// Seq is bumped by every analysis request and every clear.
	Seq uint64
	// SearchSeq is bumped by every search and every clear.
	SearchSeq uint64
}

// Controller serialises events against one State.
type Controller struct {
	mu       sync.Mutex
	state    State
	analyzer Analyzer
	geocoder Geocoder
	logger   *slog.Logger
}

// New creates a controller with a fresh state.
func New(cfg Config) *Controller {
	mv := cfg.Map
	if mv == (view.MapView{}) {
		mv = DefaultMapView
	}
	reg := layers.NewRegistry()
	return &Controller{
		state: State{
			Surface: draw.NewSurface(),
			Periods: period.New(),
			Layers:  reg,
			Results: render.New(reg, cfg.Logger),
			Map:     mv,
			Basemap: DefaultBasemap,
		},
		analyzer: cfg.Analyzer,
		geocoder: cfg.Geocoder,
		logger:   cfg.Logger,
	}
}

// Dispatch applies one event. A returned *Alert is meant for the user; any
// other error means the event itself was malformed.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case AnalyzeRequested:
		return c.analyze(ctx, e.Mode)
	case GeocodeRequested:
		return c.search(ctx, e.Query)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.log().Debug("event", "type", ev.Type())
	s := &c.state
	switch e := ev.(type) {
	case GeometryDrawn:
		return s.Surface.Created(e.Kind, e.Geometry)
	case GeometryEdited:
		return s.Surface.Edited(e.Kind, e.Geometry)
	case GeometryDeleted:
		s.Surface.Deleted(e.Kind)
	case PeriodAdded:
		s.Periods.Add()
	case PeriodRemoved:
		return s.Periods.Remove(e.Period)
	case PeriodRenamed:
		return s.Periods.Rename(e.Period, e.Label)
	case PeriodLabelBlurred:
		return s.Periods.Blur(e.Period)
	case PeriodDatesChanged:
		return s.Periods.SetDates(e.Period, e.Start, e.End)
	case SearchResultSelected:
		if e.Index < 0 || e.Index >= len(s.SearchResults) {
			return fmt.Errorf("%w: %d", ErrNoSearchResult, e.Index)
		}
		s.focus(s.SearchResults[e.Index])
	case LayerToggled:
		return s.Layers.Toggle(e.Overlay, e.Visible)
	case BasemapSwitched:
		if !knownBasemap(e.Basemap) {
			return fmt.Errorf("unknown basemap %q", e.Basemap)
		}
		s.Basemap = e.Basemap
	case ClearAll:
		s.Seq++
		s.SearchSeq++
		s.Surface.Clear()
		s.Periods.Reset()
		s.Layers.Clear()
		s.Results.Reset()
		s.Search = nil
		s.SearchResults = nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return nil
}

func (c *Controller) analyze(ctx context.Context, mode analysis.Mode) error {
	c.mu.Lock()
	sub, err := analysis.Build(mode, c.state.Surface, c.state.Periods.Periods())
	if err != nil {
		c.mu.Unlock()
		var verr *analysis.ValidationError
		if errors.As(err, &verr) {
			return &Alert{Message: verr.Message, Err: err}
		}
		return err
	}
	c.state.Layers.Clear()
	c.state.Results.Begin(mode)
	c.state.Seq++
	seq := c.state.Seq
	c.mu.Unlock()

	c.log().Info("analysis requested", "mode", mode, "periods", len(sub.Periods), "seq", seq)

	var (
		veg  *analysis.VegetationResponse
		clim *analysis.ClimateResponse
	)
	switch mode {
	case analysis.ModeClimate:
		clim, err = c.analyzer.Climate(ctx, sub.Climate)
	default:
		veg, err = c.analyzer.Vegetation(ctx, sub.Vegetation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Seq != seq {
		c.log().Info("discarding stale analysis response", "seq", seq, "current", c.state.Seq)
		return nil
	}
	switch {
	case err != nil:
		c.state.Results.Fail(err)
	case clim != nil:
		c.state.Results.Climate(sub, clim)
	default:
		c.state.Results.Vegetation(sub, veg)
	}
	return nil
}

func (c *Controller) search(ctx context.Context, query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return &Alert{Message: MsgEmptySearch, Err: geocode.ErrEmptyQuery}
	}

	c.mu.Lock()
	c.state.SearchSeq++
	seq := c.state.SearchSeq
	c.mu.Unlock()

	results, err := c.geocoder.Search(ctx, q)
	if err != nil {
		c.log().Warn("geocoding failed", "query", q, "error", err)
		return &Alert{Message: fmt.Sprintf(MsgSearchError, err), Err: err}
	}
	if len(results) == 0 {
		return &Alert{Message: MsgNotFound}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.SearchSeq != seq {
		c.log().Info("discarding stale search result", "query", q)
		return nil
	}
	c.state.SearchResults = results
	c.state.focus(results[0])
	return nil
}

func (s *State) focus(r geocode.Result) {
	s.Map = view.MapView{Lat: r.Lat, Lon: r.Lon, Zoom: SearchZoom}
	s.Search = &view.SearchMarker{Label: r.DisplayName, Lat: r.Lat, Lon: r.Lon}
}

// Model snapshots the state for rendering.
func (c *Controller) Model() view.Model {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.state
	m := view.Model{
		Seq:        s.Seq,
		Map:        s.Map,
		Basemaps:   basemapsWithActive(s.Basemap),
		Periods:    s.Periods.Rows(),
		HasPolygon: s.Surface.HasPolygon(),
		HasMarker:  s.Surface.HasMarker(),
		Results:    s.Results.View(),
		Overlays:   s.Layers.Overlays(),
		Legends:    s.Layers.Legends(),
		Search:     s.Search,
	}
	m.SearchResults = append(m.SearchResults, s.SearchResults...)
	if drawn, err := json.Marshal(s.Surface.FeatureCollection()); err == nil {
		m.Drawn = drawn
	} else {
		c.log().Error("marshal drawn items", "error", err)
	}
	if len(chart.Bars(m.Results.Cards)) > 0 {
		m.ChartURL = fmt.Sprintf("/api/chart.png?seq=%d", s.Seq)
	}
	return m
}

// WriteChart renders the NDVI means of the current results as PNG.
func (c *Controller) WriteChart(w io.Writer) error {
	c.mu.Lock()
	cards := c.state.Results.View().Cards
	c.mu.Unlock()
	return chart.NDVIMeans(w, cards)
}

// DrawnGeoJSON returns the drawn items as a FeatureCollection.
func (c *Controller) DrawnGeoJSON() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Surface.FeatureCollectionBytes()
}

// Legend returns a legend currently on the map.
func (c *Controller) Legend(key string) (layers.Legend, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Layers.Legend(key)
}

// ExportTarget returns an overlay together with the bounds of the drawn
// geometry, the area an export covers.
func (c *Controller) ExportTarget(overlayID string) (layers.Overlay, orb.Bound, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.state.Layers.Overlay(overlayID)
	if !ok {
		return layers.Overlay{}, orb.Bound{}, fmt.Errorf("%w: %s", layers.ErrUnknownOverlay, overlayID)
	}
	b, ok := c.state.Surface.Bound()
	if !ok {
		return layers.Overlay{}, orb.Bound{}, draw.ErrNoGeometry
	}
	return o, b, nil
}

func (c *Controller) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
