package view

import (
	"encoding/json"

	"github.com/MeKo-Tech/ndvimap/internal/geocode"
	"github.com/MeKo-Tech/ndvimap/internal/layers"
	"github.com/MeKo-Tech/ndvimap/internal/period"
	"github.com/MeKo-Tech/ndvimap/internal/render"
)

// MapView is the map centre and zoom.
type MapView struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// Basemap is one selectable background layer.
type Basemap struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	Active      bool   `json:"active"`
}

// SearchMarker marks the location found by the geocoder.
type SearchMarker struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Model is everything the page shows. It holds no behaviour.
type Model struct {
	Seq           uint64           `json:"seq"`
	Map           MapView          `json:"map"`
	Basemaps      []Basemap        `json:"basemaps"`
	Periods       []period.Row     `json:"periods"`
	Drawn         json.RawMessage  `json:"drawn"`
	HasPolygon    bool             `json:"has_polygon"`
	HasMarker     bool             `json:"has_marker"`
	Results       render.View      `json:"results"`
	Overlays      []layers.Overlay `json:"overlays"`
	Legends       []layers.Legend  `json:"legends"`
	Search        *SearchMarker    `json:"search,omitempty"`
	SearchResults []geocode.Result `json:"search_results,omitempty"`
	// ChartURL is set when the results include NDVI means to chart.
	ChartURL string `json:"chart_url,omitempty"`
}
