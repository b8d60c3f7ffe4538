// Package layers keeps the analysis overlays and legends currently on the map.
package layers

import (
	"errors"
	"fmt"
)

var ErrUnknownOverlay = errors.New("unknown overlay")

// Group names the kind of raster an overlay shows.
type Group string

const (
	GroupNDVI Group = "ndvi"
	GroupRGB  Group = "rgb"
)

// Overlay is a raster tile layer added to the map.
type Overlay struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Group     Group  `json:"group"`
	URL       string `json:"url"`
	Satellite string `json:"satellite,omitempty"`
	Visible   bool   `json:"visible"`
}

// Legend is a colour ramp shown for a layer group.
type Legend struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette"`
}

// NDVILegend is shared by every NDVI overlay.
var NDVILegend = Legend{
	Key:     "ndvi",
	Title:   "NDVI",
	Min:     -0.2,
	Max:     0.8,
	Palette: []string{"#d73027", "#fc8d59", "#fee08b", "#d9ef8b", "#91cf60", "#1a9850"},
}

// Registry tracks overlays in insertion order and legends by title.
type Registry struct {
	overlays []*Overlay
	byID     map[string]*Overlay
	byName   map[string]*Overlay
	legends  []Legend
	titles   map[string]bool
	batch    bool // a batch is open and its first overlay is already visible
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Overlay),
		byName: make(map[string]*Overlay),
		titles: make(map[string]bool),
	}
}

// BeginBatch starts a new batch of overlays; the first overlay added in the
// batch is visible and the rest are registered hidden.
func (r *Registry) BeginBatch() {
	r.batch = false
}

// Add registers an overlay under its display name and returns it. Re-adding
// a name replaces the overlay's URL and keeps its position and visibility.
func (r *Registry) Add(group Group, name, url, satellite string) *Overlay {
	if o, ok := r.byName[name]; ok {
		o.URL = url
		o.Satellite = satellite
		return o
	}

	o := &Overlay{
		ID:        fmt.Sprintf("%s-%d", group, len(r.overlays)+1),
		Name:      name,
		Group:     group,
		URL:       url,
		Satellite: satellite,
		Visible:   !r.batch,
	}
	r.batch = true
	r.overlays = append(r.overlays, o)
	r.byID[o.ID] = o
	r.byName[name] = o
	return o
}

// Toggle shows or hides an overlay.
func (r *Registry) Toggle(id string, visible bool) error {
	o, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOverlay, id)
	}
	o.Visible = visible
	return nil
}

// Overlay returns an overlay by id.
func (r *Registry) Overlay(id string) (Overlay, bool) {
	o, ok := r.byID[id]
	if !ok {
		return Overlay{}, false
	}
	return *o, true
}

// AddLegend adds a legend unless one with the same title is already shown.
func (r *Registry) AddLegend(l Legend) bool {
	if r.titles[l.Title] {
		return false
	}
	r.titles[l.Title] = true
	r.legends = append(r.legends, l)
	return true
}

// Legend returns a legend by key.
func (r *Registry) Legend(key string) (Legend, bool) {
	for _, l := range r.legends {
		if l.Key == key {
			return l, true
		}
	}
	return Legend{}, false
}

// Overlays returns a copy of every overlay in insertion order.
func (r *Registry) Overlays() []Overlay {
	out := make([]Overlay, len(r.overlays))
	for i, o := range r.overlays {
		out[i] = *o
	}
	return out
}

// Legends returns a copy of the legends in insertion order.
func (r *Registry) Legends() []Legend {
	out := make([]Legend, len(r.legends))
	copy(out, r.legends)
	return out
}

// Clear removes every overlay and legend.
func (r *Registry) Clear() {
	r.overlays = nil
	r.byID = make(map[string]*Overlay)
	r.byName = make(map[string]*Overlay)
	r.legends = nil
	r.titles = make(map[string]bool)
	r.batch = false
}
