// Package draw holds the geometry a user has drawn on the map: at most one
// polygon (the region of interest) and at most one marker.
package draw

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Kind identifies which drawing tool produced a geometry.
type Kind string

const (
	KindPolygon Kind = "polygon"
	KindMarker  Kind = "marker"
)

var (
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrNoPolygon       = errors.New("no polygon drawn")
	ErrNoGeometry      = errors.New("no geometry drawn")
)

// ParseKind validates a kind coming from the page.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPolygon, KindMarker:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidGeometry, s)
}

// Surface owns the drawn geometry. A new draw of one kind evicts the
// previous geometry of that kind; the other kind is untouched.
type Surface struct {
	polygon orb.Ring // open vertex list V1..Vn
	marker  *orb.Point
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Created records a newly drawn geometry, replacing any prior one of the same kind.
func (s *Surface) Created(kind Kind, g orb.Geometry) error {
	return s.store(kind, g)
}

// Edited replaces the stored geometry of the given kind after a vertex edit
// or a marker drag.
func (s *Surface) Edited(kind Kind, g orb.Geometry) error {
	return s.store(kind, g)
}

// Deleted drops the geometry of the given kind.
func (s *Surface) Deleted(kind Kind) {
	switch kind {
	case KindPolygon:
		s.polygon = nil
	case KindMarker:
		s.marker = nil
	}
}

// Clear drops everything.
func (s *Surface) Clear() {
	s.polygon = nil
	s.marker = nil
}

func (s *Surface) store(kind Kind, g orb.Geometry) error {
	switch kind {
	case KindPolygon:
		ring, err := vertices(g)
		if err != nil {
			return err
		}
		s.polygon = ring
	case KindMarker:
		p, ok := g.(orb.Point)
		if !ok {
			return fmt.Errorf("%w: marker must be a Point, got %T", ErrInvalidGeometry, g)
		}
		s.marker = &p
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidGeometry, kind)
	}
	return nil
}

// vertices extracts the open outer ring of a polygon. Leaflet's toGeoJSON
// already closes rings, so a trailing copy of the first vertex is dropped.
func vertices(g orb.Geometry) (orb.Ring, error) {
	var ring orb.Ring
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: polygon without rings", ErrInvalidGeometry)
		}
		ring = v[0]
	case orb.Ring:
		ring = v
	default:
		return nil, fmt.Errorf("%w: polygon must be a Polygon, got %T", ErrInvalidGeometry, g)
	}

	out := make(orb.Ring, len(ring))
	copy(out, ring)
	if len(out) > 1 && out[0].Equal(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	distinct := make(map[orb.Point]struct{}, len(out))
	for _, p := range out {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, fmt.Errorf("%w: polygon needs at least 3 distinct vertices, got %d", ErrInvalidGeometry, len(distinct))
	}
	return out, nil
}

// HasPolygon reports whether a polygon is drawn.
func (s *Surface) HasPolygon() bool { return s.polygon != nil }

// HasMarker reports whether a marker is drawn.
func (s *Surface) HasMarker() bool { return s.marker != nil }

// Polygon returns the drawn polygon with a closed ring [V1..Vn, V1].
func (s *Surface) Polygon() (orb.Polygon, bool) {
	if s.polygon == nil {
		return nil, false
	}
	ring := make(orb.Ring, 0, len(s.polygon)+1)
	ring = append(ring, s.polygon...)
	ring = append(ring, s.polygon[0])
	return orb.Polygon{ring}, true
}

// Marker returns the drawn marker.
func (s *Surface) Marker() (orb.Point, bool) {
	if s.marker == nil {
		return orb.Point{}, false
	}
	return *s.marker, true
}

// ROI returns the region of interest as a GeoJSON Polygon geometry.
func (s *Surface) ROI() (*geojson.Geometry, error) {
	poly, ok := s.Polygon()
	if !ok {
		return nil, ErrNoPolygon
	}
	return geojson.NewGeometry(poly), nil
}

// AnalysisPoint returns the marker when one is drawn, else the polygon centroid.
func (s *Surface) AnalysisPoint() (orb.Point, error) {
	if s.marker != nil {
		return *s.marker, nil
	}
	poly, ok := s.Polygon()
	if !ok {
		return orb.Point{}, ErrNoGeometry
	}
	c, area := planar.CentroidArea(poly)
	if area == 0 {
		// degenerate ring; fall back to the bound centre
		return poly.Bound().Center(), nil
	}
	return c, nil
}

// Bound returns the bounding box of everything drawn.
func (s *Surface) Bound() (orb.Bound, bool) {
	var (
		b  orb.Bound
		ok bool
	)
	if poly, has := s.Polygon(); has {
		b, ok = poly.Bound(), true
	}
	if s.marker != nil {
		if ok {
			b = b.Extend(*s.marker)
		} else {
			b, ok = s.marker.Bound(), true
		}
	}
	return b, ok
}

// FeatureCollection exports the drawn items, polygon first.
func (s *Surface) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if poly, ok := s.Polygon(); ok {
		f := geojson.NewFeature(poly)
		f.Properties["kind"] = string(KindPolygon)
		fc.Append(f)
	}
	if s.marker != nil {
		f := geojson.NewFeature(*s.marker)
		f.Properties["kind"] = string(KindMarker)
		fc.Append(f)
	}
	return fc
}
