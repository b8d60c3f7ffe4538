package draw

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() orb.Polygon {
	return orb.Polygon{{{-47.9, -15.8}, {-47.8, -15.8}, {-47.8, -15.7}, {-47.9, -15.7}}}
}

func TestSurface_ROIClosesRing(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Created(KindPolygon, square()))

	roi, err := s.ROI()
	require.NoError(t, err)

	poly, ok := roi.Geometry().(orb.Polygon)
	require.True(t, ok)
	ring := poly[0]
	require.Len(t, ring, 5)
	assert.Equal(t, orb.Point{-47.9, -15.8}, ring[0])
	assert.Equal(t, ring[0], ring[4])
	assert.Equal(t, orb.Point{-47.9, -15.7}, ring[3])
}

func TestSurface_AlreadyClosedRingIsNotDoubled(t *testing.T) {
	closed := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}

	s := NewSurface()
	require.NoError(t, s.Created(KindPolygon, closed))

	poly, _ := s.Polygon()
	assert.Equal(t, closed, poly)
}

func TestSurface_NewDrawEvictsSameKindOnly(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Created(KindPolygon, square()))
	require.NoError(t, s.Created(KindMarker, orb.Point{1, 2}))

	other := orb.Polygon{{{10, 10}, {11, 10}, {11, 11}}}
	require.NoError(t, s.Created(KindPolygon, other))

	poly, _ := s.Polygon()
	assert.Equal(t, orb.Ring{{10, 10}, {11, 10}, {11, 11}, {10, 10}}, poly[0])
	m, ok := s.Marker()
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 2}, m)

	require.NoError(t, s.Created(KindMarker, orb.Point{3, 4}))
	m, _ = s.Marker()
	assert.Equal(t, orb.Point{3, 4}, m)
}

func TestSurface_EditAndDelete(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Created(KindPolygon, square()))
	require.NoError(t, s.Edited(KindPolygon, orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}))
	poly, _ := s.Polygon()
	assert.Len(t, poly[0], 5)

	s.Deleted(KindPolygon)
	assert.False(t, s.HasPolygon())

	_, err := s.ROI()
	assert.ErrorIs(t, err, ErrNoPolygon)
}

func TestSurface_RejectsInvalid(t *testing.T) {
	s := NewSurface()

	err := s.Created(KindPolygon, orb.Polygon{{{0, 0}, {1, 1}}})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	// four points, two distinct
	a, b := orb.Point{0, 0}, orb.Point{1, 1}
	err = s.Created(KindPolygon, orb.Polygon{{a, a, b, a}})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	err = s.Created(KindPolygon, orb.Polygon{{a, b, a, b, a}})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	err = s.Created(KindMarker, square())
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	err = s.Created(Kind("circle"), orb.Point{0, 0})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	assert.False(t, s.HasPolygon())
	assert.False(t, s.HasMarker())
}

func TestSurface_AnalysisPoint(t *testing.T) {
	s := NewSurface()
	_, err := s.AnalysisPoint()
	require.ErrorIs(t, err, ErrNoGeometry)

	require.NoError(t, s.Created(KindPolygon, orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}))
	p, err := s.AnalysisPoint()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.Lon(), 1e-9)
	assert.InDelta(t, 1.0, p.Lat(), 1e-9)

	require.NoError(t, s.Created(KindMarker, orb.Point{5, 6}))
	p, err = s.AnalysisPoint()
	require.NoError(t, err)
	assert.Equal(t, orb.Point{5, 6}, p)
}

func TestSurface_Clear(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Created(KindPolygon, square()))
	require.NoError(t, s.Created(KindMarker, orb.Point{1, 1}))

	s.Clear()
	_, ok := s.Bound()
	assert.False(t, ok)
}

func TestDecodeGeometry(t *testing.T) {
	t.Run("geometry", func(t *testing.T) {
		g, err := DecodeGeometry([]byte(`{"type":"Point","coordinates":[-47.9,-15.7]}`))
		require.NoError(t, err)
		assert.Equal(t, orb.Point{-47.9, -15.7}, g)
	})

	t.Run("feature", func(t *testing.T) {
		g, err := DecodeGeometry([]byte(`{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`))
		require.NoError(t, err)
		_, ok := g.(orb.Polygon)
		assert.True(t, ok)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeGeometry([]byte(`{nope`))
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})
}

func TestFeatureCollectionBytes(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Created(KindPolygon, square()))
	require.NoError(t, s.Created(KindMarker, orb.Point{1, 1}))

	data, err := s.FeatureCollectionBytes()
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]string `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	assert.Equal(t, "marker", fc.Features[1].Properties["kind"])
}
