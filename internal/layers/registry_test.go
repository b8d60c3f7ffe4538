package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FirstOfBatchVisible(t *testing.T) {
	r := NewRegistry()
	r.BeginBatch()
	a := r.Add(GroupNDVI, "NDVI Período 1 (Sentinel-2)", "https://t/1/{z}/{x}/{y}", "sentinel")
	b := r.Add(GroupNDVI, "NDVI Período 2 (Landsat 9)", "https://t/2/{z}/{x}/{y}", "landsat")
	c := r.Add(GroupRGB, "RGB Período 1 (Sentinel-2)", "https://t/3/{z}/{x}/{y}", "sentinel")

	assert.True(t, a.Visible)
	assert.False(t, b.Visible)
	assert.False(t, c.Visible)
	assert.Len(t, r.Overlays(), 3)

	r.BeginBatch()
	d := r.Add(GroupNDVI, "NDVI Período 3 (Sentinel-2)", "https://t/4/{z}/{x}/{y}", "sentinel")
	assert.True(t, d.Visible)
}

func TestRegistry_ReAddKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Add(GroupNDVI, "a", "u1", "")
	r.Add(GroupNDVI, "b", "u2", "")
	r.Add(GroupNDVI, "a", "u3", "landsat")

	overlays := r.Overlays()
	require.Len(t, overlays, 2)
	assert.Equal(t, "a", overlays[0].Name)
	assert.Equal(t, "u3", overlays[0].URL)
	assert.True(t, overlays[0].Visible)
}

func TestRegistry_Toggle(t *testing.T) {
	r := NewRegistry()
	o := r.Add(GroupRGB, "RGB", "u", "")
	o2 := r.Add(GroupRGB, "RGB 2", "u2", "")

	require.NoError(t, r.Toggle(o.ID, false))
	require.NoError(t, r.Toggle(o2.ID, true))
	got, ok := r.Overlay(o2.ID)
	require.True(t, ok)
	assert.True(t, got.Visible)
	assert.ErrorIs(t, r.Toggle("nope", true), ErrUnknownOverlay)
}

func TestRegistry_LegendOncePerTitle(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.AddLegend(NDVILegend))
	assert.False(t, r.AddLegend(NDVILegend))
	assert.Len(t, r.Legends(), 1)

	l, ok := r.Legend("ndvi")
	require.True(t, ok)
	assert.Equal(t, "NDVI", l.Title)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	o := r.Add(GroupNDVI, "x", "u", "")
	r.AddLegend(NDVILegend)

	r.Clear()
	assert.Empty(t, r.Overlays())
	assert.Empty(t, r.Legends())
	_, ok := r.Overlay(o.ID)
	assert.False(t, ok)

	// the legend can be added again after a clear
	assert.True(t, r.AddLegend(NDVILegend))
}
