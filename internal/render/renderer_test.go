package render

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/MeKo-Tech/ndvimap/internal/analysis"
	"github.com/MeKo-Tech/ndvimap/internal/layers"
	"github.com/MeKo-Tech/ndvimap/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeVegetation(t *testing.T, body string) *analysis.VegetationResponse {
	t.Helper()
	var resp analysis.VegetationResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

func submission(labels ...string) *analysis.Submission {
	sub := &analysis.Submission{Mode: analysis.ModeVegetation}
	for i, l := range labels {
		sub.Periods = append(sub.Periods, period.Range{Number: i + 1, Label: l, Start: "2023-01-01", End: "2023-02-01"})
	}
	return sub
}

func TestBegin_ShowsLoading(t *testing.T) {
	r := New(layers.NewRegistry(), nil)
	r.Vegetation(submission("Período 1"), decodeVegetation(t, `{"ndvi":{"period_1":{"ndvi_mean":0.5}}}`))
	require.Len(t, r.View().Cards, 1)

	r.Begin(analysis.ModeVegetation)
	v := r.View()
	assert.Equal(t, PhaseLoading, v.Phase)
	assert.Empty(t, v.Cards)
}

func TestVegetation_PeriodErrorRendersInline(t *testing.T) {
	reg := layers.NewRegistry()
	r := New(reg, nil)
	resp := decodeVegetation(t, `{
		"ndvi": {
			"period_1": {"error": "Sem imagens sem nuvens"},
			"period_2": {"ndvi_mean": 0.61234, "ndvi_min": 0.1, "ndvi_max": 0.9, "satellite": "sentinel"}
		},
		"ndvi_tiles": {
			"period_1": {"error": "Sem imagens sem nuvens"},
			"period_2": {"tile_url": "https://tiles/2/{z}/{x}/{y}", "satellite": "sentinel"}
		},
		"image_tiles": {}
	}`)

	r.Vegetation(submission("Período 1", "Chuvas"), resp)
	v := r.View()
	assert.Equal(t, PhaseSuccess, v.Phase)
	require.Len(t, v.Cards, 2)

	assert.True(t, v.Cards[0].Failed())
	assert.Equal(t, "Período 1", v.Cards[0].Title)
	assert.Equal(t, []string{"Sem imagens sem nuvens"}, v.Cards[0].Errors)

	assert.False(t, v.Cards[1].Failed())
	assert.Equal(t, "Chuvas (Sentinel-2)", v.Cards[1].Title)
	assert.Equal(t, Stat{Label: "Média", Value: "0.6123"}, v.Cards[1].Stats[0])

	overlays := reg.Overlays()
	require.Len(t, overlays, 1)
	assert.Equal(t, "NDVI Chuvas (Sentinel-2)", overlays[0].Name)
	assert.True(t, overlays[0].Visible)
}

func TestVegetation_FailedPeriodGetsNoOverlay(t *testing.T) {
	reg := layers.NewRegistry()
	r := New(reg, nil)
	r.Vegetation(submission("Seca", "Chuvas"), decodeVegetation(t, `{
		"ndvi": {
			"period_1": {"error": "Sem imagens sem nuvens"},
			"period_2": {"ndvi_mean": 0.4, "satellite": "landsat"}
		},
		"ndvi_tiles": {
			"period_1": {"tile_url": "https://tiles/1/{z}/{x}/{y}", "satellite": "landsat"},
			"period_2": {"tile_url": "https://tiles/2/{z}/{x}/{y}", "satellite": "landsat"}
		},
		"image_tiles": {
			"period_1": {"tile_url": "https://rgb/1/{z}/{x}/{y}", "satellite": "landsat"}
		}
	}`))

	overlays := reg.Overlays()
	require.Len(t, overlays, 1)
	assert.Equal(t, "NDVI Chuvas (Landsat 9)", overlays[0].Name)
}

func TestVegetation_OnlyFirstOverlayVisible(t *testing.T) {
	reg := layers.NewRegistry()
	r := New(reg, nil)
	resp := decodeVegetation(t, `{
		"ndvi": {},
		"ndvi_tiles": {
			"period_1": {"tile_url": "https://tiles/1/{z}/{x}/{y}", "satellite": "sentinel"},
			"period_2": {"tile_url": "https://tiles/2/{z}/{x}/{y}", "satellite": "landsat"}
		},
		"image_tiles": {
			"period_1": {"tile_url": "https://rgb/1/{z}/{x}/{y}", "satellite": "sentinel"}
		}
	}`)

	r.Vegetation(submission("Período 1", "Período 2"), resp)

	overlays := reg.Overlays()
	require.Len(t, overlays, 3)
	assert.True(t, overlays[0].Visible)
	assert.False(t, overlays[1].Visible)
	assert.False(t, overlays[2].Visible)
	assert.Equal(t, "https://tiles/1/{z}/{x}/{y}", overlays[0].URL)
	assert.Equal(t, "NDVI Período 2 (Landsat 9)", overlays[1].Name)
	assert.Equal(t, layers.GroupRGB, overlays[2].Group)

	legends := reg.Legends()
	require.Len(t, legends, 1)
	assert.Equal(t, "NDVI", legends[0].Title)
}

func TestVegetation_SectionErrors(t *testing.T) {
	reg := layers.NewRegistry()
	r := New(reg, nil)
	resp := decodeVegetation(t, `{"ndvi":{"error":"boom"},"ndvi_tiles":{"error":"tiles down"},"image_tiles":{}}`)

	r.Vegetation(submission(), resp)
	v := r.View()
	assert.Equal(t, []string{"Erro nos dados de NDVI: boom", "Erro nos tiles de NDVI: tiles down"}, v.Notices)
	assert.Empty(t, v.Cards)
	assert.Empty(t, reg.Overlays())
}

func TestVegetation_MissingStatsShowNA(t *testing.T) {
	r := New(layers.NewRegistry(), nil)
	r.Vegetation(nil, decodeVegetation(t, `{"ndvi":{"period_3":{"ndvi_mean":0}}}`))
	c := r.View().Cards[0]
	assert.Equal(t, "Período 3 (Desconhecido)", c.Title)
	assert.Equal(t, "0.0000", c.Stats[0].Value)
	assert.Equal(t, "N/A", c.Stats[1].Value)
}

func TestClimate_MergesSections(t *testing.T) {
	var resp analysis.ClimateResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"precipitation": {
			"period_1": {"precipitation_sum": 120.5, "precipitation_daily_mean": 4.016},
			"period_2": {"error": "sem dados"}
		},
		"temperature": {
			"period_1": {"temperature_mean_celsius": 24.31, "temperature_max_celsius": 31, "temperature_min_celsius": 17.2},
			"period_2": {"temperature_mean_celsius": 22}
		}
	}`), &resp))

	reg := layers.NewRegistry()
	r := New(reg, nil)
	r.Climate(submission("Verão", "Inverno"), &resp)

	v := r.View()
	require.Len(t, v.Cards, 2)
	assert.Equal(t, "Verão", v.Cards[0].Title)
	assert.Equal(t, "120.5 mm", v.Cards[0].Stats[0].Value)
	assert.Equal(t, "4.02 mm/dia", v.Cards[0].Stats[1].Value)
	assert.Equal(t, "24.3 °C", v.Cards[0].Stats[2].Value)

	assert.Equal(t, []string{"Precipitação: sem dados"}, v.Cards[1].Errors)
	assert.False(t, v.Cards[1].Failed())
	assert.Empty(t, reg.Overlays())
}

func TestFail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &analysis.APIError{StatusCode: 500, Message: "Earth Engine quota"}, "Earth Engine quota"},
		{"no message", &analysis.APIError{StatusCode: 502}, GenericFailure},
		{"transport", errors.New("connection refused"), GenericFailure + " (connection refused)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(layers.NewRegistry(), nil)
			r.Begin(analysis.ModeClimate)
			r.Fail(tt.err)
			v := r.View()
			assert.Equal(t, PhaseFailed, v.Phase)
			assert.Equal(t, analysis.ModeClimate, v.Mode)
			assert.Equal(t, tt.want, v.Failure)
			assert.Empty(t, v.Cards)
		})
	}
}
