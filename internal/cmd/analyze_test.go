package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/ndvimap/internal/draw"
	"github.com/MeKo-Tech/ndvimap/internal/render"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriodFlag(t *testing.T) {
	tests := []struct {
		input      string
		label      string
		start, end string
		wantErr    bool
	}{
		{input: "2024-01-01:2024-03-31", start: "2024-01-01", end: "2024-03-31"},
		{input: "Seca=2024-06-01:2024-09-30", label: "Seca", start: "2024-06-01", end: "2024-09-30"},
		{input: " Chuva = 2024-10-01 : 2025-03-31 ", label: "Chuva", start: "2024-10-01", end: "2025-03-31"},
		{input: "2024-01-01", wantErr: true},
		{input: "x=:2024-01-01", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			label, start, end, err := parsePeriodFlag(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestParsePoint(t *testing.T) {
	pt, err := parsePoint("-47.93, -15.78")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-47.93, -15.78}, pt)

	for _, bad := range []string{"", "1", "a,b", "1,2,3", "200,0", "0,-91"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadROI(t *testing.T) {
	square := `{"type":"Polygon","coordinates":[[[-48,-16],[-47,-16],[-47,-15],[-48,-15],[-48,-16]]]}`

	t.Run("geometry", func(t *testing.T) {
		g, err := readROI(writeFile(t, "g.geojson", square))
		require.NoError(t, err)
		assert.Equal(t, draw.KindPolygon, kindOf(g))
	})

	t.Run("feature collection", func(t *testing.T) {
		fc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":` + square + `}]}`
		g, err := readROI(writeFile(t, "fc.geojson", fc))
		require.NoError(t, err)
		_, ok := g.(orb.Polygon)
		assert.True(t, ok)
	})

	t.Run("point feature", func(t *testing.T) {
		f := `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[-47.9,-15.8]}}`
		g, err := readROI(writeFile(t, "f.geojson", f))
		require.NoError(t, err)
		assert.Equal(t, draw.KindMarker, kindOf(g))
	})

	t.Run("empty collection", func(t *testing.T) {
		_, err := readROI(writeFile(t, "e.geojson", `{"type":"FeatureCollection","features":[]}`))
		assert.ErrorIs(t, err, draw.ErrNoGeometry)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readROI(filepath.Join(t.TempDir(), "nope.geojson"))
		assert.Error(t, err)
	})
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, render.View{
		Phase:   render.PhaseSuccess,
		Notices: []string{"Erro nos tiles de imagem: quota"},
		Cards: []render.Card{
			{Title: "Seca (Sentinel-2)", Stats: []render.Stat{{Label: "Média", Value: "0.6100"}}},
			{Title: "Período 2", Errors: []string{"sem imagens"}},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Erro nos tiles de imagem: quota")
	assert.Contains(t, out, "Seca (Sentinel-2)\n  Média: 0.6100\n")
	assert.Contains(t, out, "Período 2\n  ! sem imagens\n")

	buf.Reset()
	printResults(&buf, render.View{Phase: render.PhaseFailed, Failure: render.GenericFailure})
	assert.Equal(t, render.GenericFailure+"\n", buf.String())
}

func TestAnalyzeCommand(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/climate_stats", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"precipitation": {"period_1": {"precipitation_sum": 120.5, "precipitation_daily_mean": 1.3}},
			"temperature": {"period_1": {"temperature_mean_celsius": 24.1, "temperature_max_celsius": 31.0, "temperature_min_celsius": 17.2}}
		}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"analyze", "--api-url", srv.URL,
		"--mode", "climate", "--point", "-47.93,-15.78",
		"--period", "Ano=2024-01-01:2024-12-31",
	})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	assert.JSONEq(t, `{"type":"Point","coordinates":[-47.93,-15.78]}`, string(got["point"]))
	assert.JSONEq(t, `[["2024-01-01","2024-12-31"]]`, string(got["date_periods"]))

	lines := strings.Split(out.String(), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "Ano", lines[0])
	assert.Contains(t, out.String(), "Precipitação total: 120.5 mm")
	assert.Contains(t, out.String(), "Temperatura média: 24.1 °C")
}
