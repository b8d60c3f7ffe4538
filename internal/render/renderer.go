// Package render turns analysis responses into a view-model of result cards
// and registers the returned tile layers and legends.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/MeKo-Tech/ndvimap/internal/analysis"
	"github.com/MeKo-Tech/ndvimap/internal/layers"
)

// Phase is the state of the current analysis.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// GenericFailure is shown when the server gives no message.
const GenericFailure = "Erro ao buscar resultados."

// Stat is one labelled value on a card.
type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card is the result of one period.
type Card struct {
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Satellite string   `json:"satellite,omitempty"`
	Stats     []Stat   `json:"stats,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	// Mean is the NDVI mean, kept numeric for charting.
	Mean *float64 `json:"mean,omitempty"`
}

// Failed reports whether the card has nothing but errors.
func (c Card) Failed() bool {
	return len(c.Stats) == 0 && len(c.Errors) > 0
}

// View is what the result panel shows.
type View struct {
	Phase   Phase         `json:"phase"`
	Mode    analysis.Mode `json:"mode,omitempty"`
	Cards   []Card        `json:"cards,omitempty"`
	Notices []string      `json:"notices,omitempty"`
	Failure string        `json:"failure,omitempty"`
}

// Renderer owns the result view and feeds overlays into a layer registry.
type Renderer struct {
	layers *layers.Registry
	logger *slog.Logger
	view   View
}

// New creates a renderer in the idle phase.
func New(reg *layers.Registry, logger *slog.Logger) *Renderer {
	return &Renderer{
		layers: reg,
		logger: logger,
		view:   View{Phase: PhaseIdle},
	}
}

// View returns a copy of the current view.
func (r *Renderer) View() View {
	v := r.view
	v.Cards = append([]Card(nil), r.view.Cards...)
	v.Notices = append([]string(nil), r.view.Notices...)
	return v
}

// Reset returns to idle with nothing shown.
func (r *Renderer) Reset() {
	r.view = View{Phase: PhaseIdle}
}

// Begin replaces any previous results with the loading indicator.
func (r *Renderer) Begin(mode analysis.Mode) {
	r.view = View{Phase: PhaseLoading, Mode: mode}
}

// Fail shows a single error block. The server's message is used when there
// is one.
func (r *Renderer) Fail(err error) {
	r.view = View{Phase: PhaseFailed, Mode: r.view.Mode, Failure: FailureMessage(err)}
	r.log().Warn("analysis failed", "error", err)
}

// FailureMessage picks the text of the page-level error block.
func FailureMessage(err error) string {
	var apiErr *analysis.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return GenericFailure
	}
	if err == nil {
		return GenericFailure
	}
	return fmt.Sprintf("%s (%v)", GenericFailure, err)
}

// Vegetation renders an NDVI composite response: statistics cards, NDVI
// and RGB overlays, and the NDVI legend.
func (r *Renderer) Vegetation(sub *analysis.Submission, resp *analysis.VegetationResponse) {
	r.view = View{Phase: PhaseSuccess, Mode: analysis.ModeVegetation}

	if resp.NDVI.Error != "" {
		r.notice("Erro nos dados de NDVI: " + resp.NDVI.Error)
	}
	failed := make(map[string]bool)
	for _, key := range resp.NDVI.Keys() {
		entry := resp.NDVI.Periods[key]
		title := periodTitle(sub, key)
		if entry.Error != "" {
			failed[key] = true
			r.log().Warn("period failed", "period", key, "error", entry.Error)
			r.view.Cards = append(r.view.Cards, Card{Key: key, Title: title, Errors: []string{entry.Error}})
			continue
		}
		s := entry.Value
		r.view.Cards = append(r.view.Cards, Card{
			Key:       key,
			Title:     fmt.Sprintf("%s (%s)", title, analysis.SatelliteName(s.Satellite)),
			Satellite: s.Satellite,
			Mean:      s.Mean,
			Stats: []Stat{
				{Label: "Média", Value: formatFloat(s.Mean, 4, "")},
				{Label: "Mínimo", Value: formatFloat(s.Min, 4, "")},
				{Label: "Máximo", Value: formatFloat(s.Max, 4, "")},
			},
		})
	}

	r.layers.BeginBatch()
	r.tiles(sub, resp.NDVITiles, failed, layers.GroupNDVI, "NDVI", "Erro nos tiles de NDVI: ", &layers.NDVILegend)
	r.tiles(sub, resp.ImageTiles, failed, layers.GroupRGB, "RGB", "Erro nos tiles de imagem: ", nil)
}

// tiles registers the overlays of one tile section. Periods whose
// statistics failed get no overlay.
func (r *Renderer) tiles(sub *analysis.Submission, sec analysis.Section[analysis.TileInfo], skip map[string]bool, group layers.Group, prefix, errPrefix string, legend *layers.Legend) {
	if sec.Error != "" {
		r.notice(errPrefix + sec.Error)
		return
	}
	for _, key := range sec.Keys() {
		entry := sec.Periods[key]
		if skip[key] {
			continue
		}
		if entry.Error != "" {
			r.log().Warn("tile layer failed", "group", group, "period", key, "error", entry.Error)
			continue
		}
		if entry.Value.TileURL == "" {
			continue
		}
		name := fmt.Sprintf("%s %s (%s)", prefix, periodTitle(sub, key), analysis.SatelliteName(entry.Value.Satellite))
		r.layers.Add(group, name, entry.Value.TileURL, entry.Value.Satellite)
		if legend != nil {
			r.layers.AddLegend(*legend)
		}
	}
}

// Climate renders a climate statistics response, one card per period with
// precipitation and temperature combined.
func (r *Renderer) Climate(sub *analysis.Submission, resp *analysis.ClimateResponse) {
	r.view = View{Phase: PhaseSuccess, Mode: analysis.ModeClimate}

	if resp.Precipitation.Error != "" {
		r.notice("Erro nos dados de precipitação: " + resp.Precipitation.Error)
	}
	if resp.Temperature.Error != "" {
		r.notice("Erro nos dados de temperatura: " + resp.Temperature.Error)
	}

	seen := make(map[string]bool)
	var keys []string
	for _, k := range append(resp.Precipitation.Keys(), resp.Temperature.Keys()...) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	analysis.SortKeys(keys)

	for _, key := range keys {
		card := Card{Key: key, Title: periodTitle(sub, key)}

		if e, ok := resp.Precipitation.Periods[key]; ok {
			if e.Error != "" {
				card.Errors = append(card.Errors, "Precipitação: "+e.Error)
			} else {
				card.Stats = append(card.Stats,
					Stat{Label: "Precipitação total", Value: formatFloat(e.Value.Sum, 1, " mm")},
					Stat{Label: "Precipitação média diária", Value: formatFloat(e.Value.DailyMean, 2, " mm/dia")},
				)
			}
		}
		if e, ok := resp.Temperature.Periods[key]; ok {
			if e.Error != "" {
				card.Errors = append(card.Errors, "Temperatura: "+e.Error)
			} else {
				card.Stats = append(card.Stats,
					Stat{Label: "Temperatura média", Value: formatFloat(e.Value.Mean, 1, " °C")},
					Stat{Label: "Temperatura máxima", Value: formatFloat(e.Value.Max, 1, " °C")},
					Stat{Label: "Temperatura mínima", Value: formatFloat(e.Value.Min, 1, " °C")},
				)
			}
		}
		r.view.Cards = append(r.view.Cards, card)
	}
}

func (r *Renderer) notice(msg string) {
	r.view.Notices = append(r.view.Notices, msg)
}

// periodTitle names a response key after the submitted period it refers to.
func periodTitle(sub *analysis.Submission, key string) string {
	if sub != nil {
		if p, ok := sub.PeriodFor(key); ok {
			return p.Label
		}
	}
	if n, ok := analysis.PeriodNumber(key); ok {
		return "Período " + strconv.Itoa(n)
	}
	return key
}

func formatFloat(v *float64, prec int, unit string) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64) + unit
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
