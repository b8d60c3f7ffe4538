// Package chart draws summary charts of analysis results.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/MeKo-Tech/ndvimap/internal/render"
	"github.com/wcharczuk/go-chart/v2"
)

var ErrNoData = errors.New("no NDVI means to chart")

const (
	width    = 480
	height   = 320
	barWidth = 40
)

// Bars picks the cards that carry an NDVI mean, in card order.
func Bars(cards []render.Card) []chart.Value {
	var bars []chart.Value
	for _, c := range cards {
		if c.Mean == nil {
			continue
		}
		bars = append(bars, chart.Value{Value: *c.Mean, Label: c.Title})
	}
	return bars
}

// NDVIMeans renders a bar chart of the NDVI mean of every successful period.
func NDVIMeans(w io.Writer, cards []render.Card) error {
	bars := Bars(cards)
	if len(bars) == 0 {
		return ErrNoData
	}

	low := 0.0
	for _, b := range bars {
		low = math.Min(low, b.Value)
	}

	graph := chart.BarChart{
		Title:    "NDVI médio por período",
		Width:    width,
		Height:   height,
		BarWidth: barWidth,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: math.Floor(low*10) / 10, Max: 1},
		},
		Bars: bars,
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
