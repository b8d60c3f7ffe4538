package analysis

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/ndvimap/internal/draw"
	"github.com/MeKo-Tech/ndvimap/internal/period"
	"github.com/paulmach/orb/geojson"
)

// DateLayout is the wire format of period dates.
const DateLayout = "2006-01-02"

// Mode selects the analysis endpoint.
type Mode string

const (
	ModeVegetation Mode = "vegetation"
	ModeClimate    Mode = "climate"
)

// ParseMode validates a mode name. An empty name means vegetation.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeVegetation:
		return ModeVegetation, nil
	case ModeClimate:
		return ModeClimate, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q", s)
}

// Endpoint returns the path of the mode's endpoint relative to the API base.
func (m Mode) Endpoint() string {
	if m == ModeClimate {
		return "climate_stats"
	}
	return "ndvi_composite"
}

// DatePeriod is one [start, end] pair on the wire.
type DatePeriod [2]string

// VegetationRequest is the body of POST /ndvi_composite.
type VegetationRequest struct {
	ROI         *geojson.Geometry `json:"roi"`
	DatePeriods []DatePeriod      `json:"date_periods"`
}

// ClimateRequest is the body of POST /climate_stats.
type ClimateRequest struct {
	Point       *geojson.Geometry `json:"point"`
	DatePeriods []DatePeriod      `json:"date_periods"`
}

// Submission is a validated request together with the periods it carries,
// so that response keys period_N can be mapped back to list rows.
type Submission struct {
	Mode       Mode
	Vegetation *VegetationRequest
	Climate    *ClimateRequest
	Periods    []period.Range
}

// Body returns the JSON body to post.
func (s *Submission) Body() any {
	if s.Mode == ModeClimate {
		return s.Climate
	}
	return s.Vegetation
}

// PeriodFor maps a response key such as "period_2" to the submitted period.
func (s *Submission) PeriodFor(key string) (period.Range, bool) {
	n, ok := PeriodNumber(key)
	if !ok || n < 1 || n > len(s.Periods) {
		return period.Range{}, false
	}
	return s.Periods[n-1], true
}

// Build validates the drawn geometry and periods for the given mode and
// assembles the request. Nothing is sent when it fails.
func Build(mode Mode, surface *draw.Surface, periods []period.Range) (*Submission, error) {
	sub := &Submission{Mode: mode, Periods: periods}

	switch mode {
	case ModeVegetation:
		roi, err := surface.ROI()
		if err != nil {
			return nil, &ValidationError{Message: MsgDrawPolygon, Err: err}
		}
		dp, err := datePeriods(periods)
		if err != nil {
			return nil, err
		}
		sub.Vegetation = &VegetationRequest{ROI: roi, DatePeriods: dp}
	case ModeClimate:
		pt, err := surface.AnalysisPoint()
		if err != nil {
			return nil, &ValidationError{Message: MsgDrawPoint, Err: err}
		}
		dp, err := datePeriods(periods)
		if err != nil {
			return nil, err
		}
		sub.Climate = &ClimateRequest{Point: geojson.NewGeometry(pt), DatePeriods: dp}
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", mode)
	}

	return sub, nil
}

func datePeriods(periods []period.Range) ([]DatePeriod, error) {
	if len(periods) == 0 {
		return nil, &ValidationError{Message: MsgAddPeriod, Err: ErrNoPeriods}
	}

	out := make([]DatePeriod, 0, len(periods))
	for _, p := range periods {
		start, err := time.Parse(DateLayout, p.Start)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf(MsgBadDate, p.Label), Err: err}
		}
		end, err := time.Parse(DateLayout, p.End)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf(MsgBadDate, p.Label), Err: err}
		}
		if end.Before(start) {
			return nil, &ValidationError{Message: fmt.Sprintf(MsgReversed, p.Label), Err: ErrReversedPeriod}
		}
		out = append(out, DatePeriod{p.Start, p.End})
	}
	return out, nil
}
