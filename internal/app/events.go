package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/ndvimap/internal/analysis"
	"github.com/MeKo-Tech/ndvimap/internal/draw"
	"github.com/paulmach/orb"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Event is a user action or map callback applied to the session state.
type Event interface {
	Type() string
}

type GeometryDrawn struct {
	Kind     draw.Kind
	Geometry orb.Geometry
}

type GeometryEdited struct {
	Kind     draw.Kind
	Geometry orb.Geometry
}

type GeometryDeleted struct {
	Kind draw.Kind
}

type PeriodAdded struct{}

type PeriodRemoved struct {
	Period int
}

type PeriodRenamed struct {
	Period int
	Label  string
}

type PeriodLabelBlurred struct {
	Period int
}

type PeriodDatesChanged struct {
	Period int
	Start  string
	End    string
}

type AnalyzeRequested struct {
	Mode analysis.Mode
}

type GeocodeRequested struct {
	Query string
}

// SearchResultSelected recentres the map on one of the listed search results.
type SearchResultSelected struct {
	Index int
}

type LayerToggled struct {
	Overlay string
	Visible bool
}

type BasemapSwitched struct {
	Basemap string
}

type ClearAll struct{}

func (GeometryDrawn) Type() string        { return "geometry_drawn" }
func (GeometryEdited) Type() string       { return "geometry_edited" }
func (GeometryDeleted) Type() string      { return "geometry_deleted" }
func (PeriodAdded) Type() string          { return "period_added" }
func (PeriodRemoved) Type() string        { return "period_removed" }
func (PeriodRenamed) Type() string        { return "period_renamed" }
func (PeriodLabelBlurred) Type() string   { return "period_label_blurred" }
func (PeriodDatesChanged) Type() string   { return "period_dates_changed" }
func (AnalyzeRequested) Type() string     { return "analyze_requested" }
func (GeocodeRequested) Type() string     { return "geocode_requested" }
func (SearchResultSelected) Type() string { return "search_result_selected" }
func (LayerToggled) Type() string         { return "layer_toggled" }
func (BasemapSwitched) Type() string      { return "basemap_switched" }
func (ClearAll) Type() string             { return "clear_all" }

// envelope is the wire form of every event.
type envelope struct {
	Type     string          `json:"type"`
	Kind     string          `json:"kind,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
	Period   int             `json:"period,omitempty"`
	Label    string          `json:"label,omitempty"`
	Start    string          `json:"start,omitempty"`
	End      string          `json:"end,omitempty"`
	Mode     string          `json:"mode,omitempty"`
	Query    string          `json:"query,omitempty"`
	Index    int             `json:"index,omitempty"`
	Overlay  string          `json:"overlay,omitempty"`
	Visible  bool            `json:"visible,omitempty"`
	Basemap  string          `json:"basemap,omitempty"`
}

// DecodeEvent parses a JSON event envelope such as
// {"type":"period_renamed","period":2,"label":"Seca"}.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch env.Type {
	case "geometry_drawn", "geometry_edited":
		kind, err := draw.ParseKind(env.Kind)
		if err != nil {
			return nil, err
		}
		g, err := draw.DecodeGeometry(env.Geometry)
		if err != nil {
			return nil, err
		}
		if env.Type == "geometry_drawn" {
			return GeometryDrawn{Kind: kind, Geometry: g}, nil
		}
		return GeometryEdited{Kind: kind, Geometry: g}, nil
	case "geometry_deleted":
		kind, err := draw.ParseKind(env.Kind)
		if err != nil {
			return nil, err
		}
		return GeometryDeleted{Kind: kind}, nil
	case "period_added":
		return PeriodAdded{}, nil
	case "period_removed":
		return PeriodRemoved{Period: env.Period}, nil
	case "period_renamed":
		return PeriodRenamed{Period: env.Period, Label: env.Label}, nil
	case "period_label_blurred":
		return PeriodLabelBlurred{Period: env.Period}, nil
	case "period_dates_changed":
		return PeriodDatesChanged{Period: env.Period, Start: env.Start, End: env.End}, nil
	case "analyze_requested":
		mode, err := analysis.ParseMode(env.Mode)
		if err != nil {
			return nil, err
		}
		return AnalyzeRequested{Mode: mode}, nil
	case "geocode_requested":
		return GeocodeRequested{Query: env.Query}, nil
	case "search_result_selected":
		return SearchResultSelected{Index: env.Index}, nil
	case "layer_toggled":
		return LayerToggled{Overlay: env.Overlay, Visible: env.Visible}, nil
	case "basemap_switched":
		return BasemapSwitched{Basemap: env.Basemap}, nil
	case "clear_all":
		return ClearAll{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
}
