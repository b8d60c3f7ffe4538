package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VegetationStats is one period of the "ndvi" section.
type VegetationStats struct {
	Mean      *float64 `json:"ndvi_mean"`
	Min       *float64 `json:"ndvi_min"`
	Max       *float64 `json:"ndvi_max"`
	Satellite string   `json:"satellite"`
}

// TileInfo is one period of the "ndvi_tiles" or "image_tiles" sections.
type TileInfo struct {
	TileURL   string `json:"tile_url"`
	Satellite string `json:"satellite"`
}

// PrecipitationStats is one period of the "precipitation" section.
type PrecipitationStats struct {
	Sum       *float64 `json:"precipitation_sum"`
	DailyMean *float64 `json:"precipitation_daily_mean"`
}

// TemperatureStats is one period of the "temperature" section.
type TemperatureStats struct {
	Mean *float64 `json:"temperature_mean_celsius"`
	Max  *float64 `json:"temperature_max_celsius"`
	Min  *float64 `json:"temperature_min_celsius"`
}

// VegetationResponse is the body returned by /ndvi_composite.
type VegetationResponse struct {
	NDVI       Section[VegetationStats] `json:"ndvi"`
	NDVITiles  Section[TileInfo]        `json:"ndvi_tiles"`
	ImageTiles Section[TileInfo]        `json:"image_tiles"`
	Error      string                   `json:"error,omitempty"`
}

// ClimateResponse is the body returned by /climate_stats.
type ClimateResponse struct {
	Precipitation Section[PrecipitationStats] `json:"precipitation"`
	Temperature   Section[TemperatureStats]   `json:"temperature"`
	Error         string                      `json:"error,omitempty"`
}

// Entry is either a value or a per-period error reported by the server.
type Entry[T any] struct {
	Value *T
	Error string
}

func (e *Entry[T]) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Error != nil {
		e.Error = *probe.Error
		if e.Error == "" {
			e.Error = "erro desconhecido"
		}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	e.Value = &v
	return nil
}

func (e Entry[T]) MarshalJSON() ([]byte, error) {
	if e.Error != "" || e.Value == nil {
		return json.Marshal(map[string]string{"error": e.Error})
	}
	return json.Marshal(e.Value)
}

// Section maps period keys to entries. A section may instead carry a
// section-wide error, in which case Periods is empty.
type Section[T any] struct {
	Error   string
	Periods map[string]Entry[T]
}

func (s *Section[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("section is not an object: %w", err)
	}

	s.Periods = make(map[string]Entry[T], len(raw))
	for key, msg := range raw {
		if key == "error" {
			var msgStr string
			if err := json.Unmarshal(msg, &msgStr); err != nil {
				msgStr = string(msg)
			}
			s.Error = msgStr
			continue
		}
		var e Entry[T]
		if err := json.Unmarshal(msg, &e); err != nil {
			return fmt.Errorf("period %s: %w", key, err)
		}
		s.Periods[key] = e
	}
	if s.Error != "" {
		s.Periods = nil
	}
	return nil
}

func (s Section[T]) MarshalJSON() ([]byte, error) {
	if s.Error != "" {
		return json.Marshal(map[string]string{"error": s.Error})
	}
	if s.Periods == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.Periods)
}

// Keys returns the period keys in numeric order (period_2 before period_10).
func (s Section[T]) Keys() []string {
	keys := make([]string, 0, len(s.Periods))
	for k := range s.Periods {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// PeriodNumber extracts N from "period_N".
func PeriodNumber(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "period_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortKeys orders period keys numerically; unrecognised keys sort last, by name.
func SortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ni, oki := PeriodNumber(keys[i])
		nj, okj := PeriodNumber(keys[j])
		switch {
		case oki && okj:
			return ni < nj
		case oki != okj:
			return oki
		default:
			return keys[i] < keys[j]
		}
	})
}

// Satellite names as shown to the user.
func SatelliteName(id string) string {
	switch strings.ToLower(id) {
	case "sentinel":
		return "Sentinel-2"
	case "landsat":
		return "Landsat 9"
	default:
		return "Desconhecido"
	}
}
