// Package geocode resolves free-text addresses through a Nominatim search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEndpoint  = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent = "ndvimap/1.0 (+https://github.com/MeKo-Tech/ndvimap)"
	DefaultLimit     = 5
)

var ErrEmptyQuery = errors.New("empty search query")

// Result is one geocoding match.
type Result struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// nominatimResult is the wire shape; Nominatim sends coordinates as strings.
type nominatimResult struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Config configures the Nominatim client.
type Config struct {
	Endpoint   string
	UserAgent  string
	Limit      int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client queries Nominatim.
type Client struct {
	endpoint  string
	userAgent string
	limit     int
	client    *http.Client
	logger    *slog.Logger
}

// New creates a client. Nominatim's usage policy requires an identifying
// User-Agent, so one is always sent.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		limit:     cfg.Limit,
		client:    hc,
		logger:    cfg.Logger,
	}
}

// Search looks up a free-text query. An empty result slice with a nil error
// means nothing matched.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read nominatim response: %w", err)
	}

	var raw []nominatimResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			c.log().Warn("skipping result with bad latitude", "place_id", r.PlaceID, "lat", r.Lat)
			continue
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			c.log().Warn("skipping result with bad longitude", "place_id", r.PlaceID, "lon", r.Lon)
			continue
		}
		results = append(results, Result{DisplayName: r.DisplayName, Lat: lat, Lon: lon})
	}

	c.log().Debug("geocoded", "query", query, "results", len(results))
	return results, nil
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
