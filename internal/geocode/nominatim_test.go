package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "Brasília DF", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`[
			{"place_id": 1, "display_name": "Brasília, Distrito Federal, Brasil", "lat": "-15.7934", "lon": "-47.8823"},
			{"place_id": 2, "display_name": "broken", "lat": "n/a", "lon": "-47"}
		]`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, UserAgent: "test-agent", Limit: 3})
	results, err := c.Search(context.Background(), "  Brasília DF ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Brasília, Distrito Federal, Brasil", results[0].DisplayName)
	assert.InDelta(t, -15.7934, results[0].Lat, 1e-9)
	assert.InDelta(t, -47.8823, results[0].Lon, 1e-9)
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, err := New(Config{}).Search(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrEmptyQuery))
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	results, err := New(Config{Endpoint: srv.URL}).Search(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_Failures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := New(Config{Endpoint: srv.URL}).Search(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		_, err := New(Config{Endpoint: srv.URL}).Search(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})
}
