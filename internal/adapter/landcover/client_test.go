package landcover

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Lookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/landcover", r.URL.Path)
		assert.Equal(t, "39.500000", r.URL.Query().Get("lat"))
		assert.Equal(t, "-121.250000", r.URL.Query().Get("lon"))

		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Code: 42, Label: "Evergreen Forest"}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	result, err := c.Lookup(context.Background(), 39.5, -121.25)
	require.NoError(t, err)
	assert.Equal(t, Result{Code: 42, Label: "Evergreen Forest", Class: domain.LandCoverForest}, result)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.LandcoverRequests.WithLabelValues("success")), 0)
}

func TestClient_Lookup_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "outside coverage", http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Lookup(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "outside coverage")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.LandcoverRequests.WithLabelValues("error")), 0)
}

func TestClient_Lookup_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Lookup_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(srv.URL).Lookup(ctx, 0, 0)
	require.Error(t, err)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://landcover.local/", time.Second, testMetrics(), slog.Default())
	assert.Equal(t, "http://landcover.local", c.baseURL)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestClassFromNLCD(t *testing.T) {
	tests := []struct {
		code int
		want domain.LandCover
	}{
		{11, domain.LandCoverOther},
		{21, domain.LandCoverUrban},
		{24, domain.LandCoverUrban},
		{31, domain.LandCoverOther},
		{41, domain.LandCoverForest},
		{43, domain.LandCoverForest},
		{52, domain.LandCoverShrub},
		{71, domain.LandCoverShrub},
		{81, domain.LandCoverAgriculture},
		{82, domain.LandCoverAgriculture},
		{90, domain.LandCoverOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassFromNLCD(tt.code), "code %d", tt.code)
	}
}
