// Package landcover classifies fires from the land cover at their ignition
// point, looked up from an HTTP land-cover service.
package landcover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/observability"
)

// Result is the land cover at one location.
type Result struct {
	Code  int              // NLCD class code
	Label string           // service-provided description
	Class domain.LandCover // coarse class used for fire typing
}

// Looker looks up the land cover at a location.
type Looker interface {
	Lookup(ctx context.Context, lat, lon float64) (Result, error)
}

// Client implements Looker against a land-cover HTTP service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a land-cover lookup client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Lookup returns the land cover at (lat, lon).
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (Result, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', 6, 64)},
	}
	u := c.baseURL + "/v1/landcover?" + params.Encode()

	start := time.Now()
	result, err := c.doRequest(ctx, u)
	c.metrics.LandcoverAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.LandcoverRequests.WithLabelValues("error").Inc()
		return Result{}, err
	}
	c.metrics.LandcoverRequests.WithLabelValues("success").Inc()
	c.logger.Debug("land cover lookup", "lat", lat, "lon", lon, "code", result.Code)
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("land cover request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("land cover API error: status %d: %s", resp.StatusCode, body)
	}

	var lcResp response
	if err := json.NewDecoder(resp.Body).Decode(&lcResp); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	return Result{
		Code:  lcResp.Code,
		Label: lcResp.Label,
		Class: ClassFromNLCD(lcResp.Code),
	}, nil
}

// ClassFromNLCD maps an NLCD land-cover code to a coarse class.
func ClassFromNLCD(code int) domain.LandCover {
	switch {
	case code >= 21 && code <= 24:
		return domain.LandCoverUrban
	case code >= 41 && code <= 43:
		return domain.LandCoverForest
	case code == 51 || code == 52 || code == 71:
		return domain.LandCoverShrub
	case code == 81 || code == 82:
		return domain.LandCoverAgriculture
	default:
		return domain.LandCoverOther
	}
}

// Land-cover API response.

type response struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
}
