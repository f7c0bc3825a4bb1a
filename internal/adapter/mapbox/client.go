package mapbox

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

	"github.com/couchcryptid/metar-etl/internal/domain"
	"github.com/couchcryptid/metar-etl/internal/observability"
)

const provider = "mapbox"

// Client implements domain.RegionGeocoder using the Mapbox Geocoding API.
// The first matching feature's bbox is rendered as a "west,east,south,north" reply.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// GeocodeRegion looks up a US region, state or place by name.
func (c *Client) GeocodeRegion(ctx context.Context, identifier string) (string, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(strings.TrimSpace(identifier)))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"country":      {"us"},
		"types":        {"region,district,place"},
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return "", err
	}

	if len(resp.Features) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "empty").Inc()
		return "", &domain.ResolutionError{Identifier: identifier, Reason: "no matching place"}
	}
	f := resp.Features[0]
	if len(f.BBox) != 4 {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "empty").Inc()
		return "", &domain.ResolutionError{Identifier: identifier, Reason: fmt.Sprintf("place %q has no bounding box", f.PlaceName)}
	}

	c.metrics.GeocodeRequests.WithLabelValues(provider, "success").Inc()
	c.logger.Debug("mapbox region resolved", "identifier", identifier, "place", f.PlaceName, "relevance", f.Relevance)

	// Mapbox bbox order is minLon, minLat, maxLon, maxLat.
	return strings.Join([]string{
		formatDegrees(f.BBox[0]),
		formatDegrees(f.BBox[2]),
		formatDegrees(f.BBox[1]),
		formatDegrees(f.BBox[3]),
	}, ","), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("mapbox geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return response{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return mapboxResp, nil
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	BBox      []float64 `json:"bbox"` // [minLon, minLat, maxLon, maxLat]
	Center    []float64 `json:"center"`
	PlaceName string    `json:"place_name"`
	Relevance float64   `json:"relevance"`
}
