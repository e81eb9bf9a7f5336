package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/shared/config"
	"github.com/lifeline-ems/dispatch/internal/shared/metrics"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Estimator produces a driving-time estimate in whole minutes.
type Estimator interface {
	// EstimateMinutes returns the driving ETA from one point to another.
	// It degrades to 0 when the provider cannot answer: dispatch never
	// fails because routing is down.
	EstimateMinutes(ctx context.Context, from, to types.Point) int
}

// Client queries the routing provider's HTTP API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a routing client with a bounded per-lookup timeout
func NewClient(cfg config.RoutingConfig, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// routeResponse is the subset of the provider's GeoJSON answer we read
type routeResponse struct {
	Features []struct {
		Properties struct {
			// Time is the driving duration in seconds.
			Time float64 `json:"time"`
		} `json:"properties"`
	} `json:"features"`
}

// EstimateMinutes implements Estimator
func (c *Client) EstimateMinutes(ctx context.Context, from, to types.Point) int {
	start := time.Now()

	minutes, err := c.lookup(ctx, from, to)
	if err != nil {
		metrics.RecordETALookup("degraded", time.Since(start))
		c.logger.Warn().Err(err).Msg("routing lookup failed, dispatching without ETA")
		return 0
	}

	metrics.RecordETALookup("ok", time.Since(start))
	return minutes
}

func (c *Client) lookup(ctx context.Context, from, to types.Point) (int, error) {
	q := url.Values{}
	q.Set("waypoints", fmt.Sprintf("%f,%f|%f,%f", from.Lat, from.Lng, to.Lat, to.Lng))
	q.Set("mode", "drive")
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build routing request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("routing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("routing provider returned status %d", resp.StatusCode)
	}

	var route routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&route); err != nil {
		return 0, fmt.Errorf("failed to decode routing response: %w", err)
	}
	if len(route.Features) == 0 {
		return 0, fmt.Errorf("routing response contained no routes")
	}

	seconds := route.Features[0].Properties.Time
	if seconds < 0 {
		return 0, fmt.Errorf("routing response contained negative duration")
	}

	return int(math.Ceil(seconds / 60)), nil
}
