package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/contact-manager/internal/weather"
)

// NominatimGeocoder implements weather.Geocoder against the OpenStreetMap
// Nominatim search API.
type NominatimGeocoder struct {
	name      string
	baseURL   string
	userAgent string
	client    *resty.Client
	circuit   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter

	// maxWait bounds how long a request queues for the limiter.
	maxWait time.Duration
}

// NewNominatimGeocoder creates a geocoder. Nominatim rejects anonymous
// clients, so userAgent must identify the application. ratePerSecond <= 0
// disables request pacing. A request that cannot get a slot within the
// client timeout fails instead of queueing.
func NewNominatimGeocoder(client *resty.Client, baseURL, userAgent string, ratePerSecond float64) *NominatimGeocoder {
	g := &NominatimGeocoder{
		name:      "nominatim",
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    client,
		circuit:   newCircuitBreaker("nominatim"),
		maxWait:   defaultTimeout,
	}
	if client != nil && client.GetClient().Timeout > 0 {
		g.maxWait = client.GetClient().Timeout
	}
	if ratePerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return g
}

func (g *NominatimGeocoder) Name() string {
	return g.name
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, city string) (weather.Coordinates, bool, error) {
	if g.limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
		err := g.limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			return weather.Coordinates{}, false, fmt.Errorf("%w: %v", errRateLimited, err)
		}
	}

	resp, err := doRequest(g.client, g.circuit, func(r *resty.Request) (*resty.Response, error) {
		return r.SetContext(ctx).
			SetHeader("User-Agent", g.userAgent).
			SetQueryParams(map[string]string{
				"q":      city,
				"format": "json",
				"limit":  "1",
			}).
			Get(g.baseURL)
	})
	if err != nil {
		return weather.Coordinates{}, false, err
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return weather.Coordinates{}, false, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return weather.Coordinates{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return weather.Coordinates{}, false, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return weather.Coordinates{}, false, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	return weather.Coordinates{Latitude: lat, Longitude: lon}, true, nil
}
