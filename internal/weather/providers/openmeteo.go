package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/contact-manager/internal/weather"
)

var (
	errNoCurrentWeather = errors.New("response has no current_weather section")
	errEmptyHumidity    = errors.New("response has an empty relativehumidity_2m series")
)

// OpenMeteoProvider implements weather.Forecaster for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *resty.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *resty.Client, baseURL string) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		client:  client,
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Current(ctx context.Context, coords weather.Coordinates) (weather.Conditions, error) {
	resp, err := doRequest(p.client, p.circuit, func(r *resty.Request) (*resty.Response, error) {
		return r.SetContext(ctx).
			SetQueryParams(map[string]string{
				"latitude":        strconv.FormatFloat(coords.Latitude, 'f', -1, 64),
				"longitude":       strconv.FormatFloat(coords.Longitude, 'f', -1, 64),
				"current_weather": "true",
				"hourly":          "relativehumidity_2m",
				"forecast_days":   "1",
			}).
			Get(p.baseURL)
	})
	if err != nil {
		return weather.Conditions{}, err
	}

	var payload struct {
		CurrentWeather *struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
		Hourly struct {
			RelativeHumidity []*float64 `json:"relativehumidity_2m"`
		} `json:"hourly"`
	}

	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return weather.Conditions{}, fmt.Errorf("decode open-meteo response: %w", err)
	}
	if payload.CurrentWeather == nil {
		return weather.Conditions{}, errNoCurrentWeather
	}

	conditions := weather.Conditions{
		Temperature: payload.CurrentWeather.Temperature,
		WindSpeed:   payload.CurrentWeather.WindSpeed,
		WeatherCode: payload.CurrentWeather.WeatherCode,
	}
	// First hour of the day's series, kept as-is rather than matched to the current hour.
	// A missing series leaves humidity unset; a present but empty one is malformed.
	if series := payload.Hourly.RelativeHumidity; series != nil {
		if len(series) == 0 {
			return weather.Conditions{}, errEmptyHumidity
		}
		conditions.Humidity = series[0]
	}

	return conditions, nil
}
