package httpapi

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/contact-manager/internal/weather"
)

type cityRequest struct {
	City string `validate:"required"`
}

type weatherResponse struct {
	City        string              `json:"city"`
	Coordinates weather.Coordinates `json:"coordinates"`
	Weather     weatherFields       `json:"weather"`
}

type weatherFields struct {
	Temperature     float64  `json:"temperature"`
	TemperatureUnit string   `json:"temperature_unit"`
	Humidity        *float64 `json:"humidity"`
	HumidityUnit    string   `json:"humidity_unit"`
	WindSpeed       float64  `json:"wind_speed"`
	WindSpeedUnit   string   `json:"wind_speed_unit"`
}

func newWeatherResponse(r weather.Report) weatherResponse {
	return weatherResponse{
		City:        r.City,
		Coordinates: r.Coordinates,
		Weather: weatherFields{
			Temperature:     r.Conditions.Temperature,
			TemperatureUnit: weather.UnitTemperature,
			Humidity:        r.Conditions.Humidity,
			HumidityUnit:    weather.UnitHumidity,
			WindSpeed:       r.Conditions.WindSpeed,
			WindSpeedUnit:   weather.UnitWindSpeed,
		},
	}
}

func getWeather(service *weather.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		city, err := url.PathUnescape(c.Params("city"))
		if err != nil {
			city = c.Params("city")
		}
		req := cityRequest{City: strings.TrimSpace(city)}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "City parameter is required"})
		}

		report, err := service.GetWeather(c.UserContext(), city)
		switch {
		case err == nil:
			return c.JSON(newWeatherResponse(report))
		case errors.Is(err, weather.ErrCityRequired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "City parameter is required"})
		case errors.Is(err, weather.ErrCityNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "City not found", "city": city})
		case errors.Is(err, weather.ErrWeatherUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Weather data not available", "city": city})
		default:
			return err
		}
	}
}
