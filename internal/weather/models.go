package weather

import "strconv"

// Unit labels attached to every report.
const (
	UnitTemperature = "°C"
	UnitHumidity    = "%"
	UnitWindSpeed   = "km/h"
)

// Coordinates is a geocoded position. Cached under "coords:<city>".
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// cacheKey uses the exact float values, never rounded.
func (c Coordinates) cacheKey() string {
	return "weather:" + strconv.FormatFloat(c.Latitude, 'f', -1, 64) +
		":" + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Conditions is the current weather at a position. Cached under "weather:<lat>:<lon>".
//
// Humidity is the first value of the hourly relative-humidity series, i.e. the
// figure for the first forecast hour of the day, not an observation for "now".
// It is nil when the upstream response carries no hourly series.
type Conditions struct {
	Temperature float64  `json:"temperature"`
	WindSpeed   float64  `json:"wind_speed"`
	Humidity    *float64 `json:"humidity"`
	WeatherCode int      `json:"weather_code"`
}

// Report is the result of a successful lookup.
type Report struct {
	City        string
	Coordinates Coordinates
	Conditions  Conditions
}
