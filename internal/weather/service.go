package weather

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCityRequired       = errors.New("city parameter is required")
	ErrCityNotFound       = errors.New("city not found")
	ErrWeatherUnavailable = errors.New("weather data not available")
)

const (
	DefaultCoordinatesTTL = 30 * time.Minute
	DefaultConditionsTTL  = 15 * time.Minute
)

// Options tunes cache lifetimes. Zero values fall back to the defaults.
type Options struct {
	CoordinatesTTL time.Duration
	ConditionsTTL  time.Duration
}

// Service resolves a city to coordinates and then to current conditions,
// caching each step independently. Upstream failures never escape: they
// degrade to ErrCityNotFound or ErrWeatherUnavailable.
type Service struct {
	cache      Cache
	geocoder   Geocoder
	forecaster Forecaster
	logger     *zap.Logger

	coordinatesTTL time.Duration
	conditionsTTL  time.Duration
}

// NewService creates a new Service.
func NewService(cache Cache, geocoder Geocoder, forecaster Forecaster, logger *zap.Logger, opts Options) *Service {
	if opts.CoordinatesTTL <= 0 {
		opts.CoordinatesTTL = DefaultCoordinatesTTL
	}
	if opts.ConditionsTTL <= 0 {
		opts.ConditionsTTL = DefaultConditionsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		cache:          cache,
		geocoder:       geocoder,
		forecaster:     forecaster,
		logger:         logger,
		coordinatesTTL: opts.CoordinatesTTL,
		conditionsTTL:  opts.ConditionsTTL,
	}
}

// GetWeather returns current weather for city. Each upstream service is
// called at most once per invocation, and not at all on a cache hit.
func (s *Service) GetWeather(ctx context.Context, city string) (Report, error) {
	if strings.TrimSpace(city) == "" {
		return Report{}, ErrCityRequired
	}

	coords, ok := s.coordinates(ctx, city)
	if !ok {
		return Report{}, ErrCityNotFound
	}

	conditions, ok := s.conditions(ctx, coords)
	if !ok {
		return Report{}, ErrWeatherUnavailable
	}

	return Report{
		City:        city,
		Coordinates: coords,
		Conditions:  conditions,
	}, nil
}

func (s *Service) coordinates(ctx context.Context, city string) (Coordinates, bool) {
	key := "coords:" + strings.ToLower(city)

	var cached Coordinates
	if s.cacheGet(ctx, key, &cached) {
		return cached, true
	}

	coords, found, err := s.geocoder.Geocode(ctx, city)
	if err != nil {
		s.logger.Error("geocoding failed", zap.String("city", city), zap.Error(err))
		return Coordinates{}, false
	}
	if !found {
		s.logger.Info("city not found", zap.String("city", city))
		return Coordinates{}, false
	}

	s.cacheSet(ctx, key, coords, s.coordinatesTTL)
	return coords, true
}

func (s *Service) conditions(ctx context.Context, coords Coordinates) (Conditions, bool) {
	key := coords.cacheKey()

	var cached Conditions
	if s.cacheGet(ctx, key, &cached) {
		return cached, true
	}

	conditions, err := s.forecaster.Current(ctx, coords)
	if err != nil {
		s.logger.Error("weather lookup failed",
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude),
			zap.Error(err),
		)
		return Conditions{}, false
	}

	s.cacheSet(ctx, key, conditions, s.conditionsTTL)
	return conditions, true
}

// cacheGet treats a failing cache as a miss.
func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
