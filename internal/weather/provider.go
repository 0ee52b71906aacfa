package weather

import (
	"context"
	"time"
)

// Geocoder resolves a place name to coordinates.
// found is false when the service knows no such place.
type Geocoder interface {
	Geocode(ctx context.Context, city string) (coords Coordinates, found bool, err error)
}

// Forecaster fetches current conditions for a position.
type Forecaster interface {
	Current(ctx context.Context, coords Coordinates) (Conditions, error)
}

// Cache is the key-value store with per-entry expiry used by the Service.
// Implementations must treat stored values as immutable.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
