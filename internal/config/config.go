package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// AppConfig is the root configuration for the contact manager.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Weather  WeatherConfig  `yaml:"weather"`
	Import   ImportConfig   `yaml:"import"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	SessionCookie   string        `yaml:"session_cookie"   env:"SERVER_SESSION_COOKIE"   env-default:"contacts_session"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"             env:"DATABASE_DRIVER"             env-default:"postgres"`
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

type CacheConfig struct {
	Driver        string        `yaml:"driver"         env:"CACHE_DRIVER"         env-default:"memory"`
	RedisAddr     string        `yaml:"redis_addr"     env:"REDIS_ADDR"           env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"       env:"REDIS_DB"             env-default:"0"`
	KeyPrefix     string        `yaml:"key_prefix"     env:"CACHE_KEY_PREFIX"     env-default:"contacts:"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"CACHE_SWEEP_INTERVAL" env-default:"5m"`
}

type WeatherConfig struct {
	GeocodeURL     string        `yaml:"geocode_url"      env:"WEATHER_GEOCODE_URL"      env-default:"https://nominatim.openstreetmap.org/search"`
	ForecastURL    string        `yaml:"forecast_url"     env:"WEATHER_FORECAST_URL"     env-default:"https://api.open-meteo.com/v1/forecast"`
	UserAgent      string        `yaml:"user_agent"       env:"WEATHER_USER_AGENT"       env-default:"ContactsApp/1.0"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"     env:"WEATHER_HTTP_TIMEOUT"     env-default:"5s"`
	CoordinatesTTL time.Duration `yaml:"coordinates_ttl"  env:"WEATHER_COORDINATES_TTL"  env-default:"30m"`
	ConditionsTTL  time.Duration `yaml:"conditions_ttl"   env:"WEATHER_CONDITIONS_TTL"   env-default:"15m"`
	GeocodeRate    float64       `yaml:"geocode_rate"     env:"WEATHER_GEOCODE_RATE"     env-default:"1"`
}

type ImportConfig struct {
	MaxFileSize     int64 `yaml:"max_file_size"     env:"IMPORT_MAX_FILE_SIZE"     env-default:"5242880"`
	MaxListedErrors int   `yaml:"max_listed_errors" env:"IMPORT_MAX_LISTED_ERRORS" env-default:"5"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads configuration from .env, an optional YAML file and the environment.
// Priority: ENV > YAML > defaults. An explicitly given path must exist.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	explicitPath := path != ""
	if !explicitPath {
		path = getenvDefault("CONFIG_PATH", "./config.yaml")
		explicitPath = os.Getenv("CONFIG_PATH") != ""
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	switch c.Cache.Driver {
	case DriverMemory, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}

	if c.Weather.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("WEATHER_HTTP_TIMEOUT must be positive"))
	}
	if c.Weather.CoordinatesTTL <= 0 || c.Weather.ConditionsTTL <= 0 {
		errs = append(errs, errors.New("weather cache TTLs must be positive"))
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, errors.New("IMPORT_MAX_FILE_SIZE must be positive"))
	}
	if c.Import.MaxListedErrors <= 0 {
		errs = append(errs, errors.New("IMPORT_MAX_LISTED_ERRORS must be positive"))
	}

	return errors.Join(errs...)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
