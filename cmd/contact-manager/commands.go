package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/contact-manager/internal/api/http"
	"github.com/i474232898/contact-manager/internal/cache"
	"github.com/i474232898/contact-manager/internal/config"
	"github.com/i474232898/contact-manager/internal/contacts"
	"github.com/i474232898/contact-manager/internal/logging"
	"github.com/i474232898/contact-manager/internal/scheduler"
	"github.com/i474232898/contact-manager/internal/store"
	"github.com/i474232898/contact-manager/internal/store/postgres"
	"github.com/i474232898/contact-manager/internal/weather"
	"github.com/i474232898/contact-manager/internal/weather/providers"
)

const serviceName = "contact-manager"

// deps is what every command starts from. close releases the database
// pool, if any.
type deps struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	repo   contacts.Repository
	close  func()
}

func setup(ctx context.Context, cmd *cli.Command) (*deps, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &deps{cfg: cfg, logger: logger, close: func() {}}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory contact store; data is lost on exit")
		rt.repo = store.NewMemoryStore()
	default:
		if err := postgres.Migrate(ctx, cfg.Database.DSN, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		rt.repo = postgres.New(pool)
		rt.close = pool.Close
	}

	return rt, nil
}

func (rt *deps) shutdown() {
	rt.close()
	_ = rt.logger.Sync()
}

func serve(ctx context.Context, cmd *cli.Command) error {
	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.shutdown()
	cfg, logger := rt.cfg, rt.logger

	weatherCache, stopCache, err := newWeatherCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer stopCache()

	httpClient := providers.NewHTTPClient(cfg.Weather.HTTPTimeout)
	weatherService := weather.NewService(
		weatherCache,
		providers.NewNominatimGeocoder(httpClient, cfg.Weather.GeocodeURL, cfg.Weather.UserAgent, cfg.Weather.GeocodeRate),
		providers.NewOpenMeteoProvider(httpClient, cfg.Weather.ForecastURL),
		logger,
		weather.Options{
			CoordinatesTTL: cfg.Weather.CoordinatesTTL,
			ConditionsTTL:  cfg.Weather.ConditionsTTL,
		},
	)

	contactService := contacts.NewService(rt.repo, logger)
	importer := contacts.NewImporter(contactService, logger, cfg.Import.MaxFileSize, cfg.Import.MaxListedErrors)

	appCfg := httpapi.AppConfig(logger)
	appCfg.AppName = serviceName
	appCfg.DisableStartupMessage = true
	appCfg.ReadTimeout = cfg.Server.ReadTimeout
	appCfg.WriteTimeout = cfg.Server.WriteTimeout
	appCfg.BodyLimit = int(cfg.Import.MaxFileSize) + 1<<20
	app := fiber.New(appCfg)

	app.Use(recover.New())
	app.Use(httpapi.RequestID())
	app.Use(httpapi.RequestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Contacts: contactService,
		Importer: importer,
		Weather:  weatherService,
		Sessions: session.New(session.Config{KeyLookup: "cookie:" + cfg.Server.SessionCookie}),
		Logger:   logger,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr()))
		listenErr <- app.Listen(cfg.Server.Addr())
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-listenErr:
		return fmt.Errorf("http server: %w", err)
	case <-sigCtx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	return nil
}

// newWeatherCache returns the configured cache and a function that stops its
// background work. The in-process cache is swept on a schedule; Redis
// expires keys itself.
func newWeatherCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (weather.Cache, func(), error) {
	if cfg.Driver == config.DriverRedis {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisCache(client, cfg.KeyPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisCache.Ping(pingCtx); err != nil {
			// Cache errors degrade to misses, so startup continues.
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		return redisCache, func() { _ = client.Close() }, nil
	}

	memCache := cache.NewMemoryCache()
	sweeper := scheduler.New(memCache, cfg.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		return nil, nil, fmt.Errorf("start cache sweeper: %w", err)
	}
	return memCache, sweeper.Stop, nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate requires the %s driver, got %q", config.DriverPostgres, cfg.Database.Driver)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	return postgres.Migrate(ctx, cfg.Database.DSN, logger)
}

func seedStatuses(ctx context.Context, cmd *cli.Command) error {
	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	created, existing, err := contacts.NewService(rt.repo, rt.logger).SeedStatuses(ctx)
	if err != nil {
		return fmt.Errorf("seed statuses: %w", err)
	}
	fmt.Printf("Created %d statuses, %d already existed.\n", created, existing)
	return nil
}

func importFile(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("usage: contact-manager import <file.csv>")
	}

	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := contacts.CheckUpload(path, info.Size(), rt.cfg.Import.MaxFileSize); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	service := contacts.NewService(rt.repo, rt.logger)
	importer := contacts.NewImporter(service, rt.logger, rt.cfg.Import.MaxFileSize, rt.cfg.Import.MaxListedErrors)
	summary, err := importer.Import(ctx, f)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	if msg := summary.SuccessMessage(); msg != "" {
		fmt.Println(msg)
	}
	if msg := summary.FailureMessage(); msg != "" {
		fmt.Println(msg)
	}
	return nil
}
