package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"

	"github.com/i474232898/contact-manager/internal/contacts"
	"github.com/i474232898/contact-manager/internal/weather"
)

var validate = validator.New()

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Contacts *contacts.Service
	Importer *contacts.Importer
	Weather  *weather.Service
	Sessions *session.Store
	Logger   *zap.Logger
}

// AppConfig returns the Fiber settings the handlers depend on. Handlers keep
// form and query values past the request, so they must not alias fasthttp's
// pooled buffers.
func AppConfig(logger *zap.Logger) fiber.Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	return fiber.Config{
		Immutable:    true,
		ErrorHandler: ErrorHandler(logger),
	}
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.New()
	}

	app.Get("/weather/:city?", getWeather(deps.Weather))

	contactsAPI{service: deps.Contacts}.register(app.Group("/api"))

	webUI{
		service:  deps.Contacts,
		importer: deps.Importer,
		sessions: sessions,
		logger:   logger,
	}.register(app)
}
