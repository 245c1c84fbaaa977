package server

import (
	"log"

	"art-curator-be/internal/bootstrap"
	"art-curator-be/internal/config"
	"art-curator-be/internal/dto"
	"art-curator-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const serviceName = "Narrative Art Curator API"

var endpoints = []string{
	"POST /api/sessions/:sessionId/query",
	"GET /api/sessions/:sessionId/status",
	"GET /api/sessions/:sessionId/results",
	"GET /api/sessions/:sessionId/ws",
	"GET /api/health",
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: serverutils.ErrorHandler,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, OPTIONS",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	api.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})

	c.SessionController.RegisterRoutes(api)
	c.SessionWsHandler.RegisterRoutes(api)

	// Anything else describes the API.
	app.Use(func(ctx *fiber.Ctx) error {
		return ctx.JSON(dto.IndexResponse{Message: serviceName, Endpoints: endpoints})
	})
}
