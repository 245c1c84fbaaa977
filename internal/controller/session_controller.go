package controller

import (
	"errors"

	"art-curator-be/internal/dto"
	"art-curator-be/internal/pkg/logger"
	"art-curator-be/internal/pkg/serverutils"
	"art-curator-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Results(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
	jwtSecret      string
	logger         logger.ILogger
}

func NewSessionController(sessionService service.ISessionService, jwtSecret string, log logger.ILogger) ISessionController {
	return &sessionController{
		sessionService: sessionService,
		jwtSecret:      jwtSecret,
		logger:         log,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions/:sessionId")
	if c.jwtSecret != "" {
		h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	}
	h.Post("query", c.Submit)
	h.Get("status", c.Status)
	h.Get("results", c.Results)
}

func (c *sessionController) Submit(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")

	var req dto.SubmitQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Query is required"))
	}

	res, err := c.sessionService.Submit(ctx.UserContext(), sessionId, req.Query)
	if errors.Is(err, service.ErrInvalidQuery) {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Query is required"))
	}
	if err != nil {
		c.logger.Error("SessionController", "Submit failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(fiber.StatusInternalServerError, "Failed to process query"))
	}

	return ctx.Status(fiber.StatusAccepted).JSON(res)
}

func (c *sessionController) Status(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Status(ctx.UserContext(), ctx.Params("sessionId"))
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

// Results answers 200 either way; not-ready is a normal state.
func (c *sessionController) Results(ctx *fiber.Ctx) error {
	res, notReady, err := c.sessionService.Results(ctx.UserContext(), ctx.Params("sessionId"))
	if err != nil {
		return err
	}
	if notReady != nil {
		return ctx.JSON(notReady)
	}
	return ctx.JSON(res)
}
