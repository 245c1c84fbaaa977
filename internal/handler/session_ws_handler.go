package handler

import (
	"art-curator-be/internal/pkg/logger"
	"art-curator-be/internal/pkg/serverutils"
	"art-curator-be/internal/service"
	internalWS "art-curator-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
)

// SessionWsHandler serves the push channel for one session.
type SessionWsHandler struct {
	state     service.IQueryStateService
	sessions  service.ISessionService
	jwtSecret string
	logger    logger.ILogger
}

func NewSessionWsHandler(state service.IQueryStateService, sessions service.ISessionService, jwtSecret string, log logger.ILogger) *SessionWsHandler {
	return &SessionWsHandler{
		state:     state,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

func (h *SessionWsHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/sessions/:sessionId/ws")
	if h.jwtSecret != "" {
		g.Use(serverutils.JwtMiddleware(h.jwtSecret))
	}
	g.Get("", h.ServeWs)
}

// ServeWs upgrades the request and attaches the connection to the session.
func (h *SessionWsHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	// Params are backed by the request buffer, which is reused after upgrade.
	sessionID := utils.CopyString(c.Params("sessionId"))

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("SessionWsHandler", "Starting WebSocket session", map[string]interface{}{"session_id": sessionID})
		internalWS.ServeWs(h.state, conn, sessionID, h.sessions.HandleInbound, h.logger)
		h.logger.Info("SessionWsHandler", "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
	})(c)
}
