package v1

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/session-service/internal/core/domain"
	"github.com/duynhne/session-service/internal/logger"
	logicv1 "github.com/duynhne/session-service/internal/logic/v1"
	"github.com/duynhne/session-service/middleware"
)

// Handler groups HTTP handlers for the session API v1.
// Dependencies are injected via the constructor; no global state.
type Handler struct {
	sessions *logicv1.SessionService
	now      func() time.Time
}

// NewHandler creates a new Handler with the given SessionService.
func NewHandler(sessions *logicv1.SessionService) *Handler {
	return &Handler{sessions: sessions, now: time.Now}
}

// RegisterRoutes registers all session API v1 routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions/:id", h.GetSession)
	rg.PATCH("/sessions/:id", h.UpdateSessionExpiration)
	rg.DELETE("/sessions/:id", h.DeleteSession)
	rg.GET("/users/:id/sessions", h.GetUserSessions)
	rg.DELETE("/users/:id/sessions", h.DeleteUserSessions)
	rg.DELETE("/expired-sessions", h.DeleteExpiredSessions)
}

// startSpan opens the web-layer span and installs it on the request context.
func startSpan(c *gin.Context) trace.Span {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("route", c.FullPath()),
	))
	c.Request = c.Request.WithContext(ctx)
	return span
}

// writeError maps logic and store errors to a status code and logs them.
func writeError(c *gin.Context, span trace.Span, err error, msg string) {
	span.RecordError(err)
	log := logger.FromContext(c.Request.Context())

	switch {
	case errors.Is(err, logicv1.ErrInvalidSession):
		log.Warn().Err(err).Msg(msg)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session request"})
	case errors.Is(err, logicv1.ErrSessionNotFound):
		log.Info().Err(err).Msg(msg)
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, domain.ErrNotImplemented):
		log.Warn().Err(err).Msg(msg)
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Not implemented"})
	case errors.Is(err, domain.ErrTransactionsUnsupported):
		log.Warn().Err(err).Msg(msg)
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Consistent reads are not supported by this store"})
	default:
		log.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func bindJSON(c *gin.Context, span trace.Span, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.FromContext(c.Request.Context()).Warn().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	span.SetAttributes(attribute.Bool("request.valid", true))
	return true
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handler) CreateSession(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	var req domain.CreateSessionRequest
	if !bindJSON(c, span, &req) {
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), req)
	if err != nil {
		writeError(c, span, err, "Create session failed")
		return
	}

	logger.FromContext(c.Request.Context()).Info().
		Str("session_id", session.ID).
		Str("user_id", session.UserID).
		Msg("Session created")
	c.JSON(http.StatusCreated, h.sessionResponse(session))
}

// GetSession handles GET /api/v1/sessions/:id[?consistent=true].
func (h *Handler) GetSession(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	id := c.Param("id")
	consistent, _ := strconv.ParseBool(c.Query("consistent"))

	get := h.sessions.GetSession
	if consistent {
		get = h.sessions.GetSessionConsistent
	}
	session, user, err := get(c.Request.Context(), id)
	if err != nil {
		writeError(c, span, err, "Get session failed")
		return
	}

	resp := domain.SessionAndUserResponse{Session: h.sessionResponse(session)}
	if user != nil {
		resp.User = &domain.UserResponse{ID: user.ID, Attributes: user.Attributes}
	}
	c.JSON(http.StatusOK, resp)
}

// GetUserSessions handles GET /api/v1/users/:id/sessions. The store does
// not support listing, so this answers 501.
func (h *Handler) GetUserSessions(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	sessions, err := h.sessions.GetUserSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, span, err, "List user sessions failed")
		return
	}

	resp := make([]domain.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, h.sessionResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateSessionExpiration handles PATCH /api/v1/sessions/:id.
func (h *Handler) UpdateSessionExpiration(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	var req domain.UpdateSessionExpirationRequest
	if !bindJSON(c, span, &req) {
		return
	}

	if err := h.sessions.UpdateSessionExpiration(c.Request.Context(), c.Param("id"), req.ExpiresAt); err != nil {
		writeError(c, span, err, "Update session expiration failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteSession handles DELETE /api/v1/sessions/:id.
func (h *Handler) DeleteSession(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	if err := h.sessions.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, span, err, "Delete session failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteUserSessions handles DELETE /api/v1/users/:id/sessions.
func (h *Handler) DeleteUserSessions(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	if err := h.sessions.DeleteUserSessions(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, span, err, "Delete user sessions failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteExpiredSessions handles DELETE /api/v1/expired-sessions.
func (h *Handler) DeleteExpiredSessions(c *gin.Context) {
	span := startSpan(c)
	defer span.End()

	if err := h.sessions.DeleteExpiredSessions(c.Request.Context()); err != nil {
		writeError(c, span, err, "Delete expired sessions failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sessionResponse(s *domain.Session) domain.SessionResponse {
	attrs := s.Attributes
	if attrs == nil {
		attrs = domain.Attributes{}
	}
	return domain.SessionResponse{
		ID:         s.ID,
		UserID:     s.UserID,
		ExpiresAt:  s.ExpiresAt,
		Expired:    !h.now().Before(s.ExpiresAt),
		Attributes: attrs,
	}
}
