package http

import (
	"net/http"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/internal/core/services"
	"liveclass/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions ports.SessionService
	access   ports.AccessService
}

func NewSessionHandler(sessions ports.SessionService, access ports.AccessService) *SessionHandler {
	return &SessionHandler{sessions: sessions, access: access}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine, auth services.AuthService) {
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(auth))
	{
		api.GET("/live-sessions/course/:courseId", h.ListByCourse)
		api.GET("/live-sessions/course/:courseId/active", h.ActiveByCourse)
		api.POST("/live-sessions/course/:courseId/start", h.StartSession)
		api.GET("/live-sessions/:id", h.GetSession)
		api.PATCH("/live-sessions/:id/end", h.EndSession)
		api.POST("/live-sessions/:id/join", h.JoinSession)
		api.POST("/live-sessions/:id/leave", h.LeaveSession)
	}
}

// ListByCourse returns a course's session history to the owning tutor or
// an eligible student; anyone else gets 403, however they authenticated.
func (h *SessionHandler) ListByCourse(c *gin.Context) {
	courseID := domain.CourseID(c.Param("courseId"))
	if !h.requireEligible(c, courseID) {
		return
	}

	sessions, err := h.sessions.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
	})
}

// ActiveByCourse returns the single active session for a course, or 404
// when none is running.
func (h *SessionHandler) ActiveByCourse(c *gin.Context) {
	courseID := domain.CourseID(c.Param("courseId"))
	if !h.requireEligible(c, courseID) {
		return
	}

	sessions, err := h.sessions.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		h.fail(c, err)
		return
	}

	for _, session := range sessions {
		if session.Status == domain.SessionActive {
			c.JSON(http.StatusOK, gin.H{"session": session})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "no active live session"})
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	courseID := domain.CourseID(c.Param("courseId"))

	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	// Starting is idempotent, so the running session comes back with the
	// same status either way.
	session, err := h.sessions.Start(c.Request.Context(), courseID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	session, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	session, err := h.sessions.End(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

func (h *SessionHandler) JoinSession(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	session, err := h.sessions.Join(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"status":  "joined",
	})
}

func (h *SessionHandler) LeaveSession(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))

	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	session, err := h.sessions.Leave(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"status":  "left",
	})
}

// requireEligible re-runs the access gate for the authenticated user and
// writes the rejection itself. Returns false when the handler must stop.
func (h *SessionHandler) requireEligible(c *gin.Context, courseID domain.CourseID) bool {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return false
	}

	eligible, err := h.access.IsEligible(c.Request.Context(), userID, courseID)
	if err != nil {
		h.fail(c, err)
		return false
	}
	if !eligible {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return false
	}
	return true
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	if appErr := middleware.MapDomainError(err); appErr != nil {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
