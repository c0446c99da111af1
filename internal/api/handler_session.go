package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"turnero-desk/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/login.
func (h *Handler) Login(c *gin.Context) {
	if h.Sessions == nil {
		unavailable(c, "sessions")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	landing, err := h.Sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrMissingCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		writeRemoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "landing": landing})
}

// Logout handles POST /api/logout.
func (h *Handler) Logout(c *gin.Context) {
	if h.Sessions == nil {
		unavailable(c, "sessions")
		return
	}
	if err := h.Sessions.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSession handles GET /api/session. Tokens are never returned.
func (h *Handler) GetSession(c *gin.Context) {
	if h.Sessions == nil {
		unavailable(c, "sessions")
		return
	}
	sess, ok := h.Sessions.Current()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": auth.ErrNotLoggedIn.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"username": sess.Username,
		"role":     sess.Role,
		"landing":  auth.LandingFor(sess.Role),
	})
}
