package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"turnero-desk/internal/events"
	"turnero-desk/internal/notification"
)

// GetToasts handles GET /api/toasts.
func (h *Handler) GetToasts(c *gin.Context) {
	if h.Toasts == nil {
		unavailable(c, "toasts")
		return
	}
	toasts := h.Toasts.Active()
	if toasts == nil {
		toasts = []notification.Toast{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toasts})
}

// ToggleSound handles POST /api/sound/toggle. A chime already playing
// finishes.
func (h *Handler) ToggleSound(c *gin.Context) {
	if h.Sound == nil {
		unavailable(c, "sound")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": h.Sound.Toggle()})
}

// GetChime handles GET /api/chime.wav.
func (h *Handler) GetChime(c *gin.Context) {
	if h.chime == nil {
		unavailable(c, "sound")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "audio/wav", h.chime)
}

// GetNotifications handles GET /api/notifications: the system
// notifications currently up and the permission state.
func (h *Handler) GetNotifications(c *gin.Context) {
	if h.System == nil {
		unavailable(c, "system notifications")
		return
	}
	active := h.System.Active()
	if active == nil {
		active = []notification.SystemNotification{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "permission": h.System.Permission(), "data": active})
}

type permissionRequest struct {
	Permission string `json:"permission" binding:"required"`
}

// SetPermission handles POST /api/notifications/permission with the
// browser's answer to the permission prompt.
func (h *Handler) SetPermission(c *gin.Context) {
	if h.System == nil {
		unavailable(c, "system notifications")
		return
	}
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}
	p := notification.ParsePermission(req.Permission)
	h.System.SetPermission(p)
	c.JSON(http.StatusOK, gin.H{"success": true, "permission": p})
}

type tappedRequest struct {
	Tag  string            `json:"tag"`
	Data map[string]string `json:"data"`
}

// Tapped handles POST /api/notifications/tapped. The tap is published on
// the tapped stream and its notification dismissed.
func (h *Handler) Tapped(c *gin.Context) {
	if h.Hub == nil {
		unavailable(c, "event hub")
		return
	}
	var req tappedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	var turnID int64
	if raw, ok := req.Data["turn_id"]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid turn_id"})
			return
		}
		turnID = id
	}
	if req.Tag == "" && turnID > 0 {
		req.Tag = notification.TagFor(turnID)
	}

	h.Hub.Publish(events.Event{
		Stream: events.StreamTapped,
		Type:   events.TypeTapped,
		TurnID: turnID,
		Data:   req.Data,
	})
	if h.System != nil && req.Tag != "" {
		h.System.Dismiss(req.Tag)
	}
	c.Status(http.StatusAccepted)
}
