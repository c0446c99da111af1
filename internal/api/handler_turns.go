package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"turnero-desk/internal/action"
	"turnero-desk/internal/model"
	"turnero-desk/internal/reception"
	"turnero-desk/internal/remote"
)

// ListTurns handles GET /api/turnos. It answers from the poller's cache;
// ?refresh=1 also asks for an out-of-cycle poll.
func (h *Handler) ListTurns(c *gin.Context) {
	if h.Turns == nil {
		unavailable(c, "turn poller")
		return
	}
	if c.Query("refresh") == "1" {
		h.Turns.Refresh()
	}

	turns, version := h.Turns.Snapshot()
	if turns == nil {
		turns = []model.Turn{}
	}
	filter := h.Turns.Filter()
	resp := gin.H{
		"success": true,
		"data":    turns,
		"count":   len(turns),
		"version": version,
		"estado":  filter.Estado,
	}
	if filter.Piso != nil {
		resp["piso"] = *filter.Piso
	}
	c.JSON(http.StatusOK, resp)
}

// CreateTurn handles POST /api/turnos from the reception desk.
func (h *Handler) CreateTurn(c *gin.Context) {
	if h.Reception == nil {
		unavailable(c, "reception")
		return
	}
	var form reception.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	turn, err := h.Reception.Register(c.Request.Context(), form)
	if err != nil {
		var ve *reception.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "field": ve.Field, "message": ve.Message})
			return
		}
		writeRemoteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": turn})
}

type transitionRequest struct {
	Actor string `json:"actor"`
}

// AuthorizeTurn handles POST /api/turnos/:id/autorizar.
func (h *Handler) AuthorizeTurn(c *gin.Context) {
	h.transition(c, model.ActionAuthorize)
}

// AttendTurn handles POST /api/turnos/:id/atender.
func (h *Handler) AttendTurn(c *gin.Context) {
	h.transition(c, model.ActionAttend)
}

func (h *Handler) transition(c *gin.Context, act string) {
	if h.Actions == nil {
		unavailable(c, "actions")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid turn id"})
		return
	}

	var req transitionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
			return
		}
	}
	actor := h.actorFor(req.Actor)

	var turn model.Turn
	if act == model.ActionAuthorize {
		turn, err = h.Actions.Authorize(c.Request.Context(), id, actor)
	} else {
		turn, err = h.Actions.MarkAttended(c.Request.Context(), id, actor)
	}
	if err != nil {
		if errors.Is(err, action.ErrNoActor) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		writeRemoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": turn})
}

func (h *Handler) actorFor(requested string) string {
	if requested != "" {
		return requested
	}
	if h.Sessions != nil {
		if sess, ok := h.Sessions.Current(); ok && sess.Username != "" {
			return sess.Username
		}
	}
	return h.Actor
}

// writeRemoteError maps the store client's error taxonomy onto statuses.
func writeRemoteError(c *gin.Context, err error) {
	var (
		conflict *remote.ConflictError
		auth     *remote.AuthError
		network  *remote.NetworkError
	)
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": conflict.Error(), "turn_id": conflict.TurnID})
	case errors.As(err, &auth):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "session expired, log in again"})
	case errors.As(err, &network):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "turn backend unreachable"})
	case errors.Is(err, remote.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "turn not found"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
	}
}
