package api

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"turnero-desk/internal/auth"
	"turnero-desk/internal/events"
	"turnero-desk/internal/model"
	"turnero-desk/internal/notification"
	"turnero-desk/internal/reception"
)

// TurnSource is the poller as the API sees it.
type TurnSource interface {
	Snapshot() ([]model.Turn, uint64)
	Refresh()
	Filter() model.Filter
}

// Actions submits lifecycle transitions.
type Actions interface {
	Authorize(ctx context.Context, id int64, actor string) (model.Turn, error)
	MarkAttended(ctx context.Context, id int64, actor string) (model.Turn, error)
}

// Registrar creates turns from reception forms.
type Registrar interface {
	Register(ctx context.Context, f reception.Form) (model.Turn, error)
}

// Sessions logs the desk in and out.
type Sessions interface {
	Login(ctx context.Context, username, password string) (auth.Landing, error)
	Logout(ctx context.Context) error
	Current() (model.Session, bool)
}

// Subscriptions persists browser push subscriptions.
type Subscriptions interface {
	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Deps are the services behind the API. Nil members disable their routes'
// behavior with a 503.
type Deps struct {
	Turns         TurnSource
	Actions       Actions
	Reception     Registrar
	Sessions      Sessions
	Subscriptions Subscriptions
	Sound         *notification.Sound
	Toasts        *notification.Board
	System        *notification.SystemNotifier
	Hub           *events.Hub
	Catalog       *model.Catalog
	WebPush       *webpush.Options
	// Actor is credited for transitions when neither the request nor the
	// session names one.
	Actor string
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
	chime []byte
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{Deps: d}
	if d.Sound != nil {
		h.chime = d.Sound.Chime().WAV(chimeSampleRate)
	}
	return h
}

const chimeSampleRate = 22050

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": what + " is not configured"})
}
