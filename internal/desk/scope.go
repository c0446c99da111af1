// Package desk keeps the poller scoped to whoever is logged in.
package desk

import (
	"turnero-desk/internal/auth"
	"turnero-desk/internal/model"
)

// Scoper is the poller as the binder sees it.
type Scoper interface {
	SetScope(filter model.Filter, dispatch func(model.Turn))
}

// Binder rescopes the poller on every session change. A configured floor
// (>= 0) wins over the login role; otherwise a pisoN role watches floor N.
// Only floor-bound desks raise new-turn alerts.
type Binder struct {
	scoper   Scoper
	estado   model.Estado
	floor    int
	dispatch func(model.Turn)
}

// NewBinder creates a Binder. floor < 0 means "take it from the login".
func NewBinder(s Scoper, estado model.Estado, floor int, dispatch func(model.Turn)) *Binder {
	return &Binder{scoper: s, estado: estado, floor: floor, dispatch: dispatch}
}

// Apply has the signature of an auth.Service OnChange listener.
func (b *Binder) Apply(landing auth.Landing, loggedIn bool) {
	if !loggedIn {
		b.scoper.SetScope(b.idle(), nil)
		return
	}
	floor := b.floor
	if floor < 0 && landing.View == auth.ViewFloor {
		floor = landing.Floor
	}
	if floor < 0 {
		b.scoper.SetScope(model.Filter{Estado: b.estado}, nil)
		return
	}
	b.scoper.SetScope(model.FloorFilter(b.estado, floor), b.dispatch)
}

// idle is the filter of a desk with no session.
func (b *Binder) idle() model.Filter {
	if b.floor >= 0 {
		return model.FloorFilter(b.estado, b.floor)
	}
	return model.Filter{Estado: b.estado}
}
