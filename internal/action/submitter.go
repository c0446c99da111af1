// Package action submits lifecycle transitions to the remote store.
package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"turnero-desk/internal/model"
	"turnero-desk/internal/remote"
)

// Remote is the part of the store client the submitter writes through.
type Remote interface {
	Authorize(ctx context.Context, creds remote.Credentials, id int64, actor string) (model.Turn, error)
	Attend(ctx context.Context, creds remote.Credentials, id int64, actor string) (model.Turn, error)
}

// Refresher triggers an out-of-cycle poll.
type Refresher interface {
	Refresh()
}

// KnownStates answers the last polled estado of a turn.
type KnownStates interface {
	Lookup(id int64) (model.Estado, bool)
}

// ErrNoActor is returned when a transition has nobody to attribute it to.
var ErrNoActor = errors.New("actor is required")

// appliedTTL bounds how long the submitter remembers its own transitions.
// A poll normally catches up well before that.
const appliedTTL = 2 * time.Minute

// Submitter sends authorize and attend requests. It never edits the
// cached list; on success it asks the poller for a fresh one.
type Submitter struct {
	remote    Remote
	creds     remote.CredentialSource
	refresher Refresher
	known     KnownStates
	applied   *cache.Cache
}

// New creates a Submitter. known may be nil, in which case every request
// goes to the store.
func New(r Remote, creds remote.CredentialSource, refresher Refresher, known KnownStates) *Submitter {
	return &Submitter{
		remote:    r,
		creds:     creds,
		refresher: refresher,
		known:     known,
		applied:   cache.New(appliedTTL, 2*appliedTTL),
	}
}

// Authorize moves turn id from ESPERA to AUTORIZADO on behalf of actor.
func (s *Submitter) Authorize(ctx context.Context, id int64, actor string) (model.Turn, error) {
	return s.submit(ctx, model.ActionAuthorize, id, actor, s.remote.Authorize)
}

// MarkAttended moves turn id from AUTORIZADO to ATENDIDO on behalf of actor.
func (s *Submitter) MarkAttended(ctx context.Context, id int64, actor string) (model.Turn, error) {
	return s.submit(ctx, model.ActionAttend, id, actor, s.remote.Attend)
}

type transitionFunc func(ctx context.Context, creds remote.Credentials, id int64, actor string) (model.Turn, error)

func (s *Submitter) submit(ctx context.Context, action string, id int64, actor string, call transitionFunc) (model.Turn, error) {
	if actor == "" {
		return model.Turn{}, ErrNoActor
	}

	// A turn may only move from the state its action requires, and the
	// store is not trusted to check that. A known state that does not
	// match is rejected here; the refresh lets the desk catch up.
	if estado, ok := s.lookup(id); ok && !model.ValidTransition(action, estado) {
		log.Info().Int64("turn_id", id).Str("action", action).Str("estado", string(estado)).Msg("transition not valid from known state; refreshing")
		s.refresh()
		return model.Turn{}, &remote.ConflictError{
			TurnID:  id,
			Action:  action,
			Message: fmt.Sprintf("turn is %s", estado),
		}
	}

	turn, err := call(ctx, s.creds.Credentials(), id, actor)
	if err != nil {
		if remote.IsConflict(err) {
			log.Info().Err(err).Int64("turn_id", id).Str("action", action).Msg("store rejected transition; refreshing")
			s.refresh()
		} else {
			log.Warn().Err(err).Int64("turn_id", id).Str("action", action).Msg("transition failed")
		}
		return model.Turn{}, err
	}

	log.Info().Int64("turn_id", id).Str("action", action).Str("actor", actor).Str("estado", string(turn.Estado)).Msg("transition applied")
	estado := turn.Estado
	if estado == "" {
		estado, _ = model.TargetEstado(action)
	}
	s.applied.SetDefault(appliedKey(id), estado)
	s.refresh()
	return turn, nil
}

// lookup returns the furthest known state of id: the last poll, or a
// transition this submitter applied since.
func (s *Submitter) lookup(id int64) (model.Estado, bool) {
	var estado model.Estado
	var found bool
	if s.known != nil {
		estado, found = s.known.Lookup(id)
	}
	if v, ok := s.applied.Get(appliedKey(id)); ok {
		if mine := v.(model.Estado); !found || mine.Rank() > estado.Rank() {
			estado, found = mine, true
		}
	}
	return estado, found
}

func appliedKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Submitter) refresh() {
	if s.refresher != nil {
		s.refresher.Refresh()
	}
}
