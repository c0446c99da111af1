package action

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnero-desk/internal/model"
	"turnero-desk/internal/remote"
)

// fakeStore enforces the lifecycle the way the backend does.
type fakeStore struct {
	mu     sync.Mutex
	estado map[int64]model.Estado
	calls  int
	err    error
}

func (f *fakeStore) Authorize(ctx context.Context, creds remote.Credentials, id int64, actor string) (model.Turn, error) {
	return f.apply(model.ActionAuthorize, id, actor)
}

func (f *fakeStore) Attend(ctx context.Context, creds remote.Credentials, id int64, actor string) (model.Turn, error) {
	return f.apply(model.ActionAttend, id, actor)
}

func (f *fakeStore) apply(action string, id int64, actor string) (model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.Turn{}, f.err
	}
	cur, ok := f.estado[id]
	if !ok {
		return model.Turn{}, remote.ErrNotFound
	}
	if !model.ValidTransition(action, cur) {
		return model.Turn{}, &remote.ConflictError{TurnID: id, Action: action, Message: "estado inválido"}
	}
	next, _ := model.TargetEstado(action)
	f.estado[id] = next

	turn := model.Turn{ID: id, Estado: next}
	if action == model.ActionAuthorize {
		turn.LlamadoPor = &actor
	} else {
		turn.AtendidoPor = &actor
	}
	return turn, nil
}

func (f *fakeStore) state(id int64) model.Estado {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.estado[id]
}

type countingRefresher struct{ n int }

func (c *countingRefresher) Refresh() { c.n++ }

type knownMap map[int64]model.Estado

func (k knownMap) Lookup(id int64) (model.Estado, bool) {
	e, ok := k[id]
	return e, ok
}

func newSubmitter(store *fakeStore, known KnownStates) (*Submitter, *countingRefresher) {
	ref := &countingRefresher{}
	return New(store, remote.StaticCredentials{Token: "t"}, ref, known), ref
}

func TestSubmitter_AuthorizeRefreshesOnce(t *testing.T) {
	store := &fakeStore{estado: map[int64]model.Estado{5: model.EstadoEspera}}
	s, ref := newSubmitter(store, knownMap{5: model.EstadoEspera})

	turn, err := s.Authorize(context.Background(), 5, "piso1")
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAutorizado, turn.Estado)
	require.NotNil(t, turn.LlamadoPor)
	assert.Equal(t, "piso1", *turn.LlamadoPor)
	assert.Equal(t, 1, ref.n)
}

func TestSubmitter_FullLifecycle(t *testing.T) {
	store := &fakeStore{estado: map[int64]model.Estado{1: model.EstadoEspera}}
	s, ref := newSubmitter(store, nil)

	_, err := s.Authorize(context.Background(), 1, "piso1")
	require.NoError(t, err)
	turn, err := s.MarkAttended(context.Background(), 1, "piso1")
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAtendido, turn.Estado)
	assert.Equal(t, 2, ref.n)

	// Terminal: nothing moves it again.
	_, err = s.Authorize(context.Background(), 1, "piso1")
	assert.True(t, remote.IsConflict(err))
	_, err = s.MarkAttended(context.Background(), 1, "piso1")
	assert.True(t, remote.IsConflict(err))
	assert.Equal(t, model.EstadoAtendido, store.state(1))
}

func TestSubmitter_Conflicts(t *testing.T) {
	testCases := []struct {
		name   string
		action string
		estado model.Estado
	}{
		{name: "authorize authorized", action: model.ActionAuthorize, estado: model.EstadoAutorizado},
		{name: "authorize attended", action: model.ActionAuthorize, estado: model.EstadoAtendido},
		{name: "attend waiting", action: model.ActionAttend, estado: model.EstadoEspera},
		{name: "attend attended", action: model.ActionAttend, estado: model.EstadoAtendido},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{estado: map[int64]model.Estado{9: tc.estado}}
			s, ref := newSubmitter(store, nil)

			var err error
			if tc.action == model.ActionAuthorize {
				_, err = s.Authorize(context.Background(), 9, "piso2")
			} else {
				_, err = s.MarkAttended(context.Background(), 9, "piso2")
			}

			var ce *remote.ConflictError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, int64(9), ce.TurnID)
			assert.Contains(t, err.Error(), "action no longer valid")
			assert.Equal(t, tc.estado, store.state(9), "state must not change")
			assert.Equal(t, 1, ref.n, "a rejection triggers a refresh")
		})
	}
}

func TestSubmitter_KnownPastStateSkipsRequest(t *testing.T) {
	store := &fakeStore{estado: map[int64]model.Estado{3: model.EstadoAtendido}}
	s, ref := newSubmitter(store, knownMap{3: model.EstadoAtendido})

	_, err := s.Authorize(context.Background(), 3, "piso1")
	assert.True(t, remote.IsConflict(err))
	assert.Zero(t, store.calls)
	assert.Equal(t, 1, ref.n, "a local rejection still refreshes")
}

// A store that does not check the lifecycle would let attend skip
// AUTORIZADO; a turn known to be waiting is never sent.
func TestSubmitter_AttendWaitingTurnSkipsRequest(t *testing.T) {
	store := &fakeStore{estado: map[int64]model.Estado{4: model.EstadoEspera}}
	known := knownMap{4: model.EstadoEspera}
	s, ref := newSubmitter(store, known)

	_, err := s.MarkAttended(context.Background(), 4, "piso1")
	var ce *remote.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Message, "ESPERA")
	assert.Zero(t, store.calls)
	assert.Equal(t, model.EstadoEspera, store.state(4))
	assert.Equal(t, 1, ref.n)

	// Someone else authorizes it and the next poll catches up.
	store.estado[4] = model.EstadoAutorizado
	known[4] = model.EstadoAutorizado

	turn, err := s.MarkAttended(context.Background(), 4, "piso1")
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAtendido, turn.Estado)
	assert.Equal(t, 1, store.calls)
}

func TestSubmitter_OwnTransitionOutrunsPoll(t *testing.T) {
	store := &fakeStore{estado: map[int64]model.Estado{6: model.EstadoEspera}}
	// The poll has not caught up: the cache still shows ESPERA.
	s, _ := newSubmitter(store, knownMap{6: model.EstadoEspera})

	_, err := s.Authorize(context.Background(), 6, "piso1")
	require.NoError(t, err)

	turn, err := s.MarkAttended(context.Background(), 6, "piso1")
	require.NoError(t, err)
	assert.Equal(t, model.EstadoAtendido, turn.Estado)
	assert.Equal(t, 2, store.calls)

	_, err = s.Authorize(context.Background(), 6, "piso1")
	assert.True(t, remote.IsConflict(err))
	assert.Equal(t, 2, store.calls)
}

func TestSubmitter_NetworkFailure(t *testing.T) {
	store := &fakeStore{
		estado: map[int64]model.Estado{5: model.EstadoEspera},
		err:    &remote.NetworkError{Op: "authorize turn", Err: errors.New("i/o timeout")},
	}
	s, ref := newSubmitter(store, nil)

	_, err := s.Authorize(context.Background(), 5, "piso1")
	assert.True(t, remote.IsNetwork(err))
	assert.Zero(t, ref.n)
	assert.Equal(t, model.EstadoEspera, store.state(5))
}

func TestSubmitter_AuthFailure(t *testing.T) {
	store := &fakeStore{err: &remote.AuthError{Op: "authorize turn", Status: 401}}
	s, ref := newSubmitter(store, nil)

	_, err := s.Authorize(context.Background(), 5, "piso1")
	assert.True(t, remote.IsAuth(err))
	assert.Zero(t, ref.n)
}

func TestSubmitter_RequiresActor(t *testing.T) {
	store := &fakeStore{estado: map[int64]model.Estado{5: model.EstadoEspera}}
	s, _ := newSubmitter(store, nil)

	_, err := s.Authorize(context.Background(), 5, "")
	assert.ErrorIs(t, err, ErrNoActor)
	assert.Zero(t, store.calls)
}
