package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnero-desk/internal/model"
	"turnero-desk/internal/remote"
	"turnero-desk/internal/store"
)

type fakeRemote struct {
	loginErr     error
	role         string
	registerErr  error
	logoutErr    error
	registered   []string
	unregistered []string
	logouts      []remote.Credentials
}

func (f *fakeRemote) Login(_ context.Context, username, password string) (remote.LoginResult, error) {
	if f.loginErr != nil {
		return remote.LoginResult{}, f.loginErr
	}
	return remote.LoginResult{Role: f.role, Credentials: remote.Credentials{Token: "tok-" + username, Cookie: "session=1"}}, nil
}

func (f *fakeRemote) Logout(_ context.Context, creds remote.Credentials) error {
	f.logouts = append(f.logouts, creds)
	return f.logoutErr
}

func (f *fakeRemote) RegisterPushToken(_ context.Context, creds remote.Credentials, token, platform string) error {
	f.registered = append(f.registered, token+"@"+platform)
	return f.registerErr
}

func (f *fakeRemote) UnregisterPushToken(_ context.Context, creds remote.Credentials, token string) error {
	f.unregistered = append(f.unregistered, token)
	return nil
}

type memoryStore struct {
	sess    *model.Session
	saveErr error
}

func (m *memoryStore) LoadSession(context.Context) (model.Session, error) {
	if m.sess == nil {
		return model.Session{}, store.ErrNoSession
	}
	return *m.sess, nil
}

func (m *memoryStore) SaveSession(_ context.Context, s model.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sess = &s
	return nil
}

func (m *memoryStore) ClearSession(context.Context) error {
	m.sess = nil
	return nil
}

func TestLandingFor(t *testing.T) {
	testCases := []struct {
		role string
		want Landing
	}{
		{role: "recepcion", want: Landing{View: ViewReception}},
		{role: "piso1", want: Landing{View: ViewFloor, Floor: 1}},
		{role: "Piso 3", want: Landing{View: ViewFloor, Floor: 3}},
		{role: "admin", want: Landing{View: ViewReception}},
		{role: "", want: Landing{View: ViewReception}},
	}

	for _, tc := range testCases {
		t.Run(tc.role, func(t *testing.T) {
			assert.Equal(t, tc.want, LandingFor(tc.role))
		})
	}
}

func TestService_Login(t *testing.T) {
	r := &fakeRemote{role: "piso2"}
	st := &memoryStore{}
	s := NewService(r, st, "device-1", "web")

	landing, err := s.Login(context.Background(), " piso2 ", "secret")
	require.NoError(t, err)
	assert.Equal(t, Landing{View: ViewFloor, Floor: 2}, landing)

	require.NotNil(t, st.sess)
	assert.Equal(t, "piso2", st.sess.Username)
	assert.Equal(t, "device-1", st.sess.PushToken)
	assert.Equal(t, remote.Credentials{Token: "tok-piso2", Cookie: "session=1"}, s.Credentials())
	assert.Equal(t, []string{"device-1@web"}, r.registered)
}

func TestService_LoginSurvivesPushFailure(t *testing.T) {
	r := &fakeRemote{role: "recepcion", registerErr: errors.New("503")}
	s := NewService(r, &memoryStore{}, "device-1", "web")

	landing, err := s.Login(context.Background(), "recepcion", "secret")
	require.NoError(t, err)
	assert.Equal(t, ViewReception, landing.View)
	_, ok := s.Current()
	assert.True(t, ok)
}

func TestService_LoginErrors(t *testing.T) {
	s := NewService(&fakeRemote{}, &memoryStore{}, "", "")
	_, err := s.Login(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	authErr := &remote.AuthError{Op: "login", Status: 401}
	s = NewService(&fakeRemote{loginErr: authErr}, &memoryStore{}, "", "")
	_, err = s.Login(context.Background(), "piso1", "bad")
	assert.True(t, remote.IsAuth(err))
	assert.True(t, s.Credentials().Empty())

	s = NewService(&fakeRemote{role: "piso1"}, &memoryStore{saveErr: errors.New("disk full")}, "", "")
	_, err = s.Login(context.Background(), "piso1", "ok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist session")
}

func TestService_NoPushTokenSkipsRegistration(t *testing.T) {
	r := &fakeRemote{role: "piso1"}
	s := NewService(r, &memoryStore{}, "", "web")
	_, err := s.Login(context.Background(), "piso1", "secret")
	require.NoError(t, err)
	assert.Empty(t, r.registered)
}

func TestService_LogoutClearsEvenWhenBackendFails(t *testing.T) {
	r := &fakeRemote{role: "piso1", logoutErr: &remote.NetworkError{Op: "logout", Err: errors.New("down")}}
	st := &memoryStore{}
	s := NewService(r, st, "device-1", "web")

	_, err := s.Login(context.Background(), "piso1", "secret")
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background()))
	assert.Nil(t, st.sess)
	assert.True(t, s.Credentials().Empty())
	assert.Equal(t, []string{"device-1"}, r.unregistered)
	require.Len(t, r.logouts, 1)
	assert.Equal(t, "tok-piso1", r.logouts[0].Token)
}

func TestService_Restore(t *testing.T) {
	st := &memoryStore{}
	s := NewService(&fakeRemote{}, st, "", "")

	_, err := s.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	st.sess = &model.Session{Username: "piso3", Role: "piso3", Token: "saved"}
	landing, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Landing{View: ViewFloor, Floor: 3}, landing)
	assert.Equal(t, "saved", s.Credentials().Token)
}

func TestService_OnChange(t *testing.T) {
	type change struct {
		landing  Landing
		loggedIn bool
	}
	st := &memoryStore{sess: &model.Session{Username: "piso3", Role: "piso3", Token: "saved"}}
	s := NewService(&fakeRemote{role: "piso1"}, st, "", "")

	var got []change
	s.OnChange(func(l Landing, ok bool) { got = append(got, change{l, ok}) })

	_, err := s.Restore(context.Background())
	require.NoError(t, err)
	_, err = s.Login(context.Background(), "piso1", "secret")
	require.NoError(t, err)
	require.NoError(t, s.Logout(context.Background()))

	_, err = s.Login(context.Background(), "", "secret")
	require.ErrorIs(t, err, ErrMissingCredentials)

	assert.Equal(t, []change{
		{Landing{View: ViewFloor, Floor: 3}, true},
		{Landing{View: ViewFloor, Floor: 1}, true},
		{Landing{}, false},
	}, got)
}
