// Package auth logs the desk in and out of the turn backend and keeps the
// session across restarts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"turnero-desk/internal/model"
	"turnero-desk/internal/parse"
	"turnero-desk/internal/remote"
	"turnero-desk/internal/store"
)

var (
	// ErrMissingCredentials is returned when username or password is blank.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrNotLoggedIn is returned when there is no session to use.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Remote is the part of the store client auth needs.
type Remote interface {
	Login(ctx context.Context, username, password string) (remote.LoginResult, error)
	Logout(ctx context.Context, creds remote.Credentials) error
	RegisterPushToken(ctx context.Context, creds remote.Credentials, token, platform string) error
	UnregisterPushToken(ctx context.Context, creds remote.Credentials, token string) error
}

// SessionStore persists the session.
type SessionStore interface {
	LoadSession(ctx context.Context) (model.Session, error)
	SaveSession(ctx context.Context, s model.Session) error
	ClearSession(ctx context.Context) error
}

// View is the screen a role lands on.
type View string

const (
	ViewReception View = "reception"
	ViewFloor     View = "floor"
)

// Landing is where the desk goes after login.
type Landing struct {
	View  View `json:"view"`
	Floor int  `json:"floor,omitempty"`
}

// LandingFor maps a backend role onto a view. Floor roles ("piso2") land
// on their floor; everything else lands on reception.
func LandingFor(role string) Landing {
	r := parse.ParseRole(role)
	if r.Kind == parse.RoleFloor {
		return Landing{View: ViewFloor, Floor: r.Floor}
	}
	return Landing{View: ViewReception}
}

// Service owns the desk's session. It is the CredentialSource for every
// backend call.
type Service struct {
	remote    Remote
	store     SessionStore
	pushToken string
	platform  string

	mu        sync.RWMutex
	current   *model.Session
	listeners []func(Landing, bool)
}

// NewService creates an auth service. pushToken may be empty, in which
// case no device token is registered.
func NewService(r Remote, s SessionStore, pushToken, platform string) *Service {
	return &Service{remote: r, store: s, pushToken: pushToken, platform: platform}
}

// OnChange registers fn to run after every login, restore and logout.
// fn receives the new landing and whether a session is active.
func (s *Service) OnChange(fn func(landing Landing, loggedIn bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(landing Landing, loggedIn bool) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(landing, loggedIn)
	}
}

// Login authenticates, persists the session and registers the device
// push token. A failed token registration does not fail the login.
func (s *Service) Login(ctx context.Context, username, password string) (Landing, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Landing{}, ErrMissingCredentials
	}

	res, err := s.remote.Login(ctx, username, password)
	if err != nil {
		return Landing{}, err
	}

	role := res.Role
	if role == "" {
		role = username
	}
	sess := model.Session{
		Username:  username,
		Role:      role,
		Token:     res.Credentials.Token,
		Cookie:    res.Credentials.Cookie,
		PushToken: s.pushToken,
		Platform:  s.platform,
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return Landing{}, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	log.Info().Str("username", username).Str("role", role).Msg("logged in")

	if s.pushToken != "" {
		if err := s.remote.RegisterPushToken(ctx, res.Credentials, s.pushToken, s.platform); err != nil {
			log.Warn().Err(err).Msg("failed to register push token")
		}
	}
	landing := LandingFor(role)
	s.notify(landing, true)
	return landing, nil
}

// Logout ends the session. Backend calls are best effort; the local
// session is cleared regardless.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	s.mu.Unlock()

	s.notify(Landing{}, false)

	if sess != nil {
		creds := credentialsOf(sess)
		if sess.PushToken != "" {
			if err := s.remote.UnregisterPushToken(ctx, creds, sess.PushToken); err != nil {
				log.Warn().Err(err).Msg("failed to unregister push token")
			}
		}
		if err := s.remote.Logout(ctx, creds); err != nil {
			log.Warn().Err(err).Msg("backend logout failed")
		}
	}

	if err := s.store.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	log.Info().Msg("logged out")
	return nil
}

// Restore loads the persisted session, if any.
func (s *Service) Restore(ctx context.Context) (Landing, error) {
	sess, err := s.store.LoadSession(ctx)
	if errors.Is(err, store.ErrNoSession) {
		return Landing{}, ErrNotLoggedIn
	}
	if err != nil {
		return Landing{}, err
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	log.Info().Str("username", sess.Username).Str("role", sess.Role).Msg("restored session")
	landing := LandingFor(sess.Role)
	s.notify(landing, true)
	return landing, nil
}

// Current returns the active session.
func (s *Service) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Session{}, false
	}
	return *s.current, true
}

// Credentials implements remote.CredentialSource.
func (s *Service) Credentials() remote.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return remote.Credentials{}
	}
	return credentialsOf(s.current)
}

func credentialsOf(sess *model.Session) remote.Credentials {
	return remote.Credentials{Token: sess.Token, Cookie: sess.Cookie}
}
