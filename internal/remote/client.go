// Package remote talks to the backend that owns the canonical turn records.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"turnero-desk/config"
	"turnero-desk/internal/model"
)

const (
	turnsPath      = "/turns/api/turnos"
	loginPath      = "/api/login"
	logoutPath     = "/logout"
	registerPath   = "/api/notifications/register-token"
	unregisterPath = "/api/notifications/unregister-token"
)

// Client is the HTTP client for the remote turn store. It holds no
// credentials of its own; every call receives them explicitly.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a Client from the backend configuration.
func New(cfg config.BackendConfig) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn().Err(err).Str("proxy", cfg.HTTPProxy).Msg("invalid proxy URL; backend calls will not use a proxy")
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// ListTurns returns the turns matching filter.
func (c *Client) ListTurns(ctx context.Context, creds Credentials, filter model.Filter) ([]model.Turn, error) {
	q := url.Values{}
	if filter.Estado != "" {
		q.Set("estado", string(filter.Estado))
	}
	if filter.Piso != nil {
		q.Set("piso", strconv.Itoa(*filter.Piso))
	}
	path := turnsPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	env, err := c.do(ctx, "list turns", http.MethodGet, path, creds, nil)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return []model.Turn{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return nil, fmt.Errorf("list turns: decode data: %w", err)
	}
	turns := make([]model.Turn, 0, len(records))
	for i, raw := range records {
		var t model.Turn
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("list turns: record %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// CreateTurn registers a new visitor. The store assigns id, estado and
// arrival time.
func (c *Client) CreateTurn(ctx context.Context, creds Credentials, nt NewTurn) (model.Turn, error) {
	env, err := c.do(ctx, "create turn", http.MethodPost, turnsPath, creds, nt)
	if err != nil {
		return model.Turn{}, err
	}
	return decodeTurn("create turn", env.Data)
}

// Authorize moves a turn from ESPERA to AUTORIZADO.
func (c *Client) Authorize(ctx context.Context, creds Credentials, id int64, actor string) (model.Turn, error) {
	return c.transition(ctx, creds, id, model.ActionAuthorize, "autorizar", authorizeRequest{LlamadoPor: actor})
}

// Attend moves a turn from AUTORIZADO to ATENDIDO.
func (c *Client) Attend(ctx context.Context, creds Credentials, id int64, actor string) (model.Turn, error) {
	return c.transition(ctx, creds, id, model.ActionAttend, "atender", attendRequest{AtendidoPor: actor})
}

func (c *Client) transition(ctx context.Context, creds Credentials, id int64, action, segment string, body any) (model.Turn, error) {
	op := action + " turn"
	path := fmt.Sprintf("%s/%d/%s", turnsPath, id, segment)

	env, err := c.do(ctx, op, http.MethodPost, path, creds, body)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Status == http.StatusBadRequest || se.Status == http.StatusConflict) {
			return model.Turn{}, &ConflictError{TurnID: id, Action: action, Message: se.Message}
		}
		return model.Turn{}, err
	}
	return decodeTurn(op, env.Data)
}

// Login exchanges username and password for a role, a token and the
// session cookie.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	const op = "login"

	resp, body, err := c.send(ctx, op, http.MethodPost, loginPath, Credentials{}, loginRequest{Username: username, Password: password})
	if err != nil {
		return LoginResult{}, err
	}

	var lr loginResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &lr); err != nil && resp.StatusCode < 300 {
			return LoginResult{}, fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || (resp.StatusCode < 300 && !lr.Success) {
		return LoginResult{}, &AuthError{Op: op, Status: resp.StatusCode, Message: lr.Message}
	}
	if err := statusErr(op, resp.StatusCode, lr.Message); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Role: lr.Role,
		Credentials: Credentials{
			Token:  lr.Token,
			Cookie: sessionCookie(resp),
		},
	}, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context, creds Credentials) error {
	resp, body, err := c.send(ctx, "logout", http.MethodGet, logoutPath, creds, nil)
	if err != nil {
		return err
	}
	// The backend answers logout with a redirect to its login page.
	if resp.StatusCode < 400 {
		return nil
	}
	return statusErr("logout", resp.StatusCode, messageOf(body))
}

// RegisterPushToken records the desk's device token with the backend.
func (c *Client) RegisterPushToken(ctx context.Context, creds Credentials, token, platform string) error {
	_, err := c.do(ctx, "register push token", http.MethodPost, registerPath, creds, pushTokenRequest{Token: token, Platform: platform})
	return err
}

// UnregisterPushToken removes the desk's device token from the backend.
func (c *Client) UnregisterPushToken(ctx context.Context, creds Credentials, token string) error {
	_, err := c.do(ctx, "unregister push token", http.MethodPost, unregisterPath, creds, pushTokenRequest{Token: token})
	return err
}

// do sends a request and decodes the standard envelope.
func (c *Client) do(ctx context.Context, op, method, path string, creds Credentials, in any) (*apiResponse, error) {
	resp, body, err := c.send(ctx, op, method, path, creds, in)
	if err != nil {
		return nil, err
	}

	var env apiResponse
	decodeErr := json.Unmarshal(body, &env)

	if err := statusErr(op, resp.StatusCode, env.Message); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, decodeErr)
	}
	if !env.Success {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

// send performs one HTTP exchange and returns the fully read body.
func (c *Client) send(ctx context.Context, op, method, path string, creds Credentials, in any) (*http.Response, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, &NetworkError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	creds.apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	return resp, body, nil
}

// statusErr maps a non-2xx status onto the error taxonomy.
func statusErr(op string, status int, message string) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &AuthError{Op: op, Status: status, Message: message}
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return &NetworkError{Op: op, Err: fmt.Errorf("status %d", status)}
	default:
		return &StatusError{Op: op, Status: status, Message: message}
	}
}

func decodeTurn(op string, data json.RawMessage) (model.Turn, error) {
	var t model.Turn
	if err := json.Unmarshal(data, &t); err != nil {
		return model.Turn{}, fmt.Errorf("%s: decode turn: %w", op, err)
	}
	return t, nil
}

func messageOf(body []byte) string {
	var env apiResponse
	if json.Unmarshal(body, &env) == nil {
		return env.Message
	}
	return ""
}

// sessionCookie flattens the Set-Cookie headers into a Cookie header value.
func sessionCookie(resp *http.Response) string {
	cookies := resp.Cookies()
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}
