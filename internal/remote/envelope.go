package remote

import "encoding/json"

// apiResponse models the backend's standard response envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Role    string `json:"role"`
	Token   string `json:"token"`
}

// NewTurn is what reception submits; the store assigns id, estado and
// arrival time.
type NewTurn struct {
	Nombre  string  `json:"nombre"`
	DNI     *string `json:"dni"`
	Piso    int     `json:"piso"`
	AreaKey string  `json:"area_key"`
	Motivo  string  `json:"motivo_texto"`
}

type authorizeRequest struct {
	LlamadoPor string `json:"llamado_por"`
}

type attendRequest struct {
	AtendidoPor string `json:"atendido_por"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type pushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// LoginResult is what a successful login yields to the caller, which is
// responsible for persisting it.
type LoginResult struct {
	Role        string
	Credentials Credentials
}
