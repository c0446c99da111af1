package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"turnero-desk/internal/parse"
)

// Estado is the lifecycle status of a visitor turn.
type Estado string

const (
	EstadoEspera     Estado = "ESPERA"
	EstadoAutorizado Estado = "AUTORIZADO"
	EstadoAtendido   Estado = "ATENDIDO"
)

// legacyAutorizado is how older backends spell the authorized state.
const legacyAutorizado = "AUTORIZADO_SUBIR"

// ParseEstado maps a raw backend status onto an Estado.
func ParseEstado(raw string) (Estado, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(EstadoEspera):
		return EstadoEspera, nil
	case string(EstadoAutorizado), legacyAutorizado:
		return EstadoAutorizado, nil
	case string(EstadoAtendido):
		return EstadoAtendido, nil
	}
	return "", fmt.Errorf("unknown estado %q", raw)
}

// Rank orders states along the lifecycle. Unknown states rank -1.
func (e Estado) Rank() int {
	switch e {
	case EstadoEspera:
		return 0
	case EstadoAutorizado:
		return 1
	case EstadoAtendido:
		return 2
	}
	return -1
}

// Terminal reports whether no further transition is possible.
func (e Estado) Terminal() bool {
	return e == EstadoAtendido
}

// Turn is a visitor's queue entry as held by the remote turn store.
type Turn struct {
	ID             int64      `json:"id"`
	Nombre         string     `json:"nombre"`
	DNI            *string    `json:"dni,omitempty"`
	Piso           int        `json:"piso"`
	Area           string     `json:"area"`
	AreaNombre     string     `json:"area_nombre,omitempty"`
	Motivo         string     `json:"motivo"`
	HoraLlegada    time.Time  `json:"hora_llegada"`
	Estado         Estado     `json:"estado"`
	LlamadoPor     *string    `json:"llamado_por,omitempty"`
	AtendidoPor    *string    `json:"atendido_por,omitempty"`
	HoraAutorizado *time.Time `json:"hora_autorizado,omitempty"`
	HoraAtendido   *time.Time `json:"hora_atendido,omitempty"`
}

// DisplayArea prefers the backend's friendly area name.
func (t Turn) DisplayArea() string {
	if t.AreaNombre != "" {
		return t.AreaNombre
	}
	return t.Area
}

// Filter selects turns when listing them.
type Filter struct {
	Estado Estado
	Piso   *int
}

// FloorFilter is the common "waiting on floor N" scope.
func FloorFilter(estado Estado, piso int) Filter {
	return Filter{Estado: estado, Piso: &piso}
}

// turnWire accepts both the current field names and the backend's older
// area_key / motivo_texto spelling, with floors sent as numbers or strings.
type turnWire struct {
	ID             int64           `json:"id"`
	Nombre         string          `json:"nombre"`
	DNI            *string         `json:"dni"`
	Piso           json.RawMessage `json:"piso"`
	Area           string          `json:"area"`
	AreaKey        string          `json:"area_key"`
	AreaNombre     string          `json:"area_nombre"`
	Motivo         string          `json:"motivo"`
	MotivoTexto    string          `json:"motivo_texto"`
	HoraLlegada    string          `json:"hora_llegada"`
	Estado         string          `json:"estado"`
	LlamadoPor     *string         `json:"llamado_por"`
	AtendidoPor    *string         `json:"atendido_por"`
	HoraAutorizado *string         `json:"hora_autorizado"`
	HoraAtendido   *string         `json:"hora_atendido"`
}

// UnmarshalJSON decodes a turn as sent by the backend or by this service.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var w turnWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	piso, err := decodePiso(w.Piso)
	if err != nil {
		return fmt.Errorf("turn %d: %w", w.ID, err)
	}

	var estado Estado
	if w.Estado != "" {
		if estado, err = ParseEstado(w.Estado); err != nil {
			return fmt.Errorf("turn %d: %w", w.ID, err)
		}
	}

	llegada, err := parseTimestamp(&w.HoraLlegada)
	if err != nil {
		return fmt.Errorf("turn %d: hora_llegada: %w", w.ID, err)
	}
	autorizado, err := parseTimestamp(w.HoraAutorizado)
	if err != nil {
		return fmt.Errorf("turn %d: hora_autorizado: %w", w.ID, err)
	}
	atendido, err := parseTimestamp(w.HoraAtendido)
	if err != nil {
		return fmt.Errorf("turn %d: hora_atendido: %w", w.ID, err)
	}

	*t = Turn{
		ID:             w.ID,
		Nombre:         w.Nombre,
		DNI:            w.DNI,
		Piso:           piso,
		Area:           firstNonEmpty(w.Area, w.AreaKey),
		AreaNombre:     w.AreaNombre,
		Motivo:         firstNonEmpty(w.Motivo, w.MotivoTexto),
		Estado:         estado,
		LlamadoPor:     w.LlamadoPor,
		AtendidoPor:    w.AtendidoPor,
		HoraAutorizado: autorizado,
		HoraAtendido:   atendido,
	}
	if llegada != nil {
		t.HoraLlegada = *llegada
	}
	return nil
}

func decodePiso(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return parse.ParseFloor(s)
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid piso %s", raw)
	}
	return n, nil
}

// Layouts the backend has been seen to emit. Naive timestamps are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(ts *string) (*time.Time, error) {
	if ts == nil || *ts == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, *ts, time.UTC); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", *ts)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
