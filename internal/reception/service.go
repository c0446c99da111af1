// Package reception registers arriving visitors.
package reception

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"turnero-desk/internal/model"
	"turnero-desk/internal/remote"
)

// Form is what the reception desk fills in for a visitor.
type Form struct {
	Nombre string `json:"nombre"`
	DNI    string `json:"dni"`
	Piso   int    `json:"piso"`
	Area   string `json:"area"`
	Motivo string `json:"motivo"`
}

// ValidationError names the first field that is wrong.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Creator is the part of the store client reception needs.
type Creator interface {
	CreateTurn(ctx context.Context, creds remote.Credentials, nt remote.NewTurn) (model.Turn, error)
}

// Refresher triggers an out-of-cycle poll.
type Refresher interface {
	Refresh()
}

// Service validates visitor forms and creates turns.
type Service struct {
	creator   Creator
	creds     remote.CredentialSource
	catalog   *model.Catalog
	refresher Refresher
}

// NewService creates a reception service. refresher may be nil.
func NewService(creator Creator, creds remote.CredentialSource, catalog *model.Catalog, refresher Refresher) *Service {
	return &Service{creator: creator, creds: creds, catalog: catalog, refresher: refresher}
}

// Validate checks f and returns the request the store expects.
func (s *Service) Validate(f Form) (remote.NewTurn, error) {
	nombre := strings.TrimSpace(f.Nombre)
	if nombre == "" {
		return remote.NewTurn{}, &ValidationError{Field: "nombre", Message: "ingrese el nombre del visitante"}
	}

	var dni *string
	if d := strings.TrimSpace(f.DNI); d != "" {
		if strings.IndexFunc(d, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return remote.NewTurn{}, &ValidationError{Field: "dni", Message: "el DNI debe contener solo números"}
		}
		dni = &d
	}

	if !s.catalog.HasFloor(f.Piso) {
		return remote.NewTurn{}, &ValidationError{Field: "piso", Message: fmt.Sprintf("el piso %d no existe", f.Piso)}
	}

	if strings.TrimSpace(f.Area) == "" {
		return remote.NewTurn{}, &ValidationError{Field: "area", Message: "seleccione un área"}
	}
	area, ok := s.catalog.Resolve(f.Area)
	if !ok {
		return remote.NewTurn{}, &ValidationError{Field: "area", Message: fmt.Sprintf("área desconocida %q", f.Area)}
	}
	if area.Piso != f.Piso {
		return remote.NewTurn{}, &ValidationError{Field: "area", Message: fmt.Sprintf("%s está en el piso %d", area.Nombre, area.Piso)}
	}

	motivo := strings.TrimSpace(f.Motivo)
	if motivo == "" {
		return remote.NewTurn{}, &ValidationError{Field: "motivo", Message: "ingrese el motivo de la visita"}
	}

	return remote.NewTurn{
		Nombre:  nombre,
		DNI:     dni,
		Piso:    f.Piso,
		AreaKey: area.Key,
		Motivo:  motivo,
	}, nil
}

// Register validates f and creates the turn.
func (s *Service) Register(ctx context.Context, f Form) (model.Turn, error) {
	nt, err := s.Validate(f)
	if err != nil {
		return model.Turn{}, err
	}

	turn, err := s.creator.CreateTurn(ctx, s.creds.Credentials(), nt)
	if err != nil {
		return model.Turn{}, fmt.Errorf("create turn: %w", err)
	}

	log.Info().Int64("turn_id", turn.ID).Str("nombre", turn.Nombre).Int("piso", nt.Piso).Str("area", nt.AreaKey).Msg("visitor registered")
	if s.refresher != nil {
		s.refresher.Refresh()
	}
	return turn, nil
}
