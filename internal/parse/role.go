package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	floorRoleRe = regexp.MustCompile(`(?i)^\s*piso\s*(\d+)\s*$`)
	floorRe     = regexp.MustCompile(`(?i)^\s*(?:piso\s*)?(\d+)\s*(?:F|°|º)?\s*$`)
)

// RoleKind is the kind of desk a staff account operates.
type RoleKind string

const (
	RoleReception RoleKind = "recepcion"
	RoleFloor     RoleKind = "piso"
	RoleAdmin     RoleKind = "admin"
	RoleOther     RoleKind = "other"
)

// Role is the parsed form of an account name or backend role such as
// "recepcion" or "piso2".
type Role struct {
	Kind  RoleKind
	Floor int
}

// ParseRole classifies a username or role string.
func ParseRole(raw string) Role {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "recepcion", "recepción":
		return Role{Kind: RoleReception}
	case "admin":
		return Role{Kind: RoleAdmin}
	}
	if m := floorRoleRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return Role{Kind: RoleFloor, Floor: n}
		}
	}
	return Role{Kind: RoleOther}
}

// ParseFloor reads a floor label. "PB" (planta baja) is floor 0.
func ParseFloor(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, "PB") || s == "" {
		return 0, nil
	}
	m := floorRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse floor from %q", raw)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("unable to parse floor from %q: %w", raw, err)
	}
	return n, nil
}
