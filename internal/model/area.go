package model

import (
	"sort"

	"turnero-desk/internal/parse"
)

// Area is a department visitors can be routed to. Areas are floor scoped.
type Area struct {
	Key    string `json:"key" yaml:"key"`
	Nombre string `json:"nombre" yaml:"nombre"`
	Piso   int    `json:"piso" yaml:"piso"`
}

// DefaultAreas is the municipal catalog used when the config lists none.
var DefaultAreas = []Area{
	{Key: "TRABAJO_SOCIAL", Nombre: "Área de Trabajo Social", Piso: 1},
	{Key: "POLITICAS_ALIMENTARIAS", Nombre: "Dirección de Políticas Alimentarias", Piso: 1},
	{Key: "SITUACION_DE_CALLE", Nombre: "Situación de Calle", Piso: 1},
	{Key: "EMERGENCIA_ASISTENCIA_CRITICA", Nombre: "Dirección de Emergencia y Asistencia Crítica", Piso: 1},
	{Key: "NINEZ_Y_ADOLESCENCIA", Nombre: "Dirección de Niñez y Adolescencia", Piso: 2},
	{Key: "SECRETARIA", Nombre: "Secretaría de Desarrollo Social", Piso: 3},
	{Key: "INTEGRACION_SOCIAL", Nombre: "Dirección de Integración Social", Piso: 3},
	{Key: "ARTICULACION_OPERATIVA", Nombre: "Dirección de Articulación Operativa", Piso: 3},
	{Key: "INCLUSION_SOCIAL", Nombre: "Subsecretaría de Inclusión Social", Piso: 3},
}

// Catalog resolves area keys, display names and known spelling variants.
type Catalog struct {
	areas    []Area
	byFolded map[string]Area
}

// NewCatalog indexes areas by folded key and name, plus any variants
// (folded variant -> area key).
func NewCatalog(areas []Area, variants map[string]string) *Catalog {
	if len(areas) == 0 {
		areas = DefaultAreas
	}
	c := &Catalog{
		areas:    append([]Area(nil), areas...),
		byFolded: make(map[string]Area, len(areas)*2+len(variants)),
	}
	sort.SliceStable(c.areas, func(i, j int) bool { return c.areas[i].Piso < c.areas[j].Piso })

	byKey := make(map[string]Area, len(areas))
	for _, a := range c.areas {
		byKey[a.Key] = a
		c.byFolded[parse.Fold(a.Key)] = a
		c.byFolded[parse.Fold(a.Nombre)] = a
	}
	for variant, key := range variants {
		if a, ok := byKey[key]; ok {
			c.byFolded[parse.Fold(variant)] = a
		}
	}
	return c
}

// All returns every area, ordered by floor.
func (c *Catalog) All() []Area {
	return append([]Area(nil), c.areas...)
}

// ForFloor returns the areas on floor piso.
func (c *Catalog) ForFloor(piso int) []Area {
	var out []Area
	for _, a := range c.areas {
		if a.Piso == piso {
			out = append(out, a)
		}
	}
	return out
}

// HasFloor reports whether any area lives on piso.
func (c *Catalog) HasFloor(piso int) bool {
	for _, a := range c.areas {
		if a.Piso == piso {
			return true
		}
	}
	return false
}

// Resolve finds the area a free-form name, key or variant refers to.
func (c *Catalog) Resolve(raw string) (Area, bool) {
	a, ok := c.byFolded[parse.Fold(raw)]
	return a, ok
}
