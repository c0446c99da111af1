package parse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonWordRe = regexp.MustCompile(`[^A-Z0-9]+`)

// Fold normalizes an area name or key for lookup: accents removed, upper
// case, and runs of anything else collapsed into a single underscore.
// "Dirección de Niñez" and "DIRECCION_DE_NINEZ" fold to the same value.
func Fold(raw string) string {
	// Chained transformers keep state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(stripMarks, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	s = nonWordRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
