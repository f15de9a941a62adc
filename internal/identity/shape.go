package identity

import (
	"regexp"
	"strings"
	"unicode"
)

// IDShape labels a stored document id by its structure.
type IDShape string

const (
	ShapeValid             IDShape = "VALID"
	ShapeNumericLegacy     IDShape = "NUMERIC_LEGACY"
	ShapeRandomInvalid     IDShape = "RANDOM_INVALID"
	ShapeWhitespaceFixable IDShape = "WHITESPACE_FIXABLE"
)

var (
	validIDPattern   = regexp.MustCompile(`^\p{Hangul}[\p{Hangul}A-Za-z0-9]*(?:_[\p{Hangul}A-Za-z0-9]+)+$`)
	numericIDPattern = regexp.MustCompile(`^[0-9]{4,6}$`)
)

// ClassifyDocumentID returns exactly one shape for any input. Checks run in
// order: valid semantic id, 4-6 digit legacy id, whitespace-corrupted id
// that becomes valid once repaired, and finally random invalid.
func ClassifyDocumentID(id string) IDShape {
	switch {
	case validIDPattern.MatchString(id):
		return ShapeValid
	case numericIDPattern.MatchString(id):
		return ShapeNumericLegacy
	case strings.IndexFunc(id, unicode.IsSpace) >= 0 && validIDPattern.MatchString(FixWhitespace(id)):
		return ShapeWhitespaceFixable
	}
	return ShapeRandomInvalid
}

// FixWhitespace splits id on whitespace and underscores, drops empty
// segments, and rejoins with single underscores. It is a no-op on valid ids.
func FixWhitespace(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	})
	return strings.Join(parts, "_")
}
