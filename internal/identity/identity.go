// Package identity canonicalizes free-text identity fields (person name,
// school, grade, phone) into comparable keys and classifies stored document
// ids by shape. All functions are pure.
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Clean composes Hangul to NFC, trims, and collapses internal whitespace runs
// to a single space. Spreadsheet exports from macOS frequently carry NFD text,
// which would otherwise never compare equal to stored values.
func Clean(raw string) string {
	s := norm.NFC.String(raw)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeName returns a person name with all whitespace removed.
func NormalizeName(raw string) string {
	return stripSpace(norm.NFC.String(raw))
}

// NormalizePhone strips every non-digit character. A leading +82 country
// code is rewritten to the domestic 0 prefix.
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, trimmed)

	if strings.HasPrefix(trimmed, "+82") && strings.HasPrefix(digits, "82") {
		digits = "0" + digits[2:]
	}
	return digits
}

// BuildSemanticKey returns name_school_grade with each part normalized.
// It is the canonical-collision probe key for student documents.
func BuildSemanticKey(name, school, grade string) string {
	return formatKey(NormalizeName(name), NormalizeSchool(school), NormalizeGrade(grade))
}

// NormalizeSemanticKey rewrites an operator-entered name_school_grade key
// into BuildSemanticKey form, so "김 철수_서울초등학교_3학년" becomes
// "김철수_서울초_3". Keys without exactly three segments are returned as is
// with ok false.
func NormalizeSemanticKey(key string) (normalized string, ok bool) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return key, false
	}
	return BuildSemanticKey(parts[0], parts[1], parts[2]), true
}

// Normalizer applies the school abbreviation corrections computed for one
// batch of records on top of the stateless normalization functions.
type Normalizer struct {
	schools *SchoolIndex
}

// NewNormalizer creates a Normalizer. A nil index disables abbreviation
// correction.
func NewNormalizer(schools *SchoolIndex) *Normalizer {
	return &Normalizer{schools: schools}
}

// School normalizes a school name and applies the batch abbreviation rewrite.
func (n *Normalizer) School(raw string) string {
	return n.schools.Resolve(raw)
}

// SemanticKey is BuildSemanticKey with abbreviation correction applied to the
// school segment.
func (n *Normalizer) SemanticKey(name, school, grade string) string {
	return formatKey(NormalizeName(name), n.School(school), NormalizeGrade(grade))
}

func formatKey(name, school string, grade Grade) string {
	return fmt.Sprintf("%s_%s_%s", name, school, grade)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
