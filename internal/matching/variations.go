package matching

import (
	"regexp"
	"strings"

	"github.com/JaimeStill/roster/internal/identity"
)

// VariationKind identifies how a name variation was derived.
type VariationKind string

const (
	VariationRaw          VariationKind = "raw"
	VariationCore         VariationKind = "core"
	VariationAbbreviation VariationKind = "abbreviation"
)

// Variation is one candidate spelling of a source name.
type Variation struct {
	Kind VariationKind `json:"kind"`
	Text string        `json:"text"`
	key  string
}

var (
	weekdayToken    = regexp.MustCompile(`^[월화수목금토일]+(?:[,/·.][월화수목금토일]+)*$`)
	timeToken       = regexp.MustCompile(`^(?:오전|오후)?\d{1,2}(?::\d{2})?시?(?:[~-](?:오전|오후)?\d{1,2}(?::\d{2})?시?)?$`)
	instructorToken = regexp.MustCompile(`^[A-Z]{2,}$`)
	abbreviation    = regexp.MustCompile(`^([A-Za-z]+)(\d+)([A-Za-z]?)$`)
)

// CoreName strips trailing instructor tokens (runs of two or more uppercase
// Latin letters), weekday runs, and time-of-day tokens. At least one token
// always remains.
func CoreName(name string) string {
	tokens := strings.Fields(identity.Clean(name))
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if !weekdayToken.MatchString(last) &&
			!isTimeToken(last) &&
			!instructorToken.MatchString(last) {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// ExpandAbbreviation returns the punctuation variants of an abbreviated class
// name such as DP2 when its letter prefix is in the table. Table keys are
// matched case-insensitively.
func ExpandAbbreviation(name string, table map[string]string) []string {
	compact := identity.NormalizeName(name)
	m := abbreviation.FindStringSubmatch(compact)
	if m == nil {
		return nil
	}

	full, ok := lookupFold(table, m[1])
	if !ok {
		return nil
	}
	suffix := m[2] + m[3]

	bases := []string{
		full,
		strings.ReplaceAll(full, ". ", "."),
		strings.Join(strings.Fields(strings.ReplaceAll(full, ".", " ")), " "),
	}

	var out []string
	seen := make(map[string]bool)
	for _, b := range bases {
		for _, v := range []string{b + " " + suffix, b + suffix} {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// Variations returns the distinct spellings tried for fuzzy class matching,
// in priority order: raw, core, then abbreviation expansions. Variations that
// collapse to the same NameKey are kept once under the earliest kind.
func Variations(name string, table map[string]string) []Variation {
	var out []Variation
	seen := make(map[string]bool)

	add := func(kind VariationKind, text string) {
		key := NameKey(text)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Variation{Kind: kind, Text: text, key: key})
	}

	add(VariationRaw, identity.Clean(name))
	add(VariationCore, CoreName(name))
	for _, v := range ExpandAbbreviation(name, table) {
		add(VariationAbbreviation, v)
	}
	return out
}

// isTimeToken rejects bare numbers so level digits such as the 3 in
// "Reading Master 3" are never stripped.
func isTimeToken(s string) bool {
	if !timeToken.MatchString(s) {
		return false
	}
	return strings.ContainsAny(s, ":시~-") || strings.HasPrefix(s, "오전") || strings.HasPrefix(s, "오후")
}

func lookupFold(table map[string]string, key string) (string, bool) {
	if v, ok := table[key]; ok {
		return v, true
	}
	for _, k := range sortedIDs(table) {
		if strings.EqualFold(k, key) {
			return table[k], true
		}
	}
	return "", false
}
