package identity

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var schoolSuffixes = []struct {
	long  string
	short string
}{
	{"초등학교", "초"},
	{"중학교", "중"},
	{"고등학교", "고"},
}

// maxAbbreviationLen is the longest token the abbreviation pass rewrites.
const maxAbbreviationLen = 2

// NormalizeSchool removes whitespace and collapses the long-form school
// suffixes to their one-character forms, so "서울 초등학교" and "서울초"
// normalize identically.
func NormalizeSchool(raw string) string {
	s := stripSpace(norm.NFC.String(raw))
	for _, sfx := range schoolSuffixes {
		if base, ok := strings.CutSuffix(s, sfx.long); ok {
			return base + sfx.short
		}
	}
	return s
}

// SchoolIndex holds the abbreviation rewrites observed across one batch of
// school names. Build it once per run and share it read-only.
type SchoolIndex struct {
	freq     map[string]int
	rewrites map[string]string
}

// BuildSchoolIndex counts every normalized school token, then maps each token
// of at most two characters to the longer observed token it is a suffix of.
// When several longer tokens qualify the most frequent one wins; equal
// frequencies resolve to the lexicographically smallest token.
func BuildSchoolIndex(raw []string) *SchoolIndex {
	freq := make(map[string]int)
	for _, r := range raw {
		if s := NormalizeSchool(r); s != "" {
			freq[s]++
		}
	}

	rewrites := make(map[string]string)
	for short := range freq {
		if utf8.RuneCountInString(short) > maxAbbreviationLen {
			continue
		}

		best, bestFreq := "", 0
		for long, n := range freq {
			if long == short || !strings.HasSuffix(long, short) {
				continue
			}
			if n > bestFreq || (n == bestFreq && long < best) {
				best, bestFreq = long, n
			}
		}

		if best != "" {
			rewrites[short] = best
		}
	}

	return &SchoolIndex{freq: freq, rewrites: rewrites}
}

// Resolve normalizes raw and applies the abbreviation rewrite, if any.
// A nil index only normalizes.
func (x *SchoolIndex) Resolve(raw string) string {
	s := NormalizeSchool(raw)
	if x == nil {
		return s
	}
	if long, ok := x.rewrites[s]; ok {
		return long
	}
	return s
}

// Rewrites returns a copy of the abbreviation rewrites for reporting.
func (x *SchoolIndex) Rewrites() map[string]string {
	out := make(map[string]string, len(x.rewrites))
	for k, v := range x.rewrites {
		out[k] = v
	}
	return out
}
