// Package matching resolves free-text source records to canonical entities.
// Class matching runs manual override, exact id, exact normalized name, and
// finally name variations with containment scoring. Student matching runs
// manual override, exact id, name + phone composite, semantic key, and a
// unique-name fallback. Matchers are immutable after construction and safe
// for concurrent use.
package matching

import (
	"sort"
	"strings"

	"github.com/JaimeStill/roster/internal/identity"
)

// MatchType is how a source record was resolved.
type MatchType string

const (
	MatchExactID   MatchType = "EXACT_ID"
	MatchExactName MatchType = "EXACT_NAME"
	MatchFuzzy     MatchType = "FUZZY"
	MatchNone      MatchType = "NONE"
)

// Strategy names the rule inside a match type that produced the result.
type Strategy string

const (
	StrategyManual       Strategy = "manual"
	StrategyID           Strategy = "id"
	StrategyName         Strategy = "name"
	StrategyNamePhone    Strategy = "name_phone"
	StrategySemanticKey  Strategy = "semantic_key"
	StrategyUniqueName   Strategy = "unique_name"
	StrategyCore         Strategy = "core"
	StrategyAbbreviation Strategy = "abbreviation"
	StrategyContainment  Strategy = "containment"
)

const (
	confidenceExact        = 1.0
	confidenceName         = 0.95
	confidenceNamePhone    = 0.95
	confidenceSemanticKey  = 0.9
	confidenceUniqueName   = 0.8
	confidenceCore         = 0.9
	confidenceAbbreviation = 0.85
	confidenceContainment  = 0.7
)

// Result is the outcome of a single match. EntityID is set iff Type is not
// MatchNone.
type Result struct {
	SourceKey  string    `json:"source_key"`
	EntityID   string    `json:"entity_id,omitempty"`
	EntityName string    `json:"entity_name,omitempty"`
	Type       MatchType `json:"match_type"`
	Strategy   Strategy  `json:"strategy,omitempty"`
	Confidence float64   `json:"confidence"`
	// Ambiguous lists candidate ids that tied when no single winner exists.
	Ambiguous []string `json:"ambiguous,omitempty"`
}

// Matched reports whether an entity was found.
func (r Result) Matched() bool {
	return r.Type != MatchNone
}

func none(key string) Result {
	return Result{SourceKey: key, Type: MatchNone}
}

// Overrides is a manual source key -> entity id table. Source keys are
// compared after NameKey normalization.
type Overrides map[string]string

// Lookup returns the override target for a source key.
func (o Overrides) Lookup(key string) (string, bool) {
	if len(o) == 0 {
		return "", false
	}
	id, ok := o[NameKey(key)]
	return id, ok
}

// Normalize returns a copy of the table with keys in NameKey form.
func (o Overrides) Normalize() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		if k = NameKey(k); k != "" {
			out[k] = v
		}
	}
	return out
}

// NameKey is the comparison form of a display name: NFC, all whitespace
// removed, lower-cased.
func NameKey(s string) string {
	return strings.ToLower(identity.NormalizeName(s))
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
