package matching

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// minOverlap is the shortest containment that counts toward a fuzzy score.
const minOverlap = 2

// Candidate is a canonical entity matched by display name (class section or
// staff member).
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClassQuery is the reference being resolved: an id when the source carries
// one, and a free-text name.
type ClassQuery struct {
	ID   string
	Name string
}

// ClassOptions configures a ClassMatcher.
type ClassOptions struct {
	// Abbreviations maps letter prefixes (DP) to full names (Dr. Phonics).
	Abbreviations map[string]string
	Overrides     Overrides
}

type indexed struct {
	Candidate
	key string
}

// ClassMatcher matches names against a fixed candidate pool.
type ClassMatcher struct {
	pool          []indexed
	byID          map[string]indexed
	byKey         map[string]indexed
	abbreviations map[string]string
	overrides     Overrides
}

// NewClassMatcher indexes the pool. Candidates are ordered by id so every
// tie resolves to the lowest id.
func NewClassMatcher(pool []Candidate, opts ClassOptions) *ClassMatcher {
	m := &ClassMatcher{
		pool:          make([]indexed, 0, len(pool)),
		byID:          make(map[string]indexed, len(pool)),
		byKey:         make(map[string]indexed, len(pool)),
		abbreviations: opts.Abbreviations,
		overrides:     opts.Overrides.Normalize(),
	}

	for _, c := range pool {
		if c.ID == "" {
			continue
		}
		m.pool = append(m.pool, indexed{Candidate: c, key: NameKey(c.Name)})
	}
	sort.Slice(m.pool, func(i, j int) bool { return m.pool[i].ID < m.pool[j].ID })

	for _, c := range m.pool {
		if _, ok := m.byID[c.ID]; !ok {
			m.byID[c.ID] = c
		}
		if _, ok := m.byKey[c.key]; !ok && c.key != "" {
			m.byKey[c.key] = c
		}
	}
	return m
}

// Len returns the candidate pool size.
func (m *ClassMatcher) Len() int {
	return len(m.pool)
}

// Lookup returns the candidate with the given id.
func (m *ClassMatcher) Lookup(id string) (Candidate, bool) {
	c, ok := m.byID[id]
	return c.Candidate, ok
}

// Match resolves q. Manual overrides win, then exact id, exact normalized
// name, exact variation hits, and finally the best containment score.
func (m *ClassMatcher) Match(q ClassQuery) Result {
	key := NameKey(q.Name)

	if id, ok := m.overrides.Lookup(q.Name); ok {
		if c, ok := m.byID[id]; ok {
			return m.result(key, c, MatchExactID, StrategyManual, confidenceExact)
		}
	}

	if q.ID != "" {
		if c, ok := m.byID[q.ID]; ok {
			return m.result(key, c, MatchExactID, StrategyID, confidenceExact)
		}
	}

	if key == "" {
		return none(key)
	}

	if c, ok := m.byKey[key]; ok {
		return m.result(key, c, MatchExactName, StrategyName, confidenceName)
	}

	variations := Variations(q.Name, m.abbreviations)

	for _, c := range m.pool {
		for _, v := range variations {
			if v.key == c.key {
				return m.result(key, c, MatchFuzzy, variationStrategy(v.Kind), variationConfidence(v.Kind))
			}
		}
	}

	var (
		best      indexed
		bestScore float64
		found     bool
	)
	for _, c := range m.pool {
		if c.key == "" {
			continue
		}
		for _, v := range variations {
			s := containmentScore(c.key, v.key)
			if s > bestScore {
				best, bestScore, found = c, s, true
			}
		}
	}

	if !found {
		return none(key)
	}

	r := m.result(key, best, MatchFuzzy, StrategyContainment, confidenceContainment)
	r.Confidence = confidenceContainment * bestScore / (2 * float64(utf8.RuneCountInString(best.key)))
	if r.Confidence > confidenceContainment {
		r.Confidence = confidenceContainment
	}
	return r
}

func (m *ClassMatcher) result(key string, c indexed, t MatchType, s Strategy, conf float64) Result {
	return Result{
		SourceKey:  key,
		EntityID:   c.ID,
		EntityName: c.Name,
		Type:       t,
		Strategy:   s,
		Confidence: conf,
	}
}

// containmentScore is overlap * (1 + overlap/maxLen) when one key contains
// the other, and zero otherwise. Lengths are in runes.
func containmentScore(a, b string) float64 {
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}

	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	overlap, longest := min(la, lb), max(la, lb)
	if overlap < minOverlap {
		return 0
	}

	o := float64(overlap)
	return o * (1 + o/float64(longest))
}

func variationStrategy(k VariationKind) Strategy {
	switch k {
	case VariationCore:
		return StrategyCore
	case VariationAbbreviation:
		return StrategyAbbreviation
	default:
		return StrategyName
	}
}

func variationConfidence(k VariationKind) float64 {
	switch k {
	case VariationCore:
		return confidenceCore
	case VariationAbbreviation:
		return confidenceAbbreviation
	default:
		return confidenceName
	}
}
