package matching

import (
	"sort"

	"github.com/JaimeStill/roster/internal/identity"
)

// Person is a canonical student as seen by the matcher.
type Person struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	School string   `json:"school"`
	Grade  string   `json:"grade"`
	Phones []string `json:"phones,omitempty"`
}

// PersonQuery is a source record naming a student.
type PersonQuery struct {
	ID     string
	Name   string
	School string
	Grade  string
	Phone  string
}

// StudentMatcher matches person records against a fixed student pool.
type StudentMatcher struct {
	normalizer *identity.Normalizer
	overrides  Overrides
	byID       map[string]Person
	byKey      map[string]Person
	byPhone    map[string]Person
	byName     map[string][]Person
}

// NewStudentMatcher indexes the pool. Composite name + phone keys are only
// built for non-empty phones, so records without a phone never collide on
// the empty string.
func NewStudentMatcher(pool []Person, normalizer *identity.Normalizer, overrides Overrides) *StudentMatcher {
	if normalizer == nil {
		normalizer = identity.NewNormalizer(nil)
	}

	sorted := make([]Person, 0, len(pool))
	for _, p := range pool {
		if p.ID != "" {
			sorted = append(sorted, p)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	m := &StudentMatcher{
		normalizer: normalizer,
		overrides:  overrides.Normalize(),
		byID:       make(map[string]Person, len(sorted)),
		byKey:      make(map[string]Person, len(sorted)),
		byPhone:    make(map[string]Person),
		byName:     make(map[string][]Person),
	}

	for _, p := range sorted {
		if _, ok := m.byID[p.ID]; !ok {
			m.byID[p.ID] = p
		}

		key := normalizer.SemanticKey(p.Name, p.School, p.Grade)
		if _, ok := m.byKey[key]; !ok {
			m.byKey[key] = p
		}

		name := identity.NormalizeName(p.Name)
		if name == "" {
			continue
		}
		m.byName[name] = append(m.byName[name], p)

		for _, phone := range p.Phones {
			if ck, ok := compositeKey(name, phone); ok {
				if _, exists := m.byPhone[ck]; !exists {
					m.byPhone[ck] = p
				}
			}
		}
	}
	return m
}

// Lookup returns the student with the given id.
func (m *StudentMatcher) Lookup(id string) (Person, bool) {
	p, ok := m.byID[id]
	return p, ok
}

// Match resolves q: manual override, exact id, name + phone, semantic key,
// then a unique normalized name. A unique name shared by several students is
// narrowed by school; anything still ambiguous is NONE with the tied ids.
func (m *StudentMatcher) Match(q PersonQuery) Result {
	name := identity.NormalizeName(q.Name)
	sourceKey := m.normalizer.SemanticKey(q.Name, q.School, q.Grade)

	for _, key := range []string{sourceKey, identity.BuildSemanticKey(q.Name, q.School, q.Grade)} {
		if id, ok := m.overrides.Lookup(key); ok {
			if p, ok := m.byID[id]; ok {
				return personResult(sourceKey, p, MatchExactID, StrategyManual, confidenceExact)
			}
		}
	}

	if q.ID != "" {
		if p, ok := m.byID[q.ID]; ok {
			return personResult(sourceKey, p, MatchExactID, StrategyID, confidenceExact)
		}
	}

	if name == "" {
		return none(sourceKey)
	}

	if ck, ok := compositeKey(name, q.Phone); ok {
		if p, ok := m.byPhone[ck]; ok {
			return personResult(sourceKey, p, MatchExactName, StrategyNamePhone, confidenceNamePhone)
		}
	}

	if p, ok := m.byKey[sourceKey]; ok {
		return personResult(sourceKey, p, MatchExactName, StrategySemanticKey, confidenceSemanticKey)
	}

	same := m.byName[name]
	switch len(same) {
	case 0:
		return none(sourceKey)
	case 1:
		return personResult(sourceKey, same[0], MatchExactName, StrategyUniqueName, confidenceUniqueName)
	}

	if school := m.normalizer.School(q.School); school != "" {
		var narrowed []Person
		for _, p := range same {
			if m.normalizer.School(p.School) == school {
				narrowed = append(narrowed, p)
			}
		}
		if len(narrowed) == 1 {
			return personResult(sourceKey, narrowed[0], MatchExactName, StrategyUniqueName, confidenceUniqueName)
		}
	}

	r := none(sourceKey)
	for _, p := range same {
		r.Ambiguous = append(r.Ambiguous, p.ID)
	}
	return r
}

func compositeKey(name, phone string) (string, bool) {
	digits := identity.NormalizePhone(phone)
	if name == "" || digits == "" {
		return "", false
	}
	return name + "|" + digits, true
}

func personResult(key string, p Person, t MatchType, s Strategy, conf float64) Result {
	return Result{
		SourceKey:  key,
		EntityID:   p.ID,
		EntityName: p.Name,
		Type:       t,
		Strategy:   s,
		Confidence: conf,
	}
}
