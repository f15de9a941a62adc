// Package mappings implements the manual override table: operator-entered
// source key to canonical id pairs consulted by the matcher before any
// automatic strategy.
package mappings

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/identity"
	"github.com/JaimeStill/roster/internal/matching"
)

// Kind is the entity pool a mapping resolves into.
type Kind string

const (
	KindClass   Kind = "class"
	KindStudent Kind = "student"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindClass, KindStudent:
		return k, nil
	}
	return "", ErrInvalidKind
}

// Mapping pins a source key to a target id.
type Mapping struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	SourceKey string    `json:"source_key"`
	TargetID  string    `json:"target_id"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to create a mapping.
type CreateCommand struct {
	Kind      Kind    `json:"kind"`
	SourceKey string  `json:"source_key"`
	TargetID  string  `json:"target_id"`
	Note      *string `json:"note"`
}

// UpdateCommand carries the data needed to update a mapping.
type UpdateCommand struct {
	SourceKey string  `json:"source_key"`
	TargetID  string  `json:"target_id"`
	Note      *string `json:"note"`
}

// Overrides folds mappings of one kind into the matcher's lookup table.
// Student source keys are rewritten into semantic key form first, since the
// matcher looks students up by name_school_grade. Later entries win when two
// source keys normalize alike.
func Overrides(ms []Mapping) matching.Overrides {
	out := make(matching.Overrides, len(ms))
	for _, m := range ms {
		if k := matching.NameKey(m.lookupKey()); k != "" {
			out[k] = m.TargetID
		}
	}
	return out
}

func (m Mapping) lookupKey() string {
	if m.Kind != KindStudent {
		return m.SourceKey
	}
	key, _ := identity.NormalizeSemanticKey(strings.TrimSpace(m.SourceKey))
	return key
}

func validate(kind Kind, sourceKey, targetID string) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if strings.TrimSpace(sourceKey) == "" || strings.TrimSpace(targetID) == "" {
		return ErrInvalidMapping
	}
	return nil
}
