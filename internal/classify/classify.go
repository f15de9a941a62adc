// Package classify labels stored documents by id shape and decides, per
// document, whether it is canonical, a duplicate of a canonical record, a
// rename candidate, or only worth flagging.
package classify

import (
	"sort"

	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/identity"
)

// Action is the decision taken for a classified document.
type Action string

const (
	ActionKeep     Action = "KEEP"
	ActionDelete   Action = "DELETE"
	ActionRename   Action = "RENAME"
	ActionFlag     Action = "FLAG"
	ActionConflict Action = "CONFLICT"
)

// Fields names the document fields that make up a semantic key.
type Fields struct {
	Name   string `json:"name"`
	School string `json:"school"`
	Grade  string `json:"grade"`
}

// DefaultFields is the student field layout.
var DefaultFields = Fields{Name: "name", School: "school", Grade: "grade"}

// Options configures Classify.
type Options struct {
	Normalizer *identity.Normalizer
	Fields     Fields
}

// Classification is the per-document outcome.
type Classification struct {
	ID                    string           `json:"id"`
	Shape                 identity.IDShape `json:"shape"`
	SemanticKey           string           `json:"semantic_key,omitempty"`
	HasCanonicalCollision bool             `json:"has_canonical_collision"`
	Action                Action           `json:"action"`
	// Target is the canonical id a duplicate collides with, or the new id of
	// a rename.
	Target string `json:"target,omitempty"`
}

// Conflict records a rename that lost to an earlier rename with the same
// target.
type Conflict struct {
	ID     string `json:"id"`
	Target string `json:"target"`
	Winner string `json:"winner"`
}

// Report is the result of classifying one collection.
type Report struct {
	Items     []Classification         `json:"items"`
	Conflicts []Conflict               `json:"conflicts"`
	Shapes    map[identity.IDShape]int `json:"shapes"`
}

// Filter returns the classifications with the given action.
func (r Report) Filter(action Action) []Classification {
	var out []Classification
	for _, c := range r.Items {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// Classify buckets every document by id shape, builds the canonical key set
// from VALID documents (raw id plus recomputed semantic key), then resolves
// NUMERIC_LEGACY and WHITESPACE_FIXABLE documents against it. Documents are
// processed in id order so rename conflicts resolve deterministically.
func Classify(docs []docstore.Document, opts Options) Report {
	if opts.Normalizer == nil {
		opts.Normalizer = identity.NewNormalizer(nil)
	}
	if opts.Fields == (Fields{}) {
		opts.Fields = DefaultFields
	}

	sorted := make([]docstore.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	report := Report{
		Items:  make([]Classification, 0, len(sorted)),
		Shapes: make(map[identity.IDShape]int),
	}

	shapes := make([]identity.IDShape, len(sorted))
	canonical := make(map[string]string)
	for i, d := range sorted {
		shapes[i] = identity.ClassifyDocumentID(d.ID)
		report.Shapes[shapes[i]]++

		if shapes[i] != identity.ShapeValid {
			continue
		}
		if _, ok := canonical[d.ID]; !ok {
			canonical[d.ID] = d.ID
		}
		if key := semanticKey(d, opts); key != "" {
			if _, ok := canonical[key]; !ok {
				canonical[key] = d.ID
			}
		}
	}

	renames := make(map[string]string)

	for i, d := range sorted {
		c := Classification{
			ID:          d.ID,
			Shape:       shapes[i],
			SemanticKey: semanticKey(d, opts),
		}

		switch c.Shape {
		case identity.ShapeValid:
			c.Action = ActionKeep
		case identity.ShapeRandomInvalid:
			c.Action = ActionFlag
		case identity.ShapeNumericLegacy, identity.ShapeWhitespaceFixable:
			resolve(&c, canonical, renames, &report)
		}

		report.Items = append(report.Items, c)
	}

	return report
}

func resolve(c *Classification, canonical, renames map[string]string, report *Report) {
	probes := []string{c.SemanticKey}
	if c.Shape == identity.ShapeWhitespaceFixable {
		probes = append(probes, identity.FixWhitespace(c.ID))
	}

	for _, key := range probes {
		if key == "" || key == c.ID {
			continue
		}
		if owner, ok := canonical[key]; ok {
			c.HasCanonicalCollision = true
			c.Action = ActionDelete
			c.Target = owner
			return
		}
	}

	if c.Shape == identity.ShapeNumericLegacy {
		c.Action = ActionFlag
		return
	}

	target := renameTarget(c)
	if target == c.ID {
		c.Action = ActionKeep
		return
	}

	if winner, taken := renames[target]; taken {
		c.Action = ActionConflict
		c.Target = target
		report.Conflicts = append(report.Conflicts, Conflict{ID: c.ID, Target: target, Winner: winner})
		return
	}

	renames[target] = c.ID
	c.Action = ActionRename
	c.Target = target
}

// renameTarget prefers the semantic key recomputed from fields when it is a
// valid id, and falls back to the whitespace-repaired id.
func renameTarget(c *Classification) string {
	if c.SemanticKey != "" && identity.ClassifyDocumentID(c.SemanticKey) == identity.ShapeValid {
		return c.SemanticKey
	}
	return identity.FixWhitespace(c.ID)
}

func semanticKey(d docstore.Document, opts Options) string {
	name := d.String(opts.Fields.Name)
	if identity.NormalizeName(name) == "" {
		return ""
	}
	return opts.Normalizer.SemanticKey(name, d.String(opts.Fields.School), d.String(opts.Fields.Grade))
}
