package plan

import (
	"fmt"
	"maps"

	"github.com/JaimeStill/roster/internal/docstore"
)

// Options names the collections and fields the builder touches.
type Options struct {
	// Children is the owned sub-collection name under a parent document.
	Children string
	// References is the collection holding denormalized parent ids.
	References string
	// ReferenceField is the field in References that stores the parent id.
	ReferenceField string
	// AuditField records the prior parent id on re-pointed references.
	AuditField string
}

// DefaultOptions matches the student/enrollment/consultation layout.
var DefaultOptions = Options{
	Children:       "enrollments",
	References:     "consultations",
	ReferenceField: "studentId",
	AuditField:     "previousStudentId",
}

// Builder accumulates groups of items and rejects groups that conflict with
// earlier ones. Builders are not safe for concurrent use.
type Builder struct {
	opts      Options
	items     []Item
	conflicts []Conflict
	groups    int
	targets   map[docstore.Ref]string
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts Options) *Builder {
	if opts.Children == "" {
		opts = DefaultOptions
	}
	return &Builder{
		opts:    opts,
		targets: make(map[docstore.Ref]string),
	}
}

// Build returns the accumulated plan.
func (b *Builder) Build() Plan {
	return Plan{
		Items:     b.items,
		Conflicts: b.conflicts,
		Groups:    b.groups,
	}
}

// Conflict records an exclusion decided by the caller.
func (b *Builder) Conflict(c Conflict) {
	b.conflicts = append(b.conflicts, c)
}

// Delete plans removal of a parent and every owned child. When replacement
// is set, every external reference is re-pointed to it first, so no
// reference is left naming a deleted parent. Children are deleted before the
// parent inside one group, so the plan always holds exactly len(children)
// child deletes followed by one parent delete.
func (b *Builder) Delete(parent docstore.Ref, children, references []docstore.Document, replacement, reason string) {
	g := b.group()
	childCollection := parent.Sub(b.opts.Children)

	if replacement != "" {
		b.repoint(g, references, parent.ID, replacement)
	}

	for _, c := range children {
		b.add(Item{
			GroupID:    g,
			Operation:  OpDelete,
			Collection: childCollection,
			TargetID:   c.ID,
			Reason:     "cascade: " + reason,
		})
	}
	b.add(Item{
		GroupID:    g,
		Operation:  OpDelete,
		Collection: parent.Collection,
		TargetID:   parent.ID,
		Reason:     reason,
	})
}

// repoint plans one audit-stamped MERGE per reference, moving it from
// oldID to newID.
func (b *Builder) repoint(g string, references []docstore.Document, oldID, newID string) {
	for _, r := range references {
		b.add(Item{
			GroupID:    g,
			Operation:  OpMerge,
			Collection: r.Collection,
			TargetID:   r.ID,
			Payload: map[string]any{
				b.opts.ReferenceField: newID,
				b.opts.AuditField:     oldID,
			},
			Reason: fmt.Sprintf("re-point %s from %s", b.opts.ReferenceField, oldID),
		})
	}
}

// Move plans an id rename: merge the source fields into the target, copy
// every child to the target, re-point external references, delete source
// children, then delete the source. The source parent delete is carried by
// the MOVE item and executed last in the group. A pre-existing target keeps
// fields the source does not set.
func (b *Builder) Move(source docstore.Document, targetID string, children, references []docstore.Document, reason string) bool {
	target := docstore.Ref{Collection: source.Collection, ID: targetID}

	if source.ID == targetID {
		b.Conflict(Conflict{
			Operation:  OpMove,
			Collection: source.Collection,
			SourceID:   source.ID,
			TargetID:   targetID,
			Reason:     "source equals target",
		})
		return false
	}
	if !b.claim(target, source.ID, OpMove) {
		return false
	}

	g := b.group()
	b.add(Item{
		GroupID:    g,
		Operation:  OpMove,
		Collection: source.Collection,
		TargetID:   targetID,
		SourceID:   source.ID,
		Payload:    maps.Clone(source.Fields),
		Reason:     reason,
	})

	sourceChildren := source.Sub(b.opts.Children)
	targetChildren := target.Sub(b.opts.Children)

	for _, c := range children {
		b.add(Item{
			GroupID:    g,
			Operation:  OpCreate,
			Collection: targetChildren,
			TargetID:   c.ID,
			Payload:    maps.Clone(c.Fields),
			Reason:     fmt.Sprintf("copy child from %s", source.ID),
		})
	}

	b.repoint(g, references, source.ID, targetID)

	for _, c := range children {
		b.add(Item{
			GroupID:    g,
			Operation:  OpDelete,
			Collection: sourceChildren,
			TargetID:   c.ID,
			Reason:     fmt.Sprintf("child moved to %s", targetID),
		})
	}
	return true
}

// Promote plans the migration of one legacy array element to an owned
// sub-record: create the child, then remove that exact element from the
// parent array. Removal is by deep equality, never by index.
func (b *Builder) Promote(parent docstore.Ref, field string, element any, childID string, payload map[string]any) bool {
	child := docstore.Ref{Collection: parent.Sub(b.opts.Children), ID: childID}
	if !b.claim(child, parent.ID, OpCreate) {
		return false
	}

	g := b.group()
	b.add(Item{
		GroupID:    g,
		Operation:  OpCreate,
		Collection: child.Collection,
		TargetID:   childID,
		Payload:    payload,
		Reason:     fmt.Sprintf("promote %s element", field),
	})
	b.add(Item{
		GroupID:     g,
		Operation:   OpMerge,
		Collection:  parent.Collection,
		TargetID:    parent.ID,
		ArrayRemove: map[string][]any{field: {element}},
		Reason:      fmt.Sprintf("remove promoted %s element", field),
	})
	return true
}

// Create plans a standalone document creation. A second create of the same
// document in one plan is reported as a conflict.
func (b *Builder) Create(ref docstore.Ref, payload map[string]any, reason string) bool {
	if !b.claim(ref, "", OpCreate) {
		return false
	}
	b.add(Item{
		GroupID:    b.group(),
		Operation:  OpCreate,
		Collection: ref.Collection,
		TargetID:   ref.ID,
		Payload:    payload,
		Reason:     reason,
	})
	return true
}

// Merge plans a standalone merge-update.
func (b *Builder) Merge(ref docstore.Ref, payload map[string]any, reason string) {
	b.add(Item{
		GroupID:    b.group(),
		Operation:  OpMerge,
		Collection: ref.Collection,
		TargetID:   ref.ID,
		Payload:    payload,
		Reason:     reason,
	})
}

// Group plans several items as one atomic unit. The callback receives a
// function that appends to the group.
func (b *Builder) Group(fn func(add func(Item))) {
	g := b.group()
	fn(func(i Item) {
		i.GroupID = g
		b.add(i)
	})
}

func (b *Builder) claim(target docstore.Ref, sourceID string, op Operation) bool {
	if owner, taken := b.targets[target]; taken {
		b.Conflict(Conflict{
			Operation:  op,
			Collection: target.Collection,
			SourceID:   sourceID,
			TargetID:   target.ID,
			Reason:     fmt.Sprintf("target already claimed by %s", owner),
		})
		return false
	}

	owner := sourceID
	if owner == "" {
		owner = "an earlier item"
	}
	b.targets[target] = owner
	return true
}

func (b *Builder) group() string {
	b.groups++
	return fmt.Sprintf("g%05d", b.groups)
}

func (b *Builder) add(i Item) {
	b.items = append(b.items, i)
}
