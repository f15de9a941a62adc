// Package plan turns classification and matching output into an ordered,
// inspectable list of document operations. Nothing here performs I/O; a Plan
// is pure data that can be previewed before any write happens.
package plan

import (
	"fmt"

	"github.com/JaimeStill/roster/internal/docstore"
)

// Operation is the kind of a plan item.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpMerge  Operation = "MERGE"
	OpMove   Operation = "MOVE"
	OpDelete Operation = "DELETE"
)

// Item is one proposed mutation. Items sharing a GroupID form one logical
// rewrite and are executed in order, kept in the same atomic batch whenever
// the group fits.
type Item struct {
	GroupID    string         `json:"group_id"`
	Operation  Operation      `json:"operation"`
	Collection string         `json:"target_collection"`
	TargetID   string         `json:"target_id"`
	SourceID   string         `json:"source_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	// ArrayRemove removes exact elements from array fields of the target.
	// Only used with MERGE.
	ArrayRemove map[string][]any `json:"array_remove,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// Target returns the document the item writes.
func (i Item) Target() docstore.Ref {
	return docstore.Ref{Collection: i.Collection, ID: i.TargetID}
}

// Source returns the document a MOVE removes.
func (i Item) Source() docstore.Ref {
	return docstore.Ref{Collection: i.Collection, ID: i.SourceID}
}

func (i Item) String() string {
	if i.Operation == OpMove {
		return fmt.Sprintf("%s %s/%s -> %s", i.Operation, i.Collection, i.SourceID, i.TargetID)
	}
	return fmt.Sprintf("%s %s/%s", i.Operation, i.Collection, i.TargetID)
}

// Writes expands the item into store writes. A MOVE yields the target merge
// and returns the source delete separately so the executor can defer it to
// the end of the item's group.
func (i Item) Writes() (writes []docstore.Write, deferred []docstore.Write) {
	switch i.Operation {
	case OpCreate:
		return []docstore.Write{{Op: docstore.OpSet, Ref: i.Target(), Fields: i.Payload}}, nil
	case OpMerge:
		return []docstore.Write{{
			Op:          docstore.OpMerge,
			Ref:         i.Target(),
			Fields:      i.Payload,
			ArrayRemove: i.ArrayRemove,
		}}, nil
	case OpMove:
		return []docstore.Write{{Op: docstore.OpMerge, Ref: i.Target(), Fields: i.Payload}},
			[]docstore.Write{{Op: docstore.OpDelete, Ref: i.Source()}}
	case OpDelete:
		return []docstore.Write{{Op: docstore.OpDelete, Ref: i.Target()}}, nil
	}
	return nil, nil
}

// WriteCount is the number of store writes the item expands to.
func (i Item) WriteCount() int {
	w, d := i.Writes()
	return len(w) + len(d)
}

// Conflict is a rewrite excluded from the executable plan.
type Conflict struct {
	Operation  Operation `json:"operation"`
	Collection string    `json:"collection"`
	SourceID   string    `json:"source_id,omitempty"`
	TargetID   string    `json:"target_id"`
	Reason     string    `json:"reason"`
}

// Plan is the executable item list plus everything excluded from it.
type Plan struct {
	Items     []Item     `json:"items"`
	Conflicts []Conflict `json:"conflicts"`
	Groups    int        `json:"groups"`
}

// Empty reports whether the plan has nothing to execute.
func (p Plan) Empty() bool {
	return len(p.Items) == 0
}

// Count returns the number of items per operation.
func (p Plan) Count() map[Operation]int {
	counts := make(map[Operation]int)
	for _, i := range p.Items {
		counts[i.Operation]++
	}
	return counts
}

// Grouped returns the items split into their groups, preserving order.
func (p Plan) Grouped() [][]Item {
	var (
		groups [][]Item
		index  = make(map[string]int)
	)
	for _, item := range p.Items {
		n, ok := index[item.GroupID]
		if !ok {
			n = len(groups)
			index[item.GroupID] = n
			groups = append(groups, nil)
		}
		groups[n] = append(groups[n], item)
	}
	return groups
}
