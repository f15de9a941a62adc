package plan

import (
	"fmt"

	"github.com/JaimeStill/roster/internal/classify"
	"github.com/JaimeStill/roster/internal/docstore"
)

// Snapshot is the read-only state a cleanup plan is computed against.
type Snapshot struct {
	Collection string
	Documents  map[string]docstore.Document
	// Children are owned sub-records keyed by parent id.
	Children map[string][]docstore.Document
	// References are external documents holding a parent id, keyed by that id.
	References map[string][]docstore.Document
}

// Cleanup plans deletes for collision duplicates and moves for renames.
// Classifier rename conflicts are carried into the plan's conflict list.
// FLAG and KEEP classifications produce no items.
func Cleanup(report classify.Report, snap Snapshot, opts Options) Plan {
	b := NewBuilder(opts)

	for _, c := range report.Conflicts {
		b.Conflict(Conflict{
			Operation:  OpMove,
			Collection: snap.Collection,
			SourceID:   c.ID,
			TargetID:   c.Target,
			Reason:     fmt.Sprintf("rename target already claimed by %s", c.Winner),
		})
	}

	for _, c := range report.Items {
		switch c.Action {
		case classify.ActionDelete:
			ref := docstore.Ref{Collection: snap.Collection, ID: c.ID}
			b.Delete(ref, snap.Children[c.ID], snap.References[c.ID], c.Target,
				fmt.Sprintf("%s duplicate of %s", c.Shape, c.Target))
		case classify.ActionRename:
			doc, ok := snap.Documents[c.ID]
			if !ok {
				doc = docstore.Document{Ref: docstore.Ref{Collection: snap.Collection, ID: c.ID}}
			}
			b.Move(doc, c.Target, snap.Children[c.ID], snap.References[c.ID], fmt.Sprintf("%s rename", c.Shape))
		}
	}

	return b.Build()
}
