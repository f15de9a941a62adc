package execute

import (
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/plan"
)

// unit is a single store write attributed to the plan item it came from.
// Deferred MOVE source deletes are non-primary units of their item.
type unit struct {
	item    plan.Item
	seq     int
	primary bool
	write   docstore.Write
}

type chunk struct {
	units []unit
	size  int
	// split marks a chunk holding part of a group larger than one batch.
	split bool
	group string
}

func (c *chunk) writes() []docstore.Write {
	out := make([]docstore.Write, len(c.units))
	for i, u := range c.units {
		out[i] = u.write
	}
	return out
}

func (c *chunk) describe() []string {
	out := make([]string, 0, len(c.units))
	for _, u := range c.units {
		if u.primary {
			out = append(out, u.item.String())
		}
	}
	return out
}

// expand turns a group into units in execution order: every item's own
// writes in item order, then deferred source deletes.
func expand(group []plan.Item, seq int) ([]unit, int) {
	var units, deferred []unit
	for _, item := range group {
		writes, later := item.Writes()
		for i, w := range writes {
			units = append(units, unit{item: item, seq: seq, primary: i == 0, write: w})
		}
		for _, w := range later {
			deferred = append(deferred, unit{item: item, seq: seq, write: w})
		}
		seq++
	}
	return append(units, deferred...), seq
}

// pack fills chunks with whole groups up to size writes. A group larger than
// size is split across dedicated chunks in order.
func pack(groups [][]plan.Item, size int) []chunk {
	var (
		chunks []chunk
		cur    chunk
		seq    int
	)

	flush := func() {
		if len(cur.units) > 0 {
			chunks = append(chunks, cur)
		}
		cur = chunk{}
	}

	for _, g := range groups {
		var units []unit
		units, seq = expand(g, seq)
		if len(units) == 0 {
			continue
		}

		if len(units) > size {
			flush()
			id := g[0].GroupID
			for start := 0; start < len(units); start += size {
				end := min(start+size, len(units))
				chunks = append(chunks, chunk{
					units: units[start:end],
					size:  end - start,
					split: true,
					group: id,
				})
			}
			continue
		}

		if cur.size+len(units) > size {
			flush()
		}
		cur.units = append(cur.units, units...)
		cur.size += len(units)
	}
	flush()

	return chunks
}
