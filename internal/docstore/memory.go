package docstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store. Documents are held as canonical JSON values
// so reads never alias caller memory. Commit failures can be injected by
// commit sequence number.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]map[string]map[string]any
	commits int
	failAt  map[int]error
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]map[string]map[string]any),
		failAt: make(map[int]error),
	}
}

// Seed inserts documents directly, bypassing commit accounting.
func (m *Memory) Seed(docs ...Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range docs {
		fields, err := cloneFields(d.Fields)
		if err != nil {
			return fmt.Errorf("seed %s: %w", d.Ref, err)
		}
		m.collection(d.Collection)[d.ID] = fields
	}
	return nil
}

// FailCommit makes the nth call to Commit (1-based) return err without
// applying any of its writes.
func (m *Memory) FailCommit(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt[n] = err
}

// Commits returns how many times Commit has been called.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection])
}

func (m *Memory) Scan(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs[collection]))
	for id, fields := range m.docs[collection] {
		clone, err := cloneFields(fields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			Ref:    Ref{Collection: collection, ID: id},
			Fields: clone,
		})
	}

	sortDocuments(docs)
	return docs, nil
}

func (m *Memory) Get(ctx context.Context, ref Ref) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return nil, ErrNotFound
	}

	clone, err := cloneFields(fields)
	if err != nil {
		return nil, err
	}
	return &Document{Ref: ref, Fields: clone}, nil
}

func (m *Memory) Commit(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.commits++
	if err, ok := m.failAt[m.commits]; ok {
		return err
	}

	// Stage against copies so a malformed write leaves the store untouched.
	staged := make(map[Ref]map[string]any)
	deleted := make(map[Ref]bool)

	current := func(ref Ref) (map[string]any, bool) {
		if deleted[ref] {
			return nil, false
		}
		if f, ok := staged[ref]; ok {
			return f, true
		}
		f, ok := m.docs[ref.Collection][ref.ID]
		if !ok {
			return nil, false
		}
		clone, _ := cloneFields(f)
		return clone, true
	}

	for _, w := range writes {
		switch w.Op {
		case OpSet:
			fields, err := cloneFields(w.Fields)
			if err != nil {
				return fmt.Errorf("set %s: %w", w.Ref, err)
			}
			staged[w.Ref] = fields
			delete(deleted, w.Ref)
		case OpMerge:
			fields, ok := current(w.Ref)
			if !ok {
				if w.removesOnly() {
					continue
				}
				fields = map[string]any{}
			}
			patch, err := cloneFields(w.Fields)
			if err != nil {
				return fmt.Errorf("merge %s: %w", w.Ref, err)
			}
			for k, v := range patch {
				fields[k] = v
			}
			for field, elems := range w.ArrayRemove {
				if v, ok := fields[field]; ok {
					fields[field] = removeElements(v, elems)
				}
			}
			staged[w.Ref] = fields
			delete(deleted, w.Ref)
		case OpDelete:
			delete(staged, w.Ref)
			deleted[w.Ref] = true
		default:
			return fmt.Errorf("unknown write op %q for %s", w.Op, w.Ref)
		}
	}

	for ref := range deleted {
		delete(m.docs[ref.Collection], ref.ID)
	}
	for ref, fields := range staged {
		m.collection(ref.Collection)[ref.ID] = fields
	}
	return nil
}

func (m *Memory) collection(name string) map[string]map[string]any {
	c, ok := m.docs[name]
	if !ok {
		c = make(map[string]map[string]any)
		m.docs[name] = c
	}
	return c
}

func removeElements(field any, elems []any) any {
	arr, ok := field.([]any)
	if !ok {
		return field
	}

	kept := make([]any, 0, len(arr))
	for _, item := range arr {
		drop := false
		for _, e := range elems {
			if Equal(item, e) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, item)
		}
	}
	return kept
}
