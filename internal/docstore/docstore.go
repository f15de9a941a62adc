// Package docstore models a generic document store: named collections of
// JSON documents, sub-collections addressed by path, and atomic batched
// writes over a bounded set of documents. It ships a PostgreSQL JSONB
// implementation and an in-memory implementation.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound indicates the referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// Ref addresses a single document.
type Ref struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Path returns collection/id.
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// Sub returns the collection name of the named sub-collection under r,
// e.g. students/김철수_서울초_3/enrollments.
func (r Ref) Sub(name string) string {
	return r.Path() + "/" + name
}

func (r Ref) String() string {
	return r.Path()
}

// Document is a stored document with its top-level fields.
type Document struct {
	Ref
	Fields map[string]any `json:"fields"`
}

// String returns a field rendered as a string. Numbers are formatted without
// exponent; missing and null fields yield "".
func (d Document) String(field string) string {
	return FieldString(d.Fields, field)
}

// Array returns an array-valued field, or nil when absent or not an array.
func (d Document) Array(field string) []any {
	v, ok := d.Fields[field].([]any)
	if !ok {
		return nil
	}
	return v
}

// FieldString renders fields[field] as a string.
func FieldString(fields map[string]any, field string) string {
	switch v := fields[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Op is the kind of a single write.
type Op string

const (
	// OpSet creates the document or replaces all of its fields.
	OpSet Op = "set"
	// OpMerge creates the document or merges top-level fields into it;
	// fields not named in the write survive. A merge carrying only
	// ArrayRemove never creates the document.
	OpMerge Op = "merge"
	// OpDelete removes the document. Deleting a missing document is a no-op.
	OpDelete Op = "delete"
)

// Write is one mutation inside an atomic commit.
type Write struct {
	Op     Op             `json:"op"`
	Ref    Ref            `json:"ref"`
	Fields map[string]any `json:"fields,omitempty"`
	// ArrayRemove removes every element deep-equal to the given values from
	// the named array fields. Only honored on OpMerge.
	ArrayRemove map[string][]any `json:"array_remove,omitempty"`
}

// removesOnly reports a merge that only pulls array elements. Such a merge
// updates an existing document and never creates one; absent fields stay
// absent.
func (w Write) removesOnly() bool {
	return w.Op == OpMerge && len(w.Fields) == 0 && len(w.ArrayRemove) > 0
}

// Store is the document store contract used by the reconciliation pipeline.
type Store interface {
	// Scan returns every document in the collection ordered by id.
	Scan(ctx context.Context, collection string) ([]Document, error)
	// Get returns one document or ErrNotFound.
	Get(ctx context.Context, ref Ref) (*Document, error)
	// Commit applies all writes atomically: every write applies or none do.
	Commit(ctx context.Context, writes []Write) error
}

// Canonical returns v re-decoded from its JSON encoding, so values built in
// Go compare equal to values read back from storage.
func Canonical(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Equal reports deep equality of two values after canonicalization.
func Equal(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	// encoding/json sorts map keys, so equal values marshal identically.
	return bytes.Equal(ja, jb)
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeFields(data []byte) (map[string]any, error) {
	v, err := decode(data)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document fields are not an object")
	}
	return fields, nil
}

func cloneFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return decodeFields(data)
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		return strings.Compare(docs[i].ID, docs[j].ID) < 0
	})
}
