// Package sources implements the uploaded spreadsheet domain: blob-backed
// CSV exports registered in the sources table and parsed into typed rows
// through a column layout.
package sources

import (
	"time"

	"github.com/google/uuid"
)

// Kind names what a source's rows describe.
type Kind string

const (
	KindConsultations Kind = "consultations"
	KindEnrollments   Kind = "enrollments"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindConsultations || k == KindEnrollments
}

// Source is a registered upload and its blob storage reference.
type Source struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	Encoding    string    `json:"encoding"`
	RowCount    int       `json:"row_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// CreateCommand carries the raw upload. Data is decoded once at upload to
// record its encoding and row count and to reject unreadable files early.
// MaxRows of zero leaves the row count unbounded.
type CreateCommand struct {
	Data        []byte
	Filename    string
	ContentType string
	Kind        Kind
	MaxRows     int
}

// UploadLimits bounds a single upload. DefaultKind applies when the form
// omits kind; empty means kind is required.
type UploadLimits struct {
	MaxBytes    int64
	MaxRows     int
	DefaultKind Kind
}
