package sources

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/JaimeStill/roster/internal/identity"
)

// Field is a typed row attribute a spreadsheet column can map to.
type Field string

const (
	FieldSeq       Field = "seq"
	FieldName      Field = "name"
	FieldSchool    Field = "school"
	FieldGrade     Field = "grade"
	FieldPhone     Field = "phone"
	FieldDate      Field = "date"
	FieldTitle     Field = "title"
	FieldNotes     Field = "notes"
	FieldClass     Field = "class"
	FieldClassID   Field = "class_id"
	FieldStudentID Field = "student_id"
)

var knownFields = map[Field]bool{
	FieldSeq: true, FieldName: true, FieldSchool: true, FieldGrade: true,
	FieldPhone: true, FieldDate: true, FieldTitle: true, FieldNotes: true,
	FieldClass: true, FieldClassID: true, FieldStudentID: true,
}

// Layout maps spreadsheet column letters to fields.
type Layout struct {
	Name       string           `json:"name"`
	HeaderRows int              `json:"header_rows"`
	Columns    map[string]Field `json:"columns"`
	Required   []Field          `json:"required"`
}

// ConsultationLayout is the consultation export: A seq, C student name,
// D school, E grade, F parent phone, L date, O title, P notes.
var ConsultationLayout = Layout{
	Name:       string(KindConsultations),
	HeaderRows: 1,
	Columns: map[string]Field{
		"A": FieldSeq,
		"C": FieldName,
		"D": FieldSchool,
		"E": FieldGrade,
		"F": FieldPhone,
		"L": FieldDate,
		"O": FieldTitle,
		"P": FieldNotes,
	},
	Required: []Field{FieldName, FieldDate},
}

// EnrollmentLayout is the class roster export.
var EnrollmentLayout = Layout{
	Name:       string(KindEnrollments),
	HeaderRows: 1,
	Columns: map[string]Field{
		"A": FieldSeq,
		"B": FieldName,
		"C": FieldSchool,
		"D": FieldGrade,
		"E": FieldPhone,
		"F": FieldClass,
		"G": FieldDate,
	},
	Required: []Field{FieldName, FieldClass},
}

// Row is one parsed spreadsheet record. Line is the 1-based line in the
// sheet, header rows included.
type Row struct {
	Line      int       `json:"line"`
	Seq       string    `json:"seq,omitempty"`
	Name      string    `json:"name"`
	School    string    `json:"school,omitempty"`
	Grade     string    `json:"grade,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Date      time.Time `json:"date,omitzero"`
	Title     string    `json:"title,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Class     string    `json:"class,omitempty"`
	ClassID   string    `json:"class_id,omitempty"`
	StudentID string    `json:"student_id,omitempty"`
}

// RowError is a row that could not be turned into a Row.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Parsed is the outcome of reading one sheet through a layout.
type Parsed struct {
	Layout   string     `json:"layout"`
	Encoding string     `json:"encoding"`
	Rows     []Row      `json:"rows"`
	Errors   []RowError `json:"errors"`
}

// ColumnIndex converts a spreadsheet column letter (A, Z, AA) to a 0-based index.
func ColumnIndex(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, fmt.Errorf("empty column")
	}
	n := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column %q", letter)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// Validate checks every column letter and field name.
func (l Layout) Validate() error {
	if len(l.Columns) == 0 {
		return fmt.Errorf("layout %s: no columns", l.Name)
	}
	seen := make(map[Field]string)
	for col, f := range l.Columns {
		if _, err := ColumnIndex(col); err != nil {
			return fmt.Errorf("layout %s: %w", l.Name, err)
		}
		if !knownFields[f] {
			return fmt.Errorf("layout %s: unknown field %q", l.Name, f)
		}
		if other, dup := seen[f]; dup {
			return fmt.Errorf("layout %s: field %s mapped by %s and %s", l.Name, f, other, col)
		}
		seen[f] = col
	}
	for _, f := range l.Required {
		if _, ok := seen[f]; !ok {
			return fmt.Errorf("layout %s: required field %s has no column", l.Name, f)
		}
	}
	return nil
}

type binding struct {
	index int
	field Field
}

func (l Layout) bindings() []binding {
	out := make([]binding, 0, len(l.Columns))
	for col, f := range l.Columns {
		i, _ := ColumnIndex(col)
		out = append(out, binding{index: i, field: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// Parse decodes data and reads every record after the header rows. Blank
// records are skipped silently; records missing a required field or holding
// an unparseable date become row errors. Text cells are NFC-composed and
// whitespace-collapsed.
func Parse(data []byte, l Layout) (*Parsed, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	decoded, enc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	p := &Parsed{
		Layout:   l.Name,
		Encoding: enc,
		Rows:     make([]Row, 0),
		Errors:   make([]RowError, 0),
	}
	cols := l.bindings()

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if line <= l.HeaderRows {
			continue
		}
		if err != nil {
			p.Errors = append(p.Errors, RowError{Line: line, Reason: fmt.Sprintf("malformed record: %v", err)})
			continue
		}
		if blank(record) {
			continue
		}

		row, reason := l.row(line, record, cols)
		if reason != "" {
			p.Errors = append(p.Errors, RowError{Line: line, Reason: reason})
			continue
		}
		p.Rows = append(p.Rows, row)
	}

	if len(p.Rows) == 0 && len(p.Errors) == 0 {
		return nil, ErrEmptySheet
	}
	return p, nil
}

func (l Layout) row(line int, record []string, cols []binding) (Row, string) {
	r := Row{Line: line}
	values := make(map[Field]string, len(cols))

	for _, c := range cols {
		if c.index < len(record) {
			values[c.field] = identity.Clean(record[c.index])
		}
	}

	for _, f := range l.Required {
		if values[f] == "" {
			return r, fmt.Sprintf("missing %s", f)
		}
	}

	if raw := values[FieldDate]; raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return r, err.Error()
		}
		r.Date = d
	}

	r.Seq = values[FieldSeq]
	r.Name = values[FieldName]
	r.School = values[FieldSchool]
	r.Grade = values[FieldGrade]
	r.Phone = values[FieldPhone]
	r.Title = values[FieldTitle]
	r.Notes = values[FieldNotes]
	r.Class = values[FieldClass]
	r.ClassID = values[FieldClassID]
	r.StudentID = values[FieldStudentID]
	return r, ""
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Count returns the number of non-blank records after the header rows
// without applying a layout.
func Count(data []byte, headerRows int) (int, string, error) {
	decoded, enc, err := Decode(data)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	n := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, "", fmt.Errorf("%w: line %d: %v", ErrInvalidFile, line, err)
		}
		if line > headerRows && !blank(record) {
			n++
		}
	}
	return n, enc, nil
}

// Layouts is a set of layouts addressed by name.
type Layouts map[string]Layout

// DefaultLayouts returns the built-in consultation and enrollment layouts.
func DefaultLayouts() Layouts {
	return Layouts{
		ConsultationLayout.Name: ConsultationLayout,
		EnrollmentLayout.Name:   EnrollmentLayout,
	}
}

// Lookup returns the named layout. An empty name selects the layout named
// after kind.
func (ls Layouts) Lookup(name string, kind Kind) (Layout, error) {
	if name == "" {
		name = string(kind)
	}
	l, ok := ls[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
	}
	return l, nil
}
