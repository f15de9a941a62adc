package sources_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JaimeStill/roster/internal/sources"
)

const consultationSheet = `순번,구분,학생명,학교,학년,학부모연락처,,,,,,상담일,,,상담제목,상담내용
1,신규,김철수,서울초,3,010-1234-5678,,,,,,2024-03-05,,,첫 상담,수학 진도 확인
2,재원,이영희,휘문고,고1,01098765432,,,,,,2024.03.06,,,"기말, 대비","내용 ""인용"""
,,,,,,,,,,,,,,,
3,재원,,휘문고,고1,,,,,,,2024/03/07,,,이름 없음,
4,재원,박민수,대치중,중2,,,,,,,다음주,,,날짜 오류,
5,재원,최지우,대치중,중2,,,,,,,45356,,,엑셀 날짜,
`

func TestDecode(t *testing.T) {
	text := "학생명,학교\n김철수,서울초\n"

	euckr, _, err := transform.String(korean.EUCKR.NewEncoder(), text)
	if err != nil {
		t.Fatal(err)
	}
	utf16le, _, err := transform.String(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder(), text)
	if err != nil {
		t.Fatal(err)
	}
	utf16be, _, err := transform.String(unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder(), text)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		input    []byte
		encoding string
	}{
		{"plain utf-8", []byte(text), sources.EncodingUTF8},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, text...), sources.EncodingUTF8BOM},
		{"utf-16 le", []byte(utf16le), sources.EncodingUTF16LE},
		{"utf-16 be", []byte(utf16be), sources.EncodingUTF16BE},
		{"euc-kr", []byte(euckr), sources.EncodingEUCKR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc, err := sources.Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if enc != tt.encoding {
				t.Errorf("encoding = %s, want %s", enc, tt.encoding)
			}
			if string(got) != text {
				t.Errorf("decoded = %q", got)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		wantErr bool
	}{
		{input: "2024-03-05"},
		{input: "2024.03.05"},
		{input: "2024/03/05"},
		{input: "20240305"},
		{input: "2024. 3. 5."},
		{input: "2024-03-05 14:30"},
		{input: "45356"},
		{input: "", wantErr: true},
		{input: "다음주", wantErr: true},
		{input: "2024-13-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := sources.ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}
}

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		letter string
		want   int
	}{
		{"A", 0}, {"c", 2}, {"P", 15}, {"Z", 25}, {"AA", 26}, {"AZ", 51},
	}
	for _, tt := range tests {
		got, err := sources.ColumnIndex(tt.letter)
		if err != nil || got != tt.want {
			t.Errorf("ColumnIndex(%q) = %d, %v; want %d", tt.letter, got, err, tt.want)
		}
	}

	if _, err := sources.ColumnIndex("A1"); err == nil {
		t.Error("ColumnIndex(A1) should fail")
	}
}

func TestParseConsultationLayout(t *testing.T) {
	p, err := sources.Parse([]byte(consultationSheet), sources.ConsultationLayout)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(p.Rows) != 3 {
		t.Fatalf("rows = %d, want 3: %+v", len(p.Rows), p.Rows)
	}
	if len(p.Errors) != 2 {
		t.Fatalf("errors = %+v", p.Errors)
	}

	first := p.Rows[0]
	if first.Line != 2 || first.Seq != "1" || first.Name != "김철수" || first.School != "서울초" ||
		first.Grade != "3" || first.Phone != "010-1234-5678" || first.Title != "첫 상담" || first.Notes != "수학 진도 확인" {
		t.Errorf("first row = %+v", first)
	}

	second := p.Rows[1]
	if second.Title != "기말, 대비" || second.Notes != `내용 "인용"` {
		t.Errorf("quoted cells = %q %q", second.Title, second.Notes)
	}

	serial := p.Rows[2]
	if serial.Date.Format("2006-01-02") != "2024-03-05" {
		t.Errorf("serial date = %v", serial.Date)
	}

	if p.Errors[0].Line != 5 || !strings.Contains(p.Errors[0].Reason, "missing name") {
		t.Errorf("error 0 = %+v", p.Errors[0])
	}
	if p.Errors[1].Line != 6 || !strings.Contains(p.Errors[1].Reason, "unrecognized date") {
		t.Errorf("error 1 = %+v", p.Errors[1])
	}
}

func TestParseEmptySheet(t *testing.T) {
	_, err := sources.Parse([]byte("순번,학생명\n,\n"), sources.ConsultationLayout)
	if !errors.Is(err, sources.ErrEmptySheet) {
		t.Errorf("err = %v, want ErrEmptySheet", err)
	}
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name   string
		layout sources.Layout
		ok     bool
	}{
		{"consultation", sources.ConsultationLayout, true},
		{"enrollment", sources.EnrollmentLayout, true},
		{"no columns", sources.Layout{Name: "x"}, false},
		{"bad column", sources.Layout{Name: "x", Columns: map[string]sources.Field{"1": sources.FieldName}}, false},
		{"unknown field", sources.Layout{Name: "x", Columns: map[string]sources.Field{"A": "nickname"}}, false},
		{
			"duplicate field",
			sources.Layout{Name: "x", Columns: map[string]sources.Field{"A": sources.FieldName, "B": sources.FieldName}},
			false,
		},
		{
			"required without column",
			sources.Layout{Name: "x", Columns: map[string]sources.Field{"A": sources.FieldName}, Required: []sources.Field{sources.FieldDate}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok = %v", err, tt.ok)
			}
		})
	}
}

func TestLayoutsLookup(t *testing.T) {
	ls := sources.DefaultLayouts()

	l, err := ls.Lookup("", sources.KindEnrollments)
	if err != nil || l.Name != "enrollments" {
		t.Errorf("Lookup by kind = %+v, %v", l, err)
	}
	if _, err := ls.Lookup("legacy", sources.KindConsultations); !errors.Is(err, sources.ErrUnknownLayout) {
		t.Errorf("err = %v", err)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sources.ErrNotFound, http.StatusNotFound},
		{sources.ErrDuplicate, http.StatusConflict},
		{sources.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{sources.ErrTooManyRows, http.StatusRequestEntityTooLarge},
		{sources.ErrInvalidKind, http.StatusBadRequest},
		{sources.ErrEmptySheet, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := sources.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
