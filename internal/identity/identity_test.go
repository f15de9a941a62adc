package identity_test

import (
	"testing"

	"github.com/JaimeStill/roster/internal/identity"
)

func TestNormalizeSchool(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"서울초등학교", "서울초"},
		{"서울초", "서울초"},
		{" 대치 중학교 ", "대치중"},
		{"휘문고등학교", "휘문고"},
		{"휘문고", "휘문고"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := identity.NormalizeSchool(tt.raw); got != tt.want {
				t.Errorf("NormalizeSchool(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeSchoolLongAndShortFormsAgree(t *testing.T) {
	if identity.NormalizeSchool("서울초등학교") != identity.NormalizeSchool("서울초") {
		t.Error("long and short school forms should normalize identically")
	}
}

func TestSchoolIndexAbbreviation(t *testing.T) {
	idx := identity.BuildSchoolIndex([]string{
		"대치초", "대치초", "대치초", "치초", "서울초",
	})

	if got := idx.Resolve("치초"); got != "대치초" {
		t.Errorf("Resolve(치초) = %q, want 대치초", got)
	}
	if got := idx.Resolve("서울초등학교"); got != "서울초" {
		t.Errorf("Resolve(서울초등학교) = %q, want 서울초", got)
	}
}

func TestSchoolIndexPrefersMostFrequent(t *testing.T) {
	idx := identity.BuildSchoolIndex([]string{
		"대치초", "서울대치초", "서울대치초", "치초",
	})

	if got := idx.Resolve("치초"); got != "서울대치초" {
		t.Errorf("Resolve(치초) = %q, want 서울대치초", got)
	}
}

func TestSchoolIndexLeavesLongTokens(t *testing.T) {
	idx := identity.BuildSchoolIndex([]string{"대치초", "서울대치초"})

	if got := idx.Resolve("대치초"); got != "대치초" {
		t.Errorf("three-character tokens must not be rewritten, got %q", got)
	}
	if len(idx.Rewrites()) != 0 {
		t.Errorf("rewrites = %v, want none", idx.Rewrites())
	}
}

func TestNilSchoolIndex(t *testing.T) {
	var idx *identity.SchoolIndex
	if got := idx.Resolve("서울초등학교"); got != "서울초" {
		t.Errorf("nil index Resolve = %q, want 서울초", got)
	}
}

func TestNormalizeSemanticKey(t *testing.T) {
	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"김 철수_서울초등학교_3학년", "김철수_서울초_3", true},
		{"이영희_휘문고_고1", "이영희_휘문고_고1", true},
		{"박민수_대치중학교_2024학년도 중2", "박민수_대치중_중2", true},
		{"12345", "12345", false},
		{"a_b", "a_b", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := identity.NormalizeSemanticKey(tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeSemanticKey(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeGrade(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"중2", "중2"},
		{"중학교 2학년", "중2"},
		{"초등 5학년", "초5"},
		{"고3", "고3"},
		{"3", "3"},
		{"5학년", "5"},
		{"", identity.GradeOther},
		{"재수", identity.GradeOther},
		{"0", identity.GradeOther},
		{"2024학년도 중2", "중2"},
		{"2024 고등 1학년", "고1"},
		{"초중고 통합 3", "고3"},
		{"12", identity.GradeOther},
		{"고12", identity.GradeOther},
		{"2024학년도", identity.GradeOther},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := identity.NormalizeGrade(tt.raw).String(); got != tt.want {
				t.Errorf("NormalizeGrade(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"010-1234-5678", "01012345678"},
		{"(010) 1234 5678", "01012345678"},
		{"+82 10-1234-5678", "01012345678"},
		{"", ""},
		{"없음", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := identity.NormalizePhone(tt.raw); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBuildSemanticKey(t *testing.T) {
	got := identity.BuildSemanticKey("김 철수", "서울초등학교", "3")
	if got != "김철수_서울초_3" {
		t.Errorf("BuildSemanticKey = %q, want 김철수_서울초_3", got)
	}

	again := identity.BuildSemanticKey("김 철수", "서울초등학교", "3")
	if got != again {
		t.Errorf("semantic key is not deterministic: %q vs %q", got, again)
	}
}

func TestNormalizerSemanticKey(t *testing.T) {
	n := identity.NewNormalizer(identity.BuildSchoolIndex([]string{"대치초", "치초"}))

	if got := n.SemanticKey("이영희", "치초", "초4"); got != "이영희_대치초_초4" {
		t.Errorf("SemanticKey = %q, want 이영희_대치초_초4", got)
	}
}

func TestClassifyDocumentID(t *testing.T) {
	tests := []struct {
		id   string
		want identity.IDShape
	}{
		{"김철수_서울초_3", identity.ShapeValid},
		{"김철수_서울초", identity.ShapeValid},
		{"12345", identity.ShapeNumericLegacy},
		{"1234", identity.ShapeNumericLegacy},
		{"123456", identity.ShapeNumericLegacy},
		{"123", identity.ShapeRandomInvalid},
		{"1234567", identity.ShapeRandomInvalid},
		{"김철수 서울초 3", identity.ShapeWhitespaceFixable},
		{"김철수 _서울초_3", identity.ShapeWhitespaceFixable},
		{"aB3xQ9zPq1", identity.ShapeRandomInvalid},
		{"김철수", identity.ShapeRandomInvalid},
		{"1234 5", identity.ShapeRandomInvalid},
		{"", identity.ShapeRandomInvalid},
		{"john_school_3", identity.ShapeRandomInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := identity.ClassifyDocumentID(tt.id); got != tt.want {
				t.Errorf("ClassifyDocumentID(%q) = %s, want %s", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidIDsSurviveWhitespaceRepair(t *testing.T) {
	ids := []string{"김철수_서울초_3", "박민수_대치중_중2", "이영희_휘문고_기타"}

	for _, id := range ids {
		if identity.ClassifyDocumentID(id) != identity.ShapeValid {
			t.Fatalf("%q should be valid", id)
		}
		fixed := identity.FixWhitespace(id)
		if fixed != id {
			t.Errorf("FixWhitespace(%q) = %q, want no-op", id, fixed)
		}
		if identity.ClassifyDocumentID(fixed) != identity.ShapeValid {
			t.Errorf("%q reclassified after repair", id)
		}
	}
}

func TestFixWhitespace(t *testing.T) {
	if got := identity.FixWhitespace(" 김철수  서울초 _ 3 "); got != "김철수_서울초_3" {
		t.Errorf("FixWhitespace = %q, want 김철수_서울초_3", got)
	}
}
