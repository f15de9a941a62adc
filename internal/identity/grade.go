package identity

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// GradeOther is the sentinel rendered for grades with no recognizable pattern.
const GradeOther = "기타"

var (
	// A level marker, then the first single digit before any other marker.
	levelGradePattern = regexp.MustCompile(`([초중고])[^\d초중고]*?(\d)(?:\D|$)`)
	// A lone digit not part of a longer number.
	bareGradePattern = regexp.MustCompile(`(?:^|\D)(\d)(?:\D|$)`)
)

// Grade is a school level marker (초, 중, 고, or empty) and a year digit.
// The zero value is the "other" sentinel.
type Grade struct {
	Level string
	Year  int
}

// NormalizeGrade prefers a year digit that follows a level marker, so
// "중2", "중학교 2학년", and "2024학년도 중2" all yield 중2. Without a marker
// it takes a lone digit: "3" and "5학년" yield 3 and 5. Multi-digit numbers
// never count as a year, so "12" and text without a digit yield the other
// sentinel. It never fails.
func NormalizeGrade(raw string) Grade {
	s := Clean(raw)
	if m := levelGradePattern.FindStringSubmatch(s); m != nil {
		return grade(m[1], m[2])
	}
	if m := bareGradePattern.FindStringSubmatch(s); m != nil {
		return grade("", m[1])
	}
	return Grade{}
}

func grade(level, digit string) Grade {
	year, _ := strconv.Atoi(digit)
	if year == 0 {
		return Grade{}
	}
	return Grade{Level: level, Year: year}
}

// IsOther reports whether the grade is the unrecognized sentinel.
func (g Grade) IsOther() bool {
	return g.Year == 0
}

func (g Grade) String() string {
	if g.IsOther() {
		return GradeOther
	}
	return g.Level + strconv.Itoa(g.Year)
}

func (g Grade) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}
