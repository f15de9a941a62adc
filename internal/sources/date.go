package sources

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"20060102",
	"2006-1-2",
	"2006.1.2",
	"2006/1/2",
}

// Excel's serial day 0 is 1899-12-30 once the 1900 leap-year bug is absorbed.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const maxExcelSerial = 2958465 // 9999-12-31

// ParseDate accepts the date renderings seen in spreadsheet exports: ISO,
// dotted, slashed, compact yyyymmdd, and raw Excel serial numbers. A
// trailing time component or a trailing dot ("2024. 3. 5.") is ignored.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	s = strings.ReplaceAll(s, ". ", ".")
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && len(s) != 8 {
		if serial >= 1 && serial <= maxExcelSerial {
			return excelEpoch.AddDate(0, 0, int(serial)), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
