// Package formatting converts between byte counts and human-readable sizes.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n in base-1024 units with precision decimals.
func FormatBytes(n int64, precision int) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}
	exp := min(int(math.Log(float64(n))/math.Log(1024)), len(units)-1)
	v := float64(n) / math.Pow(1024, float64(exp))
	return strconv.FormatFloat(v, 'f', max(precision, 0), 64) + " " + units[exp]
}

// ParseBytes parses sizes such as "50MB", "1.5 gb", or "2048". A bare number
// is bytes. Units are base-1024 and case-insensitive; a trailing "iB" form
// ("MiB") is accepted.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	num, unit := s, ""
	if split >= 0 {
		num, unit = s[:split], strings.TrimSpace(s[split:])
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	unit = strings.ToUpper(unit)
	if unit == "" {
		return int64(v), nil
	}
	if len(unit) == 3 && strings.HasSuffix(unit, "IB") {
		unit = unit[:1] + "B"
	}
	for exp, u := range units {
		if u == unit {
			return int64(v * math.Pow(1024, float64(exp))), nil
		}
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", unit)
}
