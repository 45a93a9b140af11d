package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// FormatDuration renders a non-negative number of seconds as "Nh Mmin Ssec".
func FormatDuration(seconds int) string {
	m, s := seconds/60, seconds%60
	h, m := m/60, m%60
	return fmt.Sprintf("%dh %dmin %dsec", h, m, s)
}

// ParseDuration is the inverse of FormatDuration. Any non-digit runs are
// treated as separators, so exactly three numbers must be present.
func ParseDuration(s string) (int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if len(fields) != 3 {
		return 0, fmt.Errorf("duration %q: %w", s, errBadDuration)
	}

	var parts [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("duration %q: %w", s, err)
		}
		parts[i] = n
	}
	return parts[0]*3600 + parts[1]*60 + parts[2], nil
}

var errBadDuration = errors.New("expected hours, minutes and seconds")
