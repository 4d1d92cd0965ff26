package xero

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var msDatePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses the two date encodings Xero returns: the Microsoft JSON form
// "/Date(1690484980033+0000)/" and plain ISO 8601 strings. Empty input yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if m := msDatePattern.FindStringSubmatch(value); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", value, err)
		}
		// the offset suffix is informational; the millis are already UTC
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	return nil, fmt.Errorf("unable to parse date: %s", value)
}

// WhereModifiedSince builds the filter expression for records updated at or after t.
func WhereModifiedSince(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("UpdatedDateUTC>=DateTime(%d,%02d,%02d,%02d,%02d,%02d)",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}
