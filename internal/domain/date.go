package domain

import (
	"strings"
	"time"
)

// DateStatus tags the outcome of parsing a caller-supplied date.
type DateStatus string

// Date parse outcomes
const (
	DateValid       DateStatus = "valid"
	DateAbsent      DateStatus = "absent"
	DateUnparseable DateStatus = "unparseable"
)

// DateParse is the tagged result of ParseDate. Time is set only when Status is DateValid.
type DateParse struct {
	Time   *time.Time
	Status DateStatus
	Raw    string
}

// Accepted ISO-8601 layouts, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or datetime. Empty input is DateAbsent;
// input that matches no layout is DateUnparseable. Valid times are normalized to UTC.
func ParseDate(raw string) DateParse {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DateParse{Status: DateAbsent, Raw: raw}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return DateParse{Time: &t, Status: DateValid, Raw: raw}
		}
	}
	return DateParse{Status: DateUnparseable, Raw: raw}
}

// Degraded reports whether input was supplied but could not be parsed.
func (p DateParse) Degraded() bool {
	return p.Status == DateUnparseable
}
