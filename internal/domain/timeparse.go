package domain

import (
	"regexp"
	"strings"
	"time"
)

// Beijing is the fixed UTC+8 zone every input time is interpreted in.
var Beijing = time.FixedZone("UTC+8", 8*60*60)

const (
	// DateLayout is the civil date layout used in FlightKey.
	DateLayout = "2006-01-02"
	// TimeLayout is the canonical output layout for instants.
	TimeLayout = "2006-01-02 15:04:05"
	// MinuteLayout renders instants truncated to the minute for comparison.
	MinuteLayout = "2006-01-02 15:04"
)

// timeLayouts are the accepted encodings, tried in order. The zone-less
// ISO-8601 forms and the slash forms cover spreadsheet exports.
var timeLayouts = []string{
	"20060102150405",
	"200601021504",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	TimeLayout,
	MinuteLayout,
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
}

// ParseTime parses s in any accepted layout and returns it in UTC+8.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, Beijing); err == nil {
			return t.In(Beijing), true
		}
	}
	return time.Time{}, false
}

// ParseTimePtr is ParseTime returning nil for absent or malformed values.
func ParseTimePtr(s string) *time.Time {
	t, ok := ParseTime(s)
	if !ok {
		return nil
	}
	return &t
}

// FormatTime renders t in the canonical layout, or "" for nil.
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(Beijing).Format(TimeLayout)
}

// FormatMinute renders t truncated to the minute, or "" for nil.
func FormatMinute(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(Beijing).Truncate(time.Minute).Format(MinuteLayout)
}

// CivilDate returns the UTC+8 calendar date of t as YYYY-MM-DD.
func CivilDate(t time.Time) string {
	return t.In(Beijing).Format(DateLayout)
}

// dofRe matches the ICAO field 18 date-of-flight item, e.g. "DOF/250923".
var dofRe = regexp.MustCompile(`DOF/(\d{6})\b`)

// ExtractDOF returns the execution date carried by a DOF/YYMMDD item in a
// raw telegram body.
func ExtractDOF(body string) (string, bool) {
	m := dofRe.FindStringSubmatch(body)
	if len(m) != 2 {
		return "", false
	}
	d, err := time.ParseInLocation("060102", m[1], Beijing)
	if err != nil {
		return "", false
	}
	return d.Format(DateLayout), true
}

// InWindow reports whether t lies within [date-1d, date+2d] of the execution date.
func InWindow(t time.Time, date time.Time) bool {
	lo := date.AddDate(0, 0, -1)
	hi := date.AddDate(0, 0, 2)
	return !t.Before(lo) && !t.After(hi)
}

// digitCount counts ASCII digits in s.
func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// ValidSOBTSource reports whether a raw SOBT value is long enough to carry a
// full date and minute (YYYYMMDDHHMM, separators ignored).
func ValidSOBTSource(s string) bool {
	return digitCount(s) >= 12
}
