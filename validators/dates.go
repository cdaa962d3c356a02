package validators

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	germanNumericDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	isoDate           = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	germanLongDate    = regexp.MustCompile(`^(\d{1,2})\.?\s+([A-Za-zäÄ]+)\s+(\d{4})$`)
)

var germanMonths = map[string]time.Month{
	"januar": time.January, "jan": time.January, "jänner": time.January,
	"februar": time.February, "feb": time.February,
	"märz": time.March, "maerz": time.March, "mär": time.March, "mrz": time.March,
	"april": time.April, "apr": time.April,
	"mai": time.May,
	"juni": time.June, "jun": time.June,
	"juli": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"oktober": time.October, "okt": time.October,
	"november": time.November, "nov": time.November,
	"dezember": time.December, "dez": time.December,
}

// ParseDate understands dd.mm.yyyy, yyyy-mm-dd and the German long form
// ("15. Dezember 2025"), in that order. time.Time values pass through
// truncated to the day. ok is false when nothing matches.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return day(t.Year(), t.Month(), t.Day())
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return day(t.Year(), t.Month(), t.Day())
	}
	if IsAbsent(v) {
		return time.Time{}, false
	}
	s := text(v)

	if m := germanNumericDate.FindStringSubmatch(s); m != nil {
		return day(atoi(m[3]), time.Month(atoi(m[2])), atoi(m[1]))
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return day(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}
	// ISO timestamps as produced by JSON encoders
	if len(s) > 10 && isoDate.MatchString(s[:10]) {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return day(ts.Year(), ts.Month(), ts.Day())
		}
	}
	if m := germanLongDate.FindStringSubmatch(s); m != nil {
		month, ok := germanMonths[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		return day(atoi(m[3]), month, atoi(m[1]))
	}
	return time.Time{}, false
}

// day builds a UTC midnight date and rejects rollovers such as 31.02.
func day(year int, month time.Month, d int) (time.Time, bool) {
	t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ValidateDate parses v and checks the optional inclusive bounds.
func ValidateDate(v any, field string, maxDate, minDate *time.Time) Result {
	if IsAbsent(v) {
		return missing(field)
	}
	d, ok := ParseDate(v)
	if !ok {
		return invalid(field, text(v), "%s %q is not a recognised date", field, text(v))
	}
	iso := d.Format(time.DateOnly)
	if maxDate != nil {
		if upper, _ := ParseDate(*maxDate); d.After(upper) {
			return invalid(field, iso, "%s %s is after %s", field, iso, upper.Format(time.DateOnly))
		}
	}
	if minDate != nil {
		if lower, _ := ParseDate(*minDate); d.Before(lower) {
			return invalid(field, iso, "%s %s is before %s", field, iso, lower.Format(time.DateOnly))
		}
	}
	return valid(field, iso, "date is valid")
}
