package dates

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized reports that no parsing strategy produced a valid date.
var ErrUnrecognized = errors.New("unrecognized date format")

// CanonicalLayout is the storage representation for calendar dates.
const CanonicalLayout = "2006-01-02"

// serialEpoch is the spreadsheet day-zero (1899-12-30): serial 1 is
// 1899-12-31 in the convention used by common spreadsheet software.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// textLayouts are tried in strict priority order; the first layout that
// yields a valid calendar date wins. Day-first beats month-first on
// ambiguous input such as 01/02/2020.
var textLayouts = []string{
	"02/01/2006",
	"01/02/2006",
	"2006-01-02",
	"02-01-2006",
}

// fallbackLayouts handle generic timestamp strings as a last resort.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// Normalizer converts date values of unknown shape into canonical calendar
// dates. A value is never silently replaced: every failure surfaces as
// ErrUnrecognized so callers can report it per row.
type Normalizer struct {
	minYear int
	now     func() time.Time
}

// NewNormalizer builds a Normalizer. minYear is the exclusive lower bound
// applied to the spreadsheet serial interpretation; values at or below it
// are assumed to be unrelated numeric fields rather than dates. Zero or
// negative means 1900.
func NewNormalizer(minYear int) *Normalizer {
	if minYear <= 0 {
		minYear = 1900
	}
	return &Normalizer{minYear: minYear, now: time.Now}
}

// Normalize converts value into a calendar date at UTC midnight. Accepted
// shapes, in order: time.Time, a purely numeric spreadsheet serial day count
// within the plausible year range, the textual layouts, and finally generic
// timestamp strings.
func (n *Normalizer) Normalize(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrUnrecognized
		}
		return truncate(v), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, ErrUnrecognized
		}
		return truncate(*v), nil
	case string:
		return n.normalizeString(v)
	default:
		return time.Time{}, ErrUnrecognized
	}
}

// NormalizeString is Normalize restricted to string input.
func (n *Normalizer) NormalizeString(raw string) (time.Time, error) {
	return n.normalizeString(raw)
}

// Canonical serializes a normalized date for storage.
func Canonical(t time.Time) string {
	return t.Format(CanonicalLayout)
}

func (n *Normalizer) normalizeString(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrUnrecognized
	}

	if serial, ok := asSerial(raw); ok {
		candidate := serialEpoch.AddDate(0, 0, serial)
		year := candidate.Year()
		if year > n.minYear && year <= n.now().Year() {
			return candidate, nil
		}
		// Out-of-range serials fall through: a bare integer such as a
		// postal code must not be mistaken for a birth date.
	}

	for _, layout := range textLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return truncate(t), nil
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return truncate(t), nil
		}
	}

	return time.Time{}, ErrUnrecognized
}

// asSerial reports whether raw is an integer with no separators.
func asSerial(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
