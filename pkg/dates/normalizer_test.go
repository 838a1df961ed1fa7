package dates

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func serialFor(t time.Time) string {
	days := int(t.Sub(serialEpoch).Hours() / 24)
	return strconv.Itoa(days)
}

func TestNormalizeSpreadsheetSerial(t *testing.T) {
	n := NewNormalizer(0)

	expected := date(1985, time.March, 15)
	got, err := n.Normalize(serialFor(expected))
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestNormalizeSerialBelowMinYearRejected(t *testing.T) {
	n := NewNormalizer(0)

	// Serial 100 lands in 1900, at the default lower bound. A small
	// integer like this is far more likely to be an unrelated numeric
	// cell than a birth date.
	_, err := n.Normalize("100")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestNormalizeSerialRespectsConfiguredMinYear(t *testing.T) {
	n := NewNormalizer(1950)

	serial := serialFor(date(1948, time.June, 1))
	_, err := n.Normalize(serial)
	assert.ErrorIs(t, err, ErrUnrecognized)

	serial = serialFor(date(1962, time.June, 1))
	got, err := n.Normalize(serial)
	require.NoError(t, err)
	assert.Equal(t, date(1962, time.June, 1), got)
}

func TestNormalizeSerialInFutureRejected(t *testing.T) {
	n := NewNormalizer(0)

	serial := serialFor(time.Now().UTC().AddDate(2, 0, 0))
	_, err := n.Normalize(serial)
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestNormalizeTextLayouts(t *testing.T) {
	n := NewNormalizer(0)

	cases := map[string]time.Time{
		"15/03/1985":          date(1985, time.March, 15),
		"1985-03-15":          date(1985, time.March, 15),
		"15-03-1985":          date(1985, time.March, 15),
		"1985/03/15":          date(1985, time.March, 15),
		"1985-03-15T10:30:00": date(1985, time.March, 15),
		" 15/03/1985 ":        date(1985, time.March, 15),
	}
	for raw, expected := range cases {
		got, err := n.Normalize(raw)
		require.NoError(t, err, "input %q", raw)
		assert.Equal(t, expected, got, "input %q", raw)
	}
}

func TestNormalizeDayFirstWinsOnAmbiguousInput(t *testing.T) {
	n := NewNormalizer(0)

	got, err := n.Normalize("01/02/2020")
	require.NoError(t, err)
	assert.Equal(t, date(2020, time.February, 1), got)
}

func TestNormalizeMonthFirstFallback(t *testing.T) {
	n := NewNormalizer(0)

	// 25 cannot be a month, so only the month-first layout parses it.
	got, err := n.Normalize("12/25/2019")
	require.NoError(t, err)
	assert.Equal(t, date(2019, time.December, 25), got)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewNormalizer(0)

	for _, raw := range []string{"", "   ", "99/99/9999", "not a date", "15/03", "12a34"} {
		_, err := n.Normalize(raw)
		assert.ErrorIs(t, err, ErrUnrecognized, "input %q", raw)
	}
}

func TestNormalizeTimeValuesTruncated(t *testing.T) {
	n := NewNormalizer(0)

	v := time.Date(1990, time.July, 4, 17, 45, 12, 0, time.UTC)
	got, err := n.Normalize(v)
	require.NoError(t, err)
	assert.Equal(t, date(1990, time.July, 4), got)

	got, err = n.Normalize(&v)
	require.NoError(t, err)
	assert.Equal(t, date(1990, time.July, 4), got)

	_, err = n.Normalize(time.Time{})
	assert.ErrorIs(t, err, ErrUnrecognized)

	_, err = n.Normalize((*time.Time)(nil))
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestNormalizeUnsupportedTypeRejected(t *testing.T) {
	n := NewNormalizer(0)

	_, err := n.Normalize(31121)
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "1985-03-15", Canonical(date(1985, time.March, 15)))
}
