package statement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateShape is one accepted date layout; the submatch indexes locate year, month and day
type dateShape struct {
	pattern          *regexp.Regexp
	year, month, day int
}

// dateShapes are tried in order; the first whole-string match wins
var dateShapes = []dateShape{
	{pattern: regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`), year: 1, month: 2, day: 3},
	{pattern: regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`), year: 3, month: 2, day: 1},
	{pattern: regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), year: 3, month: 2, day: 1},
	{pattern: regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`), year: 1, month: 2, day: 3},
}

// ParseDate parses a statement date in one of the four accepted shapes.
// The result is a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	for _, shape := range dateShapes {
		m := shape.pattern.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[shape.year])
		month, _ := strconv.Atoi(m[shape.month])
		day, _ := strconv.Atoi(m[shape.day])
		if d, ok := calendarDate(year, month, day); ok {
			return d, nil
		}
		break
	}
	return time.Time{}, fmt.Errorf("cannot parse date: %q", s)
}

// calendarDate rejects values time.Date would normalize, such as 31 February
func calendarDate(year, month, day int) (time.Time, bool) {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// ParseAmount parses a signed amount written with either comma or period
// as the decimal separator.
func ParseAmount(s string) (float64, error) {
	d, err := ParseAmountDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseAmountDecimal is ParseAmount without the conversion to float64
func ParseAmountDecimal(s string) (decimal.Decimal, error) {
	var cleaned strings.Builder
	negative := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
			cleaned.WriteRune(r)
		case r == '-':
			negative = true
		}
	}

	number := strings.TrimSuffix(normalizeSeparators(cleaned.String()), ".")
	if strings.HasPrefix(number, ".") {
		number = "0" + number
	}
	if number == "" {
		return decimal.Zero, fmt.Errorf("cannot parse amount: %q", s)
	}

	d, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot parse amount: %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites the number so that '.' is the only separator
// left and is the decimal one.
func normalizeSeparators(n string) string {
	lastComma := strings.LastIndex(n, ",")
	lastPeriod := strings.LastIndex(n, ".")

	switch {
	case lastComma >= 0 && lastPeriod >= 0:
		if lastComma > lastPeriod {
			n = strings.ReplaceAll(n, ".", "")
			return strings.Replace(n, ",", ".", 1)
		}
		return strings.ReplaceAll(n, ",", "")

	case lastComma >= 0:
		if len(n)-lastComma-1 <= 2 {
			return strings.ReplaceAll(n[:lastComma], ",", "") + "." + n[lastComma+1:]
		}
		return strings.ReplaceAll(n, ",", "")

	case strings.Count(n, ".") > 1:
		return strings.ReplaceAll(n, ".", "")
	}
	return n
}
