package event

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	dayPart   = `(\d{1,2})`
	monthPart = `([A-Za-z]+)\.?`
	yearPart  = `'?(\d{4}|\d{2})\b`
	// An explicit range separator is a dash or "to".
	rangeSep = `(?:\s*[-–]\s*|\s+to\s+)`
	// The extractor drops the dash fragment of a range and joins the rest
	// with spaces. That bare form is only accepted when it is the whole text,
	// so a stray number in front of a date is not read as a range start.
	bareSep    = `\s+`
	otherDay   = `\d{1,2}\s+[A-Za-z]+\.?`
	otherYear  = `'?(?:\d{4}|\d{2})\b`
	timeSuffix = `,?\s+\d{1,2}:\d{2}\s*(?i:[ap]\.?m\.?)`
)

// datePattern is one recognized date grammar. The indexes point at the
// submatches holding the (start) day, month and year. endMonth is set when
// the year belongs to the end of the range only.
type datePattern struct {
	name             string
	re               *regexp.Regexp
	day, month, year int
	endMonth         int
}

func crossMonthRange(sep string) string {
	return dayPart + `\s+` + monthPart + `\s+` + yearPart + sep + otherDay + `\s+` + otherYear
}

func trailingYearRange(sep string) string {
	return dayPart + `\s+` + monthPart + sep + `\d{1,2}\s+([A-Za-z]+)\.?\s+` + yearPart
}

func sameMonthRange(sep string) string {
	return dayPart + sep + `\d{1,2}\s+` + monthPart + `\s+` + yearPart
}

func whole(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`^` + pattern + `$`)
}

// Ordered most specific first. The first pattern that yields a real date wins.
var datePatterns = []datePattern{
	{
		// 01 Mar '25 - 30 Nov '25, 01 Mar 2025 - 30 Nov 2025
		name: "cross-month range",
		re:   regexp.MustCompile(crossMonthRange(rangeSep)),
		day:  1, month: 2, year: 3,
	},
	{
		// 01 Mar '25 30 Nov '25
		name: "cross-month range, dash dropped",
		re:   whole(crossMonthRange(bareSep)),
		day:  1, month: 2, year: 3,
	},
	{
		// 28 Jun - 02 Jul 2025, 28 Dec - 02 Jan 2026
		name: "cross-month range, trailing year",
		re:   regexp.MustCompile(trailingYearRange(rangeSep)),
		day:  1, month: 2, endMonth: 3, year: 4,
	},
	{
		// 28 Jun 02 Jul 2025
		name: "cross-month range, trailing year, dash dropped",
		re:   whole(trailingYearRange(bareSep)),
		day:  1, month: 2, endMonth: 3, year: 4,
	},
	{
		// 04 - 25 Jun '25
		name: "same-month range",
		re:   regexp.MustCompile(sameMonthRange(rangeSep)),
		day:  1, month: 2, year: 3,
	},
	{
		// 04 25 Jun '25
		name: "same-month range, dash dropped",
		re:   whole(sameMonthRange(bareSep)),
		day:  1, month: 2, year: 3,
	},
	{
		// 10 June 2025, 1:00 pm
		name: "date with time",
		re:   regexp.MustCompile(dayPart + `\s+` + monthPart + `\s+` + yearPart + timeSuffix),
		day:  1, month: 2, year: 3,
	},
	{
		// 10 June 2025, 12 Jun '25, 12 Jun 25
		name: "single date",
		re:   regexp.MustCompile(dayPart + `\s+` + monthPart + `\s+` + yearPart),
		day:  1, month: 2, year: 3,
	},
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseDate attempts to parse free-form event date text into a calendar date.
// For ranges the start date is returned. Two-digit years are read as 20YY.
// Returns time.Time{} (zero value) if no pattern yields a valid date.
func ParseDate(dateText string) time.Time {
	text := strings.Join(strings.Fields(dateText), " ")
	if text == "" {
		return time.Time{}
	}

	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			year, ok := parseYear(m[p.year])
			if !ok {
				continue
			}
			// A range that runs over New Year starts in the previous year
			if p.endMonth > 0 && monthOf(m[p.month]) > monthOf(m[p.endMonth]) && monthOf(m[p.endMonth]) != 0 {
				year--
			}
			if t, ok := buildDate(m[p.day], m[p.month], year); ok {
				return t
			}
		}
	}

	return time.Time{}
}

// FormatDate renders a parsed date as YYYY-MM-DD, or "" for the zero time
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func monthOf(name string) time.Month {
	return monthNames[strings.ToLower(name)]
}

// parseYear reads a four-digit year, or a two-digit year as 20YY
func parseYear(yearText string) (int, bool) {
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return 0, false
	}
	if len(yearText) == 2 {
		year += 2000
	}
	return year, true
}

func buildDate(dayText, monthText string, year int) (time.Time, bool) {
	month := monthOf(monthText)
	if month == 0 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31 Jun into 1 Jul; reject that.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}
