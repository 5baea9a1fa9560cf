package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericDate = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?\b`)
	dayMonth    = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([\p{L}]+)`)
	monthDay    = regexp.MustCompile(`([\p{L}]+)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)

	clockDigits = regexp.MustCompile(`\b(\d{1,2})[:.](\d{2})\b`)
	hourMarked  = regexp.MustCompile(`\b(\d{1,2})\s*(a\.?m\.?|p\.?m\.?)`)
	hourOclock  = regexp.MustCompile(`\b(\d{1,2})\s*(o'?clock|часов|часа|час)`)
	hourBare    = regexp.MustCompile(`\b(\d{1,2})\b`)
	halfPast    = regexp.MustCompile(`half\s+past\s+([\p{L}\d]+)`)
	quarterPast = regexp.MustCompile(`quarter\s+past\s+([\p{L}\d]+)`)
	quarterTo   = regexp.MustCompile(`quarter\s+to\s+([\p{L}\d]+)`)

	pmMarker = regexp.MustCompile(`\d\s*p\.?m\b|\bpm\b|\bp\.m\.|evening|tonight|afternoon|night|вечер|дня|ночи`)
	noonWord = regexp.MustCompile(`\bnoon\b|полдень`)
	amMarker = regexp.MustCompile(`\d\s*a\.?m\b|\ba\.m\.|morning|утра|утром`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January, "feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March, "apr": time.April, "april": time.April,
	"may": time.May, "jun": time.June, "june": time.June, "jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August, "sep": time.September, "sept": time.September,
	"september": time.September, "oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November, "dec": time.December, "december": time.December,
	"января": time.January, "февраля": time.February, "марта": time.March, "апреля": time.April,
	"мая": time.May, "июня": time.June, "июля": time.July, "августа": time.August,
	"сентября": time.September, "октября": time.October, "ноября": time.November, "декабря": time.December,
}

type weekdayName struct {
	prefix string
	day    time.Weekday
}

var weekdayNames = []weekdayName{
	{"monday", time.Monday}, {"tuesday", time.Tuesday}, {"wednesday", time.Wednesday},
	{"thursday", time.Thursday}, {"friday", time.Friday}, {"saturday", time.Saturday},
	{"sunday", time.Sunday},
	{"понедельн", time.Monday}, {"вторник", time.Tuesday}, {"сред", time.Wednesday},
	{"четверг", time.Thursday}, {"пятниц", time.Friday}, {"суббот", time.Saturday},
	{"воскресен", time.Sunday},
}

// Date resolves a spoken or written date relative to now. The result is
// midnight in now's location.
func Date(text string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return time.Time{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(s, "day after tomorrow"), strings.Contains(s, "послезавтра"):
		return today.AddDate(0, 0, 2), true
	case strings.Contains(s, "tomorrow"), strings.Contains(s, "завтра"):
		return today.AddDate(0, 0, 1), true
	case strings.Contains(s, "today"), strings.Contains(s, "tonight"), strings.Contains(s, "сегодня"):
		return today, true
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return calendarDate(y, time.Month(mo), d, now.Location())
	}
	if m := numericDate.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			if y < 100 {
				y += 2000
			}
			return calendarDate(y, time.Month(mo), d, now.Location())
		}
		return upcoming(today, time.Month(mo), d)
	}
	for _, m := range dayMonth.FindAllStringSubmatch(s, -1) {
		if mo, ok := monthNames[m[2]]; ok {
			d, _ := strconv.Atoi(m[1])
			return upcoming(today, mo, d)
		}
	}
	for _, m := range monthDay.FindAllStringSubmatch(s, -1) {
		if mo, ok := monthNames[m[1]]; ok {
			d, _ := strconv.Atoi(m[2])
			return upcoming(today, mo, d)
		}
	}

	for _, w := range weekdayNames {
		if !strings.Contains(s, w.prefix) {
			continue
		}
		ahead := (int(w.day) - int(today.Weekday()) + 7) % 7
		if ahead == 0 && (strings.Contains(s, "next") || strings.Contains(s, "следующ")) {
			ahead = 7
		}
		return today.AddDate(0, 0, ahead), true
	}
	return time.Time{}, false
}

func calendarDate(y int, mo time.Month, d int, loc *time.Location) (time.Time, bool) {
	if mo < time.January || mo > time.December || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, mo, d, 0, 0, 0, 0, loc)
	if t.Day() != d || t.Month() != mo {
		return time.Time{}, false
	}
	return t, true
}

// upcoming picks this year's date, or next year's when it already passed.
func upcoming(today time.Time, mo time.Month, d int) (time.Time, bool) {
	t, ok := calendarDate(today.Year(), mo, d, today.Location())
	if !ok {
		return time.Time{}, false
	}
	if t.Before(today) {
		return calendarDate(today.Year()+1, mo, d, today.Location())
	}
	return t, true
}

// Clock extracts a wall-clock time. Bare hours from 1 to 9 without an
// am/pm marker are read as evening.
func Clock(text string) (hour, minute int, ok bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, 0, false
	}
	pm := pmMarker.MatchString(s)
	am := amMarker.MatchString(s)

	switch {
	case noonWord.MatchString(s):
		return 12, 0, true
	case strings.Contains(s, "midnight"), strings.Contains(s, "полночь"):
		return 0, 0, true
	}

	if m := clockDigits.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		return meridiem(h, mi, am, pm, false)
	}
	if m := halfPast.FindStringSubmatch(s); m != nil {
		if h, ok := hourValue(m[1]); ok {
			return meridiem(h, 30, am, pm, true)
		}
	}
	if m := quarterPast.FindStringSubmatch(s); m != nil {
		if h, ok := hourValue(m[1]); ok {
			return meridiem(h, 15, am, pm, true)
		}
	}
	if m := quarterTo.FindStringSubmatch(s); m != nil {
		if h, ok := hourValue(m[1]); ok {
			if hh, _, ok := meridiem(h, 0, am, pm, true); ok {
				total := (hh*60 - 15 + 24*60) % (24 * 60)
				return total / 60, total % 60, true
			}
		}
	}
	for _, re := range []*regexp.Regexp{hourMarked, hourOclock, hourBare} {
		if m := re.FindStringSubmatch(s); m != nil {
			h, _ := strconv.Atoi(m[1])
			return meridiem(h, 0, am, pm, true)
		}
	}

	words := wordToken.FindAllString(s, -1)
	for i, w := range words {
		h, found := cardinalWords[w]
		if !found || h > 12 {
			continue
		}
		mi := 0
		if i+1 < len(words) {
			switch words[i+1] {
			case "fifteen":
				mi = 15
			case "thirty":
				mi = 30
			case "forty", "forty-five":
				mi = 45
			case "am":
				am = true
			}
		}
		return meridiem(h, mi, am, pm, true)
	}
	return 0, 0, false
}

func hourValue(tok string) (int, bool) {
	if n, err := strconv.Atoi(tok); err == nil {
		return n, true
	}
	n, ok := cardinalWords[tok]
	return n, ok
}

func meridiem(h, mi int, am, pm, bare bool) (int, int, bool) {
	switch {
	case pm && h < 12:
		h += 12
	case am && h == 12:
		h = 0
	case !am && !pm && bare && h >= 1 && h <= 9:
		h += 12
	}
	if h < 0 || h > 23 || mi < 0 || mi > 59 {
		return 0, 0, false
	}
	return h, mi, true
}
