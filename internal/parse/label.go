package parse

import (
	"regexp"
	"strings"
	"time"
)

// NoTitlePlaceholder is substituted when stripping leaves nothing behind.
const NoTitlePlaceholder = "（タイトルなし）"

var (
	// 「...」 quoted title segment. The quoted form wins over every
	// stripping heuristic: a real title may contain incidental time or
	// date text that must not be removed.
	quotedTitleRe = regexp.MustCompile(`「(.*?)」`)

	// 2026年2月14日
	fullDateRe = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	// 2月14日, optionally followed by 金曜日 / 金曜
	monthDayRe         = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
	monthDayWeekdayRe  = regexp.MustCompile(`\d{1,2}月\d{1,2}日\s*[月火水木金土日]曜日?`)
	weekdayTokenRe     = regexp.MustCompile(`([月火水木金土日])曜`)
	bareWeekdayTokenRe = regexp.MustCompile(`^[月火水木金土日]曜日?$`)

	listSeparatorRe = regexp.MustCompile(`[,、]\s*`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// boilerplatePhrases are fixed page chrome fragments that may ride along
// inside a label and never belong to a title or calendar name.
var boilerplatePhrases = []string{
	"場所未定",
	"場所: なし",
	"場所なし",
	"予定あり",
	"繰り返し",
}

// weekdayByName maps the single-character Japanese weekday names.
var weekdayByName = map[string]time.Weekday{
	"月": time.Monday,
	"火": time.Tuesday,
	"水": time.Wednesday,
	"木": time.Thursday,
	"金": time.Friday,
	"土": time.Saturday,
	"日": time.Sunday,
}

// QuotedTitle returns the first 「...」 segment of label, trimmed, and
// whether one was present. The boolean is true even when the segment trims
// to empty; the caller substitutes the placeholder then.
func QuotedTitle(label string) (string, bool) {
	m := quotedTitleRe.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExtractTitle derives the event title from a raw label. rangeSpan, when
// non-nil, is the byte span of the matched time range to cut out first.
//
// A quoted segment is returned verbatim (trimmed). Otherwise the label is
// stripped of the time range, date patterns, and boilerplate, and the
// leftover text is collapsed. An empty result yields the placeholder.
func ExtractTitle(label string, rangeSpan *[2]int) string {
	if quoted, ok := QuotedTitle(label); ok {
		if quoted == "" {
			return NoTitlePlaceholder
		}
		return quoted
	}

	s := label
	if rangeSpan != nil {
		s = label[:rangeSpan[0]] + " " + label[rangeSpan[1]:]
	}

	s = fullDateRe.ReplaceAllString(s, " ")
	s = monthDayWeekdayRe.ReplaceAllString(s, " ")
	s = monthDayRe.ReplaceAllString(s, " ")
	for _, phrase := range boilerplatePhrases {
		s = strings.ReplaceAll(s, phrase, " ")
	}
	s = listSeparatorRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if s == "" {
		return NoTitlePlaceholder
	}
	return s
}

// ExtractDate resolves the calendar date a label refers to, trying in
// order: full year-month-day, month-day against the current year, a
// weekday name matched against the in-scope dates, then today.
//
// The month-day candidate is returned whether or not it falls inside
// dates; only the weekday path is restricted to the in-scope set.
func ExtractDate(label string, dates []time.Time, now time.Time, loc *time.Location) time.Time {
	if m := fullDateRe.FindStringSubmatch(label); m != nil {
		return time.Date(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), 0, 0, 0, 0, loc)
	}

	if m := monthDayRe.FindStringSubmatch(label); m != nil {
		return time.Date(now.Year(), time.Month(atoi(m[1])), atoi(m[2]), 0, 0, 0, 0, loc)
	}

	if m := weekdayTokenRe.FindStringSubmatch(label); m != nil {
		if wd, ok := weekdayByName[m[1]]; ok {
			for _, d := range dates {
				if d.Weekday() == wd {
					return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
				}
			}
		}
	}

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// LooksLikeDate reports whether s reads as a date fragment.
func LooksLikeDate(s string) bool {
	return fullDateRe.MatchString(s) || monthDayRe.MatchString(s)
}

// LooksLikeWeekday reports whether s is nothing but a weekday name.
func LooksLikeWeekday(s string) bool {
	return bareWeekdayTokenRe.MatchString(strings.TrimSpace(s))
}

// IsBoilerplate reports whether s is one of the fixed page chrome phrases.
func IsBoilerplate(s string) bool {
	s = strings.TrimSpace(s)
	for _, phrase := range boilerplatePhrases {
		if s == phrase {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
