package parse

import "regexp"

// Time-range grammar inside a label: <token> <dash-like separator> <token>.
// The separator set covers ASCII hyphen, en/em dash, and the two fullwidth
// range glyphs Google Calendar emits in Japanese locales.
const (
	timeTokenPat = `(?:午前|午後)?\s*\d{1,2}(?::\d{2}|時(?:\d{1,2}分?)?)?\s*(?:(?i:[ap])\.?m\.?)?`
	separatorPat = `\s*[-–—～〜]\s*`
)

var timeRangeRe = regexp.MustCompile(`(` + timeTokenPat + `)` + separatorPat + `(` + timeTokenPat + `)`)

// TimeRange is a matched and normalized start-end pair. Span holds the byte
// offsets of the matched substring inside the original label, for title
// stripping. End is empty when only the start token normalized; the caller
// applies its default-duration rule in that case.
type TimeRange struct {
	Span  [2]int
	Start string
	End   string
}

// Canonical renders the "HH:MM - HH:MM" form. Only valid when End is set.
func (r TimeRange) Canonical() string {
	return r.Start + " - " + r.End
}

// ExtractTimeRange finds the first substring of label that reads as a time
// range and normalizes both tokens. The end token inherits the start's
// meridiem when it has none, and vice versa (a single trailing marker such
// as "9 - 10:30am" covers the whole range).
func ExtractTimeRange(label string) (TimeRange, bool) {
	for _, idx := range timeRangeRe.FindAllStringSubmatchIndex(label, -1) {
		rawStart := label[idx[2]:idx[3]]
		rawEnd := label[idx[4]:idx[5]]

		startTok, startOK := parseTimeToken(rawStart)
		endTok, endOK := parseTimeToken(rawEnd)
		if !startOK {
			continue
		}
		if !plausibleRange(startTok, endTok, endOK) {
			continue
		}

		r := TimeRange{Span: [2]int{idx[0], idx[1]}}
		r.Start = startTok.resolve(endTok.mer)
		if endOK {
			r.End = endTok.resolve(startTok.mer)
		}
		return r, true
	}
	return TimeRange{}, false
}

// HasTimeRange reports whether label contains a parseable time range.
func HasTimeRange(label string) bool {
	_, ok := ExtractTimeRange(label)
	return ok
}

// plausibleRange rejects pairs of bare digits with no time-ish evidence on
// either side (no written minutes, hour marker, or meridiem). Without
// this, date text such as "2/14-15" would read as a 14:00-15:00 range.
func plausibleRange(start, end timeToken, endOK bool) bool {
	if start.mer != MeridiemNone || start.explicit {
		return true
	}
	if endOK && (end.mer != MeridiemNone || end.explicit) {
		return true
	}
	return false
}
