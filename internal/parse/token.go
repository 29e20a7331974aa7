// Package parse turns the loosely formatted label strings scraped from the
// rendered calendar page into canonical events. All parsers here are total:
// malformed input yields a no-match result, never a panic.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Meridiem is an AM/PM indicator recorded from a time token, or inherited
// from the other token of a range.
type Meridiem int

const (
	MeridiemNone Meridiem = iota
	MeridiemAM
	MeridiemPM
)

var (
	// Leading localized marker: 午前9:00 / 午後2時30分
	leadingMeridiemRe = regexp.MustCompile(`^(午前|午後)\s*`)
	// Trailing Latin marker: 9:00 AM / 9pm / 10:30a.m.
	trailingMeridiemRe = regexp.MustCompile(`(?i)\s*([ap])\.?m\.?$`)
	// Hour-marker form: 9時 / 9時30分 / 9時30
	hourMarkerRe = regexp.MustCompile(`^(\d{1,2})時(?:(\d{1,2})分?)?$`)
	// Bare form: 9 / 9:00 / 14:30
	bareTimeRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?$`)
)

// timeToken is a parsed but not yet resolved token: hour/minute as written,
// whichever meridiem marker the token itself carried, and whether the
// minute part was written out (":MM" or "時MM分") rather than implied.
type timeToken struct {
	hour, min int
	mer       Meridiem
	explicit  bool
}

// parseTimeToken strips and records the token's own meridiem marker and
// parses the remaining digits. A leading localized marker takes precedence
// over a trailing Latin one when both are present.
func parseTimeToken(s string) (timeToken, bool) {
	var tok timeToken
	s = strings.TrimSpace(s)
	if s == "" {
		return tok, false
	}

	if m := leadingMeridiemRe.FindStringSubmatch(s); m != nil {
		if m[1] == "午後" {
			tok.mer = MeridiemPM
		} else {
			tok.mer = MeridiemAM
		}
		s = s[len(m[0]):]
	}
	if m := trailingMeridiemRe.FindStringSubmatch(s); m != nil {
		if tok.mer == MeridiemNone {
			if strings.EqualFold(m[1], "p") {
				tok.mer = MeridiemPM
			} else {
				tok.mer = MeridiemAM
			}
		}
		s = s[:len(s)-len(m[0])]
	}
	s = strings.TrimSpace(s)

	var hh, mm string
	if m := hourMarkerRe.FindStringSubmatch(s); m != nil {
		hh, mm = m[1], m[2]
		tok.explicit = true
	} else if m := bareTimeRe.FindStringSubmatch(s); m != nil {
		hh, mm = m[1], m[2]
		tok.explicit = mm != ""
	} else {
		return tok, false
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h > 23 {
		return tok, false
	}
	tok.hour = h
	if mm != "" {
		m, err := strconv.Atoi(mm)
		if err != nil || m > 59 {
			return tok, false
		}
		tok.min = m
	}
	return tok, true
}

// resolve applies the fallback meridiem (used when the token carried none)
// and converts 12-hour values into 24-hour form. Hours already in 24-hour
// range (13+) ignore the meridiem.
func (t timeToken) resolve(fallback Meridiem) string {
	mer := t.mer
	if mer == MeridiemNone {
		mer = fallback
	}
	h := t.hour
	if mer != MeridiemNone && h <= 12 {
		h = h % 12
		if mer == MeridiemPM {
			h += 12
		}
	}
	return fmt.Sprintf("%02d:%02d", h, t.min)
}

// NormalizeTimeToken parses a single time token into canonical zero-padded
// 24-hour "HH:MM" form. fallback supplies a meridiem when the token itself
// has none (the end of a range inherits the start's marker this way).
// Returns false for anything that does not parse.
func NormalizeTimeToken(token string, fallback Meridiem) (string, bool) {
	tok, ok := parseTimeToken(token)
	if !ok {
		return "", false
	}
	return tok.resolve(fallback), true
}
