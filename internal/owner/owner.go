// Package owner classifies events as belonging to the signed-in account's
// own calendar or to someone else's, based on aliases discovered from the
// account UI labels. Every missing-input branch fails open: an event we
// cannot classify is kept, never silently discarded.
package owner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	appLog "calbar/internal/log"
	"calbar/internal/model"
	"calbar/internal/parse"
)

var (
	// "Google アカウント: 山田花子 (hanako@example.com)" style markers.
	accountMarkerRe = regexp.MustCompile(`(?:アカウント|Account)\s*[:：]\s*([^(（\n]+)`)
	emailRe         = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// honorificSuffixes are stripped from the tail of a normalized identity.
var honorificSuffixes = []string{"さん", "さま", "様", "くん", "君", "ちゃん"}

// AliasSet is the discovered identity of the active account: an optional
// display name plus the normalized alias strings events are matched
// against. An empty set disables filtering.
type AliasSet struct {
	DisplayName string
	aliases     map[string]struct{}
}

// Empty reports whether no aliases were discovered.
func (a AliasSet) Empty() bool {
	return len(a.aliases) == 0
}

// Aliases returns the normalized alias strings, for logging and tests.
func (a AliasSet) Aliases() []string {
	out := make([]string, 0, len(a.aliases))
	for s := range a.aliases {
		out = append(out, s)
	}
	return out
}

func (a *AliasSet) add(raw string) {
	n := NormalizeIdentity(raw)
	if n == "" {
		return
	}
	if a.aliases == nil {
		a.aliases = make(map[string]struct{})
	}
	a.aliases[n] = struct{}{}
	// A dotted alias also matches its dotless rendering ("jane.doe" owns
	// calendars labelled "Jane Doe").
	if dotless := strings.ReplaceAll(n, ".", ""); dotless != n && dotless != "" {
		a.aliases[dotless] = struct{}{}
	}
}

// NewAliasSet builds a set from raw alias strings, normalizing each.
func NewAliasSet(raws ...string) AliasSet {
	var set AliasSet
	for _, r := range raws {
		set.add(r)
	}
	return set
}

// NormalizeIdentity maps a display name or address into the canonical
// comparison form: NFKC-normalized, lowercased, all whitespace removed,
// trailing honorific suffix stripped.
func NormalizeIdentity(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	for _, suffix := range honorificSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}
	return s
}

// DiscoverAliases scans account-UI labels for a display name (after an
// account marker) and/or an email-like token. The email's local part is an
// extra alias. Scanning stops at the first label yielding anything.
func DiscoverAliases(labels []string) AliasSet {
	var set AliasSet
	for _, label := range labels {
		if m := accountMarkerRe.FindStringSubmatch(label); m != nil {
			name := strings.TrimSpace(m[1])
			if name != "" {
				set.DisplayName = name
				set.add(name)
			}
		}
		if email := emailRe.FindString(label); email != "" {
			set.add(email)
			if at := strings.Index(email, "@"); at > 0 {
				set.add(email[:at])
			}
		}
		if !set.Empty() {
			break
		}
	}
	if set.Empty() {
		appLog.Warn("no account aliases discovered; ownership filtering will be skipped")
	} else {
		appLog.Debug("account aliases discovered", "display_name", set.DisplayName, "alias_count", len(set.aliases))
	}
	return set
}

// Owns classifies a raw calendar-name annotation. No name at all is "own"
// (fail-open). Otherwise the normalized name must equal an alias, or start
// with an alias immediately followed by an open parenthesis (the page
// renders own calendars as "Name (email)").
func (a AliasSet) Owns(calendarName string) bool {
	if calendarName == "" {
		return true
	}
	n := NormalizeIdentity(calendarName)
	if n == "" {
		return true
	}
	for alias := range a.aliases {
		if n == alias || strings.HasPrefix(n, alias+"(") {
			return true
		}
	}
	return false
}

// ExtractCalendarName pulls the calendar-name annotation from the tail of
// a raw label: the text after the quoted title span when one exists, else
// after the first occurrence of the title token. Candidates that read as a
// weekday, a time range, a date, the title itself, or boilerplate are
// filtered out; the first survivor wins. Empty means no annotation.
func ExtractCalendarName(label, title string) string {
	tail := ""
	if _, quoted := parse.QuotedTitle(label); quoted {
		if end := strings.Index(label, "」"); end >= 0 {
			tail = label[end+len("」"):]
		}
	} else if idx := strings.Index(label, title); idx >= 0 {
		tail = label[idx+len(title):]
	}
	if tail == "" {
		return ""
	}

	for _, cand := range strings.FieldsFunc(tail, func(r rune) bool {
		return r == ',' || r == '、'
	}) {
		cand = strings.TrimSpace(cand)
		if cand == "" || cand == title {
			continue
		}
		if parse.LooksLikeWeekday(cand) || parse.HasTimeRange(cand) {
			continue
		}
		if parse.LooksLikeDate(cand) || parse.IsBoilerplate(cand) {
			continue
		}
		return cand
	}
	return ""
}

// Filter drops events classified as someone else's. An empty alias set
// skips filtering entirely rather than discarding everything.
func Filter(events []model.Event, aliases AliasSet) []model.Event {
	if aliases.Empty() {
		return events
	}
	out := make([]model.Event, 0, len(events))
	dropped := 0
	for _, ev := range events {
		if aliases.Owns(ev.CalendarName) {
			out = append(out, ev)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		appLog.Info("events filtered by calendar ownership", "kept", len(out), "dropped", dropped)
	}
	return out
}
