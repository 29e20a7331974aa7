package model

import "regexp"

// Meeting URL patterns for the major conferencing services. First match
// wins, in this order.
var meetingURLPatterns = []*regexp.Regexp{
	// Google Meet
	regexp.MustCompile(`https://meet\.google\.com/[a-z]{3}-[a-z]{4}-[a-z]{3}`),
	// Zoom
	regexp.MustCompile(`https://[\w.-]*zoom\.us/j/\d+(?:\?pwd=[\w]+)?`),
	// Microsoft Teams
	regexp.MustCompile(`https://teams\.microsoft\.com/l/meetup-join/[\w%.-]+`),
	// Webex
	regexp.MustCompile(`https://[\w.-]*\.webex\.com/[\w/.-]+`),
}

// ExtractMeetingURL returns the first conferencing URL found in text, or
// the empty string.
func ExtractMeetingURL(text string) string {
	if text == "" {
		return ""
	}
	for _, p := range meetingURLPatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
