// Package export serializes the normalized event set as an iCalendar feed,
// the interop surface for anything that wants the schedule outside the
// local API.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	ical "github.com/arran4/golang-ical"

	"calbar/internal/model"
)

// ICS renders events as a VCALENDAR. UIDs are derived from the event key
// so repeated exports of the same schedule are stable.
func ICS(events []model.Event, now time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//calbar//calbar//JA")

	for _, ev := range events {
		ve := cal.AddEvent(eventUID(ev))
		ve.SetDtStampTime(now)
		ve.SetSummary(ev.Title)

		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(ev.End)
		} else {
			ve.SetStartAt(ev.Start)
			ve.SetEndAt(ev.End)
		}

		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.MeetingURL != "" {
			ve.SetURL(ev.MeetingURL)
		}
	}

	return []byte(cal.Serialize())
}

func eventUID(ev model.Event) string {
	sum := sha256.Sum256([]byte(ev.Key()))
	return hex.EncodeToString(sum[:8]) + "@calbar"
}
