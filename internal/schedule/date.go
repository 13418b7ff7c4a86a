// Package schedule parses event dates and computes the reminder deadline.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"

	"github.com/jason-s-yu/tourney/internal/models"
)

var layouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// ParseEventDate reads an event date given as a timestamp or in English
// ("next saturday at 8pm"). Empty text means no date.
func ParseEventDate(text string, now time.Time, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	r, err := w.Parse(strings.ToLower(text), now.In(loc))
	if err != nil {
		return time.Time{}, models.UserErrorf("could not read the date %q: %v", text, err)
	}
	if r == nil {
		return time.Time{}, models.UserErrorf("could not read the date %q", text)
	}
	return r.Time.In(loc), nil
}

// ReminderAt is when the pre-event reminder fires, or zero when there is none.
func ReminderAt(date time.Time, lead time.Duration) time.Time {
	if date.IsZero() {
		return time.Time{}
	}
	return date.Add(-lead)
}

// Describe renders the date for announcements.
func Describe(date time.Time) string {
	if date.IsZero() {
		return "TBD"
	}
	return fmt.Sprintf("%s (%s)", date.Format("Mon Jan 2, 3:04 PM"), date.Format("MST"))
}
