// Package recurrence expands a weekly rule into concrete calendar rows.
package recurrence

import (
	"slices"
	"strings"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/utils"

	"github.com/teambition/rrule-go"
)

// Longest range one request may cover, in days.
const MAX_RANGE_DAYS = 2 * 366

const TIME_LAYOUT = "15:04"

// time.Weekday order, 0 = Sunday
var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

type Request struct {
	DateFrom  string `json:"date_from"`  // YYYY-MM-DD, first day
	DateTill  string `json:"date_till"`  // YYYY-MM-DD, last day, inclusive
	TimeStart string `json:"time_start"` // HH:MM
	TimeEnd   string `json:"time_end"`   // HH:MM, before TimeStart means the next day
	Weekdays  []int  `json:"weekdays"`   // 0 = Sunday .. 6 = Saturday

	NoteID  int64  `json:"note_id"`
	PlaceID int64  `json:"place_id"`
	Title   string `json:"title"`
	Note    string `json:"note"`
	AddedBy int64  `json:"-"`
	// filled with a fresh id when empty
	Group string `json:"group"`
}

// window is a validated Request.
type window struct {
	from, till time.Time
	start, end time.Duration // offsets from midnight
	weekdays   []rrule.Weekday
}

func invalid(field, msg string, err error) error {
	return &apperr.ValidationError{Field: field, Msg: msg, Err: err}
}

// Validate reports the first malformed field as *apperr.ValidationError.
func (r *Request) Validate(loc *time.Location) error {
	_, err := r.parse(loc)
	return err
}

func (r *Request) parse(loc *time.Location) (*window, error) {
	if loc == nil {
		loc = time.UTC
	}
	w := new(window)

	from, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(r.DateFrom), loc)
	if err != nil {
		return nil, invalid("date_from", "expected a YYYY-MM-DD date", err)
	}
	till, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(r.DateTill), loc)
	if err != nil {
		return nil, invalid("date_till", "expected a YYYY-MM-DD date", err)
	}
	switch {
	case till.Before(from):
		return nil, invalid("date_till", "the last day is before the first day", nil)
	case till.Sub(from) > MAX_RANGE_DAYS*24*time.Hour:
		return nil, invalid("date_till", "the range is too long", nil)
	}
	w.from, w.till = from, till

	if w.start, err = parseClock(r.TimeStart); err != nil {
		return nil, invalid("time_start", "expected a HH:MM time", err)
	}
	if w.end, err = parseClock(r.TimeEnd); err != nil {
		return nil, invalid("time_end", "expected a HH:MM time", err)
	}

	if len(r.Weekdays) == 0 {
		return nil, invalid("weekdays", "select at least one day of the week", nil)
	}
	days := slices.Clone(r.Weekdays)
	slices.Sort(days)
	for _, d := range slices.Compact(days) {
		if d < 0 || d > 6 {
			return nil, invalid("weekdays", "day of the week must be 0 (Sunday) to 6 (Saturday)", nil)
		}
		w.weekdays = append(w.weekdays, weekdays[d])
	}

	if r.NoteID < 0 {
		return nil, invalid("note_id", "unknown event type", nil)
	}
	if r.PlaceID < 0 {
		return nil, invalid("place_id", "unknown place", nil)
	}
	return w, nil
}

func parseClock(text string) (time.Duration, error) {
	t, err := time.Parse(TIME_LAYOUT, strings.TrimSpace(text))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (w *window) rule() (*rrule.RRule, error) {
	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   w.from,
		Until:     w.till,
		Byweekday: w.weekdays,
	})
}

// days lists the matching days of the range, at midnight.
func (w *window) days() ([]time.Time, error) {
	rule, err := w.rule()
	if err != nil {
		return nil, err
	}
	return rule.All(), nil
}

// at places the window on day, an end before the start lands on the next day.
func (w *window) at(day time.Time) (start, end time.Time) {
	start = clockOn(day, w.start)
	end = clockOn(day, w.end)
	if end.Before(start) {
		end = clockOn(day.AddDate(0, 0, 1), w.end)
	}
	return start, end
}

// clockOn keeps wall clock time across DST changes.
func clockOn(day time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

// RRule renders the request as an iCalendar rule, "" when it doesn't validate.
func (r *Request) RRule(loc *time.Location) string {
	w, err := r.parse(loc)
	if err != nil {
		return ""
	}
	rule, err := w.rule()
	if err != nil {
		return ""
	}
	return rule.String()
}

// normalizedTitle is the title as it is stored, so duplicates compare equal.
func (r *Request) normalizedTitle() string {
	return utils.CleanupString(r.Title)
}
