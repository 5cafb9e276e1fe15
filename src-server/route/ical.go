package route

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"parish/src-server/model"

	ical "github.com/arran4/golang-ical"
)

// Days of events the feed covers, counted back from today.
const ICAL_PAST_DAYS = 30

// Days of events the feed covers ahead of today.
const ICAL_FUTURE_DAYS = 366

// BuildCalendar renders visible events as an iCalendar feed.
func BuildCalendar(events []model.CalendarEvent, host string, loc *time.Location) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//parish//calendar//CS")
	cal.SetXWRCalName("Parish calendar")
	if loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	for i := range events {
		event := &events[i]
		vevent := cal.AddEvent(strconv.FormatInt(event.ID, 10) + "@" + host)
		vevent.SetDtStampTime(time.Unix(event.UpdatedAt, 0).UTC())
		vevent.SetCreatedTime(time.Unix(event.CreatedAt, 0).UTC())
		vevent.SetModifiedAt(time.Unix(event.UpdatedAt, 0).UTC())
		vevent.SetStartAt(event.GetStart().UTC())
		vevent.SetEndAt(event.GetEnd().UTC())

		summary := event.Title
		if event.Type != nil && event.NoteID != 0 {
			if summary == "" {
				summary = event.Type.Name
			} else {
				summary = event.Type.Name + ": " + summary
			}
		}
		vevent.SetSummary(summary)
		if event.Place != nil && event.PlaceID != 0 {
			vevent.SetLocation(event.Place.Name)
		}
		if event.Note != "" {
			vevent.SetDescription(event.Note)
		}
		if event.WebLink != "" {
			vevent.SetURL(event.WebLink)
		}
	}
	return cal
}

func Ical(muxer *http.ServeMux, app *App) {
	muxer.HandleFunc("GET /calendar.ics", func(w http.ResponseWriter, r *http.Request) {
		now := app.now()
		events, err := model.ListCalendarEvents(r.Context(), app.BunDB,
			now.AddDate(0, 0, -ICAL_PAST_DAYS),
			now.AddDate(0, 0, ICAL_FUTURE_DAYS),
			true,
		)
		if err != nil {
			writeError(w, err)
			return
		}

		cal := BuildCalendar(events, r.Host, app.Config.GetLocation())
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(cal.Serialize())); err != nil {
			slog.Warn("can't write to response", "where", "route/ical.go", "err", err)
		}
	})
}
