package route

import (
	"net/http"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/model"
)

type OneEventRespBody struct {
	ID        int64  `json:"id"`
	StartDate int64  `json:"start_date"`
	EndDate   int64  `json:"end_date"`
	NoteID    int64  `json:"note_id"`
	TypeName  string `json:"type_name"`
	PlaceID   int64  `json:"place_id"`
	PlaceName string `json:"place_name"`
	Title     string `json:"title"`
	Note      string `json:"note"`
	Person    string `json:"person"`
	Content   string `json:"content"`
	WebLink   string `json:"web_link"`
	IsVisible bool   `json:"is_visible"`
	GroupID   string `json:"group_id,omitempty"`
}

func eventRespBody(event *model.CalendarEvent) OneEventRespBody {
	respBody := OneEventRespBody{
		ID:        event.ID,
		StartDate: event.StartDate,
		EndDate:   event.EndDate,
		NoteID:    event.NoteID,
		PlaceID:   event.PlaceID,
		Title:     event.Title,
		Note:      event.Note,
		Person:    event.Person,
		Content:   event.Content,
		WebLink:   event.WebLink,
		IsVisible: event.IsVisible,
		GroupID:   event.GroupID,
	}
	if event.Type != nil && event.NoteID != 0 {
		respBody.TypeName = event.Type.Name
	}
	if event.Place != nil && event.PlaceID != 0 {
		respBody.PlaceName = event.Place.Name
	}
	return respBody
}

type NameRespBody struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func Calendar(muxer *http.ServeMux, app *App) {
	// events overlapping [from, to], both days inclusive, a week from today by default;
	// visitors only see visible events
	muxer.HandleFunc("GET /calendar/events", SessionMiddleware(app, func(w http.ResponseWriter, r *http.Request) {
		loc := app.Config.GetLocation()
		today := app.now().In(loc)
		today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

		// #region - parse range
		from, err := app.queryDay(r, "from", today)
		if err != nil {
			writeError(w, err)
			return
		}
		to, err := app.queryDay(r, "to", from.AddDate(0, 0, 6))
		if err != nil {
			writeError(w, err)
			return
		}
		if to.Before(from) {
			writeError(w, &apperr.ValidationError{Field: "to", Msg: "the last day is before the first day"})
			return
		}
		// #endregion

		visibleOnly := !GetRequestContext(r).Identity.HasRole(model.ROLE_EDITOR)
		events, err := model.ListCalendarEvents(r.Context(), app.BunDB, from, to.AddDate(0, 0, 1), visibleOnly)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]OneEventRespBody, 0, len(events))
		for i := range events {
			respBody = append(respBody, eventRespBody(&events[i]))
		}
		writeJSON(w, http.StatusOK, respBody)
	}))

	muxer.HandleFunc("GET /calendar/events/{id}", SessionMiddleware(app, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		event, err := model.GetCalendarEvent(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !event.IsVisible && !GetRequestContext(r).Identity.HasRole(model.ROLE_EDITOR) {
			writeError(w, &apperr.NotFoundError{Entity: "event", ID: id})
			return
		}
		writeJSON(w, http.StatusOK, eventRespBody(event))
	}))

	type EventReqBody struct {
		StartDate int64  `json:"start_date"`
		EndDate   int64  `json:"end_date"`
		NoteID    int64  `json:"note_id"`
		PlaceID   int64  `json:"place_id"`
		Title     string `json:"title"`
		Note      string `json:"note"`
		Person    string `json:"person"`
		Content   string `json:"content"`
		WebLink   string `json:"web_link"`
		IsVisible bool   `json:"is_visible"`
	}

	saveEvent := func(w http.ResponseWriter, r *http.Request, id int64) {
		var reqBody EventReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		event := &model.CalendarEvent{
			ID:        id,
			StartDate: reqBody.StartDate,
			EndDate:   reqBody.EndDate,
			NoteID:    reqBody.NoteID,
			PlaceID:   reqBody.PlaceID,
			Title:     reqBody.Title,
			Note:      reqBody.Note,
			Person:    reqBody.Person,
			Content:   reqBody.Content,
			WebLink:   reqBody.WebLink,
			IsVisible: reqBody.IsVisible,
			AddedBy:   GetRequestContext(r).Identity.UserID,
		}
		startTimer := time.Now()
		if err := event.Upsert(r.Context(), app.BunDB); err != nil {
			writeError(w, err)
			return
		}
		app.MetricChans.Push(app.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))

		saved, err := model.GetCalendarEvent(r.Context(), app.BunDB, event.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if id == 0 {
			status = http.StatusCreated
		}
		writeJSON(w, status, eventRespBody(saved))
	}

	muxer.HandleFunc("POST /calendar/events", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		saveEvent(w, r, 0)
	}))

	muxer.HandleFunc("PUT /calendar/events/{id}", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		saveEvent(w, r, id)
	}))

	muxer.HandleFunc("DELETE /calendar/events/{id}", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DeleteCalendarEvent(r.Context(), app.BunDB, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	type VisibilityReqBody struct {
		IsVisible bool `json:"is_visible"`
	}

	muxer.HandleFunc("POST /calendar/events/{id}/visibility", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		var reqBody VisibilityReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		if err := model.SetCalendarEventVisibility(r.Context(), app.BunDB, id, reqBody.IsVisible); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	// visible events not finished yet, counted per type
	muxer.HandleFunc("GET /calendar/upcoming", func(w http.ResponseWriter, r *http.Request) {
		summary, err := model.UpcomingEventSummary(r.Context(), app.BunDB, app.now())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	// #region - lookups
	muxer.HandleFunc("GET /calendar/types", func(w http.ResponseWriter, r *http.Request) {
		notes, err := model.ListCalendarNotes(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]NameRespBody, 0, len(notes))
		for _, note := range notes {
			respBody = append(respBody, NameRespBody{ID: note.ID, Name: note.Name})
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	muxer.HandleFunc("GET /calendar/places", func(w http.ResponseWriter, r *http.Request) {
		places, err := model.ListPlaces(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]NameRespBody, 0, len(places))
		for _, place := range places {
			respBody = append(respBody, NameRespBody{ID: place.ID, Name: place.Name})
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	type NameReqBody struct {
		Name string `json:"name"`
	}

	muxer.HandleFunc("POST /calendar/types", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		var reqBody NameReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		note := &model.CalendarNote{Name: reqBody.Name}
		if err := note.Upsert(r.Context(), app.BunDB); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NameRespBody{ID: note.ID, Name: note.Name})
	}))

	muxer.HandleFunc("POST /calendar/places", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		var reqBody NameReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		place := &model.Place{Name: reqBody.Name}
		if err := place.Upsert(r.Context(), app.BunDB); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NameRespBody{ID: place.ID, Name: place.Name})
	}))
	// #endregion
}
