package route

import (
	"net/http"

	"parish/src-server/apperr"
	"parish/src-server/model"
	"parish/src-server/recurrence"
)

func Repeat(muxer *http.ServeMux, app *App) {
	type RepeatRespBody struct {
		Group    string `json:"group"`
		Inserted int    `json:"inserted"`
		RRule    string `json:"rrule"`
	}

	// expand a weekly rule into events, 400 when every day already exists
	muxer.HandleFunc("POST /calendar/repeat", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		req := new(recurrence.Request)
		if err := decodeJSON(r, req); err != nil {
			writeError(w, err)
			return
		}
		req.AddedBy = GetRequestContext(r).Identity.UserID

		inserted, err := app.Repeat.Generate(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, RepeatRespBody{
			Group:    req.Group,
			Inserted: inserted,
			RRule:    req.RRule(app.Config.GetLocation()),
		})
	}))

	muxer.HandleFunc("GET /calendar/repeat", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		groups, err := app.Repeat.ListGroups(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}))

	type DeleteGroupRespBody struct {
		Deleted int64 `json:"deleted"`
	}

	muxer.HandleFunc("DELETE /calendar/repeat/{group}", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		group := r.PathValue("group")
		deleted, err := app.Repeat.DeleteGroup(r.Context(), group)
		if err != nil {
			writeError(w, err)
			return
		}
		if deleted == 0 {
			writeError(w, &apperr.NotFoundError{Entity: "recurrence group", ID: group})
			return
		}
		writeJSON(w, http.StatusOK, DeleteGroupRespBody{Deleted: deleted})
	}))
}
