package route

import (
	"net/http"
	"strings"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/model"
)

func Releases(muxer *http.ServeMux, app *App) {
	type ReleaseRespBody struct {
		ID         int64  `json:"id"`
		Version    string `json:"version"`
		Note       string `json:"note"`
		ReleasedAt int64  `json:"released_at"`
	}

	muxer.HandleFunc("GET /releases", func(w http.ResponseWriter, r *http.Request) {
		limit, offset := queryPage(r)
		releases, total, err := model.ListReleases(r.Context(), app.BunDB, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := ListRespBody[ReleaseRespBody]{Items: make([]ReleaseRespBody, 0, len(releases)), Total: total}
		for _, release := range releases {
			respBody.Items = append(respBody.Items, ReleaseRespBody{
				ID:         release.ID,
				Version:    release.Version,
				Note:       release.Note,
				ReleasedAt: release.ReleasedAt,
			})
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	type ReleaseReqBody struct {
		Version    string `json:"version"`
		Note       string `json:"note"`
		ReleasedAt string `json:"released_at"` // YYYY-MM-DD, today when blank
	}

	// add or update by version
	muxer.HandleFunc("POST /releases", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		var reqBody ReleaseReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		release := &model.Release{Version: reqBody.Version, Note: strings.TrimSpace(reqBody.Note)}
		if text := strings.TrimSpace(reqBody.ReleasedAt); text != "" {
			day, err := time.ParseInLocation(time.DateOnly, text, app.Config.GetLocation())
			if err != nil {
				writeError(w, &apperr.ValidationError{Field: "released_at", Msg: "expected a YYYY-MM-DD date", Err: err})
				return
			}
			release.ReleasedAt = day.Unix()
		} else {
			release.ReleasedAt = app.now().Unix()
		}
		if err := release.Upsert(r.Context(), app.BunDB); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ReleaseRespBody{
			ID:         release.ID,
			Version:    release.Version,
			Note:       release.Note,
			ReleasedAt: release.ReleasedAt,
		})
	}))

	muxer.HandleFunc("DELETE /releases/{id}", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DeleteRelease(r.Context(), app.BunDB, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}
