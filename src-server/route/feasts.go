package route

import (
	"net/http"

	"parish/src-server/model"
)

type FeastRespBody struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Detail      string `json:"detail"`
	Date        string `json:"date"`
	LevelID     int64  `json:"level_id"`
	LevelName   string `json:"level_name"`
	SpeciesID   int64  `json:"species_id"`
	SpeciesName string `json:"species_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

func feastRespBody(feast *model.Feast) FeastRespBody {
	respBody := FeastRespBody{
		ID:        feast.ID,
		Name:      feast.Name,
		Detail:    feast.Detail,
		Date:      feast.Date,
		LevelID:   feast.LevelID,
		SpeciesID: feast.SpeciesID,
		PhotoURL:  fileURL(feast.PhotoPath),
	}
	if feast.Level != nil {
		respBody.LevelName = feast.Level.Description
	}
	if feast.Species != nil {
		respBody.SpeciesName = feast.Species.Note
	}
	return respBody
}

func writeFeasts(w http.ResponseWriter, feasts []model.Feast) {
	respBody := make([]FeastRespBody, 0, len(feasts))
	for i := range feasts {
		respBody = append(respBody, feastRespBody(&feasts[i]))
	}
	writeJSON(w, http.StatusOK, respBody)
}

func Feasts(muxer *http.ServeMux, app *App) {
	// #region - catalogue
	muxer.HandleFunc("GET /feasts", func(w http.ResponseWriter, r *http.Request) {
		feasts, err := model.ListFeasts(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		writeFeasts(w, feasts)
	})

	// ?day= picks another day, YYYY-MM-DD or a phrase
	muxer.HandleFunc("GET /feasts/today", func(w http.ResponseWriter, r *http.Request) {
		day, err := app.queryDay(r, "day", app.now().In(app.Config.GetLocation()))
		if err != nil {
			writeError(w, err)
			return
		}
		feasts, err := model.FeastsOn(r.Context(), app.BunDB, day)
		if err != nil {
			writeError(w, err)
			return
		}
		writeFeasts(w, feasts)
	})

	muxer.HandleFunc("GET /feasts/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		feast, err := model.GetFeast(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, feastRespBody(feast))
	})

	// multipart form: name, detail, date (MM-DD), level_id, species_id, photo
	saveFeast := func(w http.ResponseWriter, r *http.Request, feast *model.Feast) {
		levelID, err := formInt(r, "level_id")
		if err != nil {
			writeError(w, err)
			return
		}
		speciesID, err := formInt(r, "species_id")
		if err != nil {
			writeError(w, err)
			return
		}
		feast.Name = r.FormValue("name")
		feast.Detail = r.FormValue("detail")
		feast.Date = r.FormValue("date")
		feast.LevelID, feast.SpeciesID = int64(levelID), int64(speciesID)

		photo, err := app.storePhoto(r.Context(), r)
		if err != nil {
			writeError(w, err)
			return
		}
		isNew, old := feast.ID == 0, feast.PhotoPath
		if photo != "" {
			feast.PhotoPath = photo
		}
		err = feast.Upsert(r.Context(), app.BunDB)
		app.replacePhoto(old, photo, err)
		if err != nil {
			writeError(w, err)
			return
		}

		saved, err := model.GetFeast(r.Context(), app.BunDB, feast.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		writeJSON(w, status, feastRespBody(saved))
	}

	muxer.HandleFunc("POST /feasts", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		saveFeast(w, r, new(model.Feast))
	}))

	muxer.HandleFunc("POST /feasts/{id}", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		feast, err := model.GetFeast(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		feast.Level, feast.Species = nil, nil
		saveFeast(w, r, feast)
	}))

	muxer.HandleFunc("DELETE /feasts/{id}", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DeleteFeast(r.Context(), app.BunDB, id, app.Store); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	// #endregion

	// #region - lookups
	muxer.HandleFunc("GET /feasts/levels", func(w http.ResponseWriter, r *http.Request) {
		levels, err := model.ListFeastLevels(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]NameRespBody, 0, len(levels))
		for _, level := range levels {
			respBody = append(respBody, NameRespBody{ID: level.ID, Name: level.Description})
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	muxer.HandleFunc("GET /feasts/species", func(w http.ResponseWriter, r *http.Request) {
		species, err := model.ListFeastSpecies(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]NameRespBody, 0, len(species))
		for _, s := range species {
			respBody = append(respBody, NameRespBody{ID: s.ID, Name: s.Note})
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	type NameReqBody struct {
		Name string `json:"name"`
	}

	muxer.HandleFunc("POST /feasts/levels", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		var reqBody NameReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		level := &model.FeastLevel{Description: reqBody.Name}
		if err := level.Upsert(r.Context(), app.BunDB); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NameRespBody{ID: level.ID, Name: level.Description})
	}))

	muxer.HandleFunc("POST /feasts/species", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		var reqBody NameReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		species := &model.FeastSpecies{Note: reqBody.Name}
		if err := species.Upsert(r.Context(), app.BunDB); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NameRespBody{ID: species.ID, Name: species.Note})
	}))
	// #endregion
}
