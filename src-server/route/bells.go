package route

import (
	"net/http"

	"parish/src-server/model"
)

type WorkshopRespBody struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	Note     string `json:"note"`
	PhotoURL string `json:"photo_url,omitempty"`
}

type BellRespBody struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	PlaceID     int64             `json:"place_id"`
	PlaceName   string            `json:"place_name"`
	WorkshopID  int64             `json:"workshop_id"`
	Workshop    *WorkshopRespBody `json:"workshop,omitempty"`
	CastYear    int               `json:"cast_year"`
	WeightKg    int               `json:"weight_kg"`
	DiameterCm  int               `json:"diameter_cm"`
	Tone        string            `json:"tone"`
	Inscription string            `json:"inscription"`
	Note        string            `json:"note"`
	PhotoURL    string            `json:"photo_url,omitempty"`
}

func workshopRespBody(workshop *model.Workshop) WorkshopRespBody {
	return WorkshopRespBody{
		ID:       workshop.ID,
		Name:     workshop.Name,
		City:     workshop.City,
		Note:     workshop.Note,
		PhotoURL: fileURL(workshop.PhotoPath),
	}
}

func bellRespBody(bell *model.Bell) BellRespBody {
	respBody := BellRespBody{
		ID:          bell.ID,
		Name:        bell.Name,
		PlaceID:     bell.PlaceID,
		WorkshopID:  bell.WorkshopID,
		CastYear:    bell.CastYear,
		WeightKg:    bell.WeightKg,
		DiameterCm:  bell.DiameterCm,
		Tone:        bell.Tone,
		Inscription: bell.Inscription,
		Note:        bell.Note,
		PhotoURL:    fileURL(bell.PhotoPath),
	}
	// an unset foreign key may still leave an empty joined struct
	if bell.Place != nil && bell.PlaceID != 0 {
		respBody.PlaceName = bell.Place.Name
	}
	if bell.Workshop != nil && bell.WorkshopID != 0 {
		workshop := workshopRespBody(bell.Workshop)
		respBody.Workshop = &workshop
	}
	return respBody
}

func Bells(muxer *http.ServeMux, app *App) {
	// #region - bells
	muxer.HandleFunc("GET /bells", func(w http.ResponseWriter, r *http.Request) {
		bells, err := model.ListBells(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]BellRespBody, 0, len(bells))
		for i := range bells {
			respBody = append(respBody, bellRespBody(&bells[i]))
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	muxer.HandleFunc("GET /bells/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		bell, err := model.GetBell(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bellRespBody(bell))
	})

	// multipart form: name, place_id, workshop_id, cast_year, weight_kg,
	// diameter_cm, tone, inscription, note, photo
	saveBell := func(w http.ResponseWriter, r *http.Request, bell *model.Bell) {
		numbers := map[string]*int{"cast_year": &bell.CastYear, "weight_kg": &bell.WeightKg, "diameter_cm": &bell.DiameterCm}
		for field, dst := range numbers {
			n, err := formInt(r, field)
			if err != nil {
				writeError(w, err)
				return
			}
			*dst = n
		}
		placeID, err := formInt(r, "place_id")
		if err != nil {
			writeError(w, err)
			return
		}
		workshopID, err := formInt(r, "workshop_id")
		if err != nil {
			writeError(w, err)
			return
		}
		bell.Name = r.FormValue("name")
		bell.PlaceID, bell.WorkshopID = int64(placeID), int64(workshopID)
		bell.Tone = r.FormValue("tone")
		bell.Inscription = r.FormValue("inscription")
		bell.Note = r.FormValue("note")

		photo, err := app.storePhoto(r.Context(), r)
		if err != nil {
			writeError(w, err)
			return
		}
		isNew, old := bell.ID == 0, bell.PhotoPath
		if photo != "" {
			bell.PhotoPath = photo
		}
		err = bell.Upsert(r.Context(), app.BunDB)
		app.replacePhoto(old, photo, err)
		if err != nil {
			writeError(w, err)
			return
		}

		saved, err := model.GetBell(r.Context(), app.BunDB, bell.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		writeJSON(w, status, bellRespBody(saved))
	}

	muxer.HandleFunc("POST /bells", AuthMiddleware(app, model.ROLE_BELLS, func(w http.ResponseWriter, r *http.Request) {
		saveBell(w, r, new(model.Bell))
	}))

	muxer.HandleFunc("POST /bells/{id}", AuthMiddleware(app, model.ROLE_BELLS, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		bell, err := model.GetBell(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		bell.Place, bell.Workshop = nil, nil
		saveBell(w, r, bell)
	}))

	muxer.HandleFunc("DELETE /bells/{id}", AuthMiddleware(app, model.ROLE_BELLS, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DeleteBell(r.Context(), app.BunDB, id, app.Store); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	// #endregion

	// #region - workshops
	muxer.HandleFunc("GET /workshops", func(w http.ResponseWriter, r *http.Request) {
		workshops, err := model.ListWorkshops(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]WorkshopRespBody, 0, len(workshops))
		for i := range workshops {
			respBody = append(respBody, workshopRespBody(&workshops[i]))
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	// multipart form: name, city, note, photo
	saveWorkshop := func(w http.ResponseWriter, r *http.Request, workshop *model.Workshop) {
		workshop.Name = r.FormValue("name")
		workshop.City = r.FormValue("city")
		workshop.Note = r.FormValue("note")

		photo, err := app.storePhoto(r.Context(), r)
		if err != nil {
			writeError(w, err)
			return
		}
		isNew, old := workshop.ID == 0, workshop.PhotoPath
		if photo != "" {
			workshop.PhotoPath = photo
		}
		err = workshop.Upsert(r.Context(), app.BunDB)
		app.replacePhoto(old, photo, err)
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		writeJSON(w, status, workshopRespBody(workshop))
	}

	muxer.HandleFunc("POST /workshops", AuthMiddleware(app, model.ROLE_BELLS, func(w http.ResponseWriter, r *http.Request) {
		saveWorkshop(w, r, new(model.Workshop))
	}))

	muxer.HandleFunc("POST /workshops/{id}", AuthMiddleware(app, model.ROLE_BELLS, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		workshop, err := model.GetWorkshop(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		saveWorkshop(w, r, workshop)
	}))

	muxer.HandleFunc("DELETE /workshops/{id}", AuthMiddleware(app, model.ROLE_BELLS, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DeleteWorkshop(r.Context(), app.BunDB, id, app.Store); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	// #endregion
}
