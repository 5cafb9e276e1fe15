package route

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/utils"
)

type ErrorRespBody struct {
	Error string `json:"error"`
}

type ListRespBody[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	respBodyJson, err := json.Marshal(body)
	if err != nil {
		slog.Error("can't marshal response body", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Can't marshal response body"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(respBodyJson)
}

// writeError answers with the status and message of the error taxonomy,
// anything unexpected is logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	} else {
		slog.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, ErrorRespBody{Error: apperr.UserMessage(err)})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &apperr.ValidationError{Field: "body", Msg: "invalid request body", Err: err}
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &apperr.ValidationError{Field: name, Msg: "expected a positive number", Err: err}
	}
	return id, nil
}

// formInt reads an optional integer field, blank is 0.
func formInt(r *http.Request, field string) (int, error) {
	text := strings.TrimSpace(r.FormValue(field))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &apperr.ValidationError{Field: field, Msg: "expected a number", Err: err}
	}
	return n, nil
}

// queryPage reads limit and offset, limit is clamped to 1..100.
func queryPage(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = max(1, min(100, n))
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}

// queryDay reads a day parameter as YYYY-MM-DD or a phrase like "next monday",
// blank gives fallback.
func (app *App) queryDay(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	text := strings.TrimSpace(r.URL.Query().Get(key))
	if text == "" {
		return fallback, nil
	}
	day, err := utils.ParseDay(app.When, text, app.now(), app.Config.GetLocation())
	if err != nil {
		return time.Time{}, &apperr.ValidationError{Field: key, Msg: "expected a date", Err: err}
	}
	return day, nil
}
