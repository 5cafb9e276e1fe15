package route

import (
	"log/slog"
	"net/http"
	"path"

	"parish/src-server/apperr"
)

const FILES_PREFIX = "/files/"

// fileURL is where a stored file is served from, "" for no file.
func fileURL(rel string) string {
	if rel == "" {
		return ""
	}
	return FILES_PREFIX + rel
}

// Files serves the processed uploads out of the storage directory.
func Files(muxer *http.ServeMux, app *App) {
	muxer.HandleFunc("GET /files/{filepath...}", func(w http.ResponseWriter, r *http.Request) {
		rel := path.Clean(r.PathValue("filepath"))
		if rel == "." || !app.Store.Exists(rel) {
			writeError(w, &apperr.NotFoundError{Entity: "file", ID: rel})
			return
		}

		file, err := app.Store.Open(rel)
		if err != nil {
			writeError(w, err)
			return
		}
		defer file.Close()

		stat, err := file.Stat()
		if err != nil {
			slog.Error("can't stat stored file", "path", rel, "err", err)
			writeError(w, err)
			return
		}
		// names are random and never reused
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	})
}
