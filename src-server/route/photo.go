package route

import (
	"context"
	"log/slog"
	"net/http"

	"parish/src-server/storage"
)

const PHOTO_FIELD = "photo"

// storePhoto runs the optional photo field through the image pipeline,
// "" when the form carries no file.
func (app *App) storePhoto(ctx context.Context, r *http.Request) (string, error) {
	hasFile, err := storage.HasFile(r, PHOTO_FIELD)
	if err != nil || !hasFile {
		return "", err
	}
	return app.Images.Process(ctx, storage.FromRequest(r, PHOTO_FIELD, MAX_UPLOAD_BYTES))
}

// replacePhoto finishes an edit: a new photo replaces the old one on disk.
// When the edit failed the new file is dropped instead.
func (app *App) replacePhoto(old, fresh string, saveErr error) {
	switch {
	case fresh == "":
	case saveErr != nil:
		app.Store.Discard(fresh)
	case old != "" && old != fresh:
		if err := app.Store.Delete(old); err != nil {
			slog.Warn("can't remove replaced photo", "path", old, "error", err)
		}
	}
}
