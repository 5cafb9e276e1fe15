package route

import (
	"net/http"
	"strings"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/model"
)

type PostRespBody struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Content     string `json:"content"`
	Kind        string `json:"kind"`
	PhotoURL    string `json:"photo_url,omitempty"`
	PublishedAt int64  `json:"published_at"`
}

func postRespBody(post *model.Post) PostRespBody {
	return PostRespBody{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		Content:     post.Content,
		Kind:        string(post.Kind),
		PhotoURL:    fileURL(post.PhotoPath),
		PublishedAt: post.PublishedAt,
	}
}

func Posts(muxer *http.ServeMux, app *App) {
	muxer.HandleFunc("GET /posts", func(w http.ResponseWriter, r *http.Request) {
		kind := model.PostKind(r.URL.Query().Get("kind"))
		if kind != "" && !kind.IsValid() {
			writeError(w, &apperr.ValidationError{Field: "kind", Msg: "unknown post kind"})
			return
		}
		limit, offset := queryPage(r)
		posts, total, err := model.ListPosts(r.Context(), app.BunDB, kind, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := ListRespBody[PostRespBody]{Items: make([]PostRespBody, 0, len(posts)), Total: total}
		for i := range posts {
			respBody.Items = append(respBody.Items, postRespBody(&posts[i]))
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	muxer.HandleFunc("GET /posts/{slug}", func(w http.ResponseWriter, r *http.Request) {
		post, err := model.GetPostBySlug(r.Context(), app.BunDB, r.PathValue("slug"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, postRespBody(post))
	})

	// multipart form: title, content, kind, published_at (YYYY-MM-DD), photo
	savePost := func(w http.ResponseWriter, r *http.Request, post *model.Post) {
		post.Title = r.FormValue("title")
		post.Content = strings.TrimSpace(r.FormValue("content"))
		post.Kind = model.PostKind(r.FormValue("kind"))
		if published := strings.TrimSpace(r.FormValue("published_at")); published != "" {
			day, err := time.ParseInLocation(time.DateOnly, published, app.Config.GetLocation())
			if err != nil {
				writeError(w, &apperr.ValidationError{Field: "published_at", Msg: "expected a YYYY-MM-DD date", Err: err})
				return
			}
			post.PublishedAt = day.Unix()
		}

		photo, err := app.storePhoto(r.Context(), r)
		if err != nil {
			writeError(w, err)
			return
		}
		isNew, old := post.ID == 0, post.PhotoPath
		if photo != "" {
			post.PhotoPath = photo
		}
		err = post.Upsert(r.Context(), app.BunDB)
		app.replacePhoto(old, photo, err)
		if err != nil {
			writeError(w, err)
			return
		}

		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		writeJSON(w, status, postRespBody(post))
	}

	muxer.HandleFunc("POST /posts", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		savePost(w, r, &model.Post{AddedBy: GetRequestContext(r).Identity.UserID})
	}))

	muxer.HandleFunc("POST /posts/{id}", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		post, err := model.GetPost(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		savePost(w, r, post)
	}))

	muxer.HandleFunc("DELETE /posts/{id}", AuthMiddleware(app, model.ROLE_EDITOR, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := model.DeletePost(r.Context(), app.BunDB, id, app.Store); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}
