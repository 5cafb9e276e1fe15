package route

import (
	"log/slog"
	"net/http"
)

func Auth(muxer *http.ServeMux, app *App) {
	type LoginReqBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// login
	muxer.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var reqBody LoginReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		identity, err := app.Auth.Authenticate(r.Context(), reqBody.Email, reqBody.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		cookie, err := app.Sessions.Create(r.Context(), identity, r)
		if err != nil {
			writeError(w, err)
			return
		}
		http.SetCookie(w, cookie)
		slog.Info("user logged in", "user", identity.UserID)
		writeJSON(w, http.StatusOK, identity)
	})

	// logout
	muxer.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := app.Sessions.Destroy(r.Context(), r)
		if err != nil {
			writeError(w, err)
			return
		}
		http.SetCookie(w, cookie)
		w.WriteHeader(http.StatusNoContent)
	})

	// who am I, 401 for visitors
	muxer.HandleFunc("GET /auth/me", AuthMiddleware(app, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, GetRequestContext(r).Identity)
	}))

	type ResetRequestReqBody struct {
		Email string `json:"email"`
	}

	// ask for a reset link, always 202 so nobody learns which e-mails exist
	muxer.HandleFunc("POST /auth/reset-request", func(w http.ResponseWriter, r *http.Request) {
		var reqBody ResetRequestReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		if err := app.Users.RequestPasswordReset(r.Context(), reqBody.Email); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	type ResetReqBody struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}

	muxer.HandleFunc("POST /auth/reset", func(w http.ResponseWriter, r *http.Request) {
		var reqBody ResetReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		if err := app.Users.ResetPassword(r.Context(), reqBody.Token, reqBody.Password); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	type ChangePasswordReqBody struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}

	muxer.HandleFunc("POST /auth/password", AuthMiddleware(app, "", func(w http.ResponseWriter, r *http.Request) {
		var reqBody ChangePasswordReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		identity := GetRequestContext(r).Identity
		if err := app.Users.ChangePassword(r.Context(), identity.UserID, reqBody.CurrentPassword, reqBody.NewPassword); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}
