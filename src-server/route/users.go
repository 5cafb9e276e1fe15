package route

import (
	"net/http"

	"parish/src-server/auth"
	"parish/src-server/model"
)

type UserRespBody struct {
	ID        int64    `json:"id"`
	UserName  string   `json:"user_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Roles     []string `json:"roles"`
	IsActive  bool     `json:"is_active"`
	CreatedAt int64    `json:"created_at"`
}

func userRespBody(user *model.User) UserRespBody {
	return UserRespBody{
		ID:        user.ID,
		UserName:  user.UserName,
		Email:     user.Email,
		Phone:     user.Phone,
		Roles:     user.GetRoles(),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// Users is the account administration, admins only.
func Users(muxer *http.ServeMux, app *App) {
	muxer.HandleFunc("GET /users", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		users, err := model.ListUsers(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		respBody := make([]UserRespBody, 0, len(users))
		for i := range users {
			respBody = append(respBody, userRespBody(&users[i]))
		}
		writeJSON(w, http.StatusOK, respBody)
	}))

	type RegisterReqBody struct {
		UserName string   `json:"user_name"`
		Email    string   `json:"email"`
		Phone    string   `json:"phone"`
		Password string   `json:"password"`
		Roles    []string `json:"roles"`
		IsActive bool     `json:"is_active"`
	}

	muxer.HandleFunc("POST /users", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		var reqBody RegisterReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		user, err := app.Users.Register(r.Context(), auth.Registration{
			UserName: reqBody.UserName,
			Email:    reqBody.Email,
			Phone:    reqBody.Phone,
			Password: reqBody.Password,
			Roles:    reqBody.Roles,
			IsActive: reqBody.IsActive,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, userRespBody(user))
	}))

	type ActiveReqBody struct {
		IsActive bool `json:"is_active"`
	}

	// (de)activate, a deactivated user is logged out on the next request
	muxer.HandleFunc("POST /users/{id}/active", AuthMiddleware(app, model.ROLE_ADMIN, func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		var reqBody ActiveReqBody
		if err := decodeJSON(r, &reqBody); err != nil {
			writeError(w, err)
			return
		}
		user, err := model.GetUserByID(r.Context(), app.BunDB, id)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := user.SetActive(r.Context(), app.BunDB, reqBody.IsActive); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, userRespBody(user))
	}))
}
