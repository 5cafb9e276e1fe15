package route

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/auth"
)

type RequestCtxKeyType string

const RequestCtxKey RequestCtxKeyType = "request"

// RequestContext is what one request knows about its caller, built by the
// middlewares and passed down in the request context.
type RequestContext struct {
	Session  *auth.Session
	Identity *auth.Identity // nil for anonymous visitors
	IP       string
}

// GetRequestContext never returns nil, an unresolved request is anonymous.
func GetRequestContext(r *http.Request) *RequestContext {
	if rc, ok := r.Context().Value(RequestCtxKey).(*RequestContext); ok && rc != nil {
		return rc
	}
	return &RequestContext{}
}

// SessionMiddleware resolves the session cookie, if any, and lets every
// request through.
func SessionMiddleware(app *App, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := &RequestContext{IP: r.RemoteAddr}

		startTimer := time.Now()
		session, err := app.Sessions.Resolve(r.Context(), r)
		if err != nil {
			slog.Error("can't resolve session", "error", err)
			writeError(w, err)
			return
		}
		app.MetricChans.Push(app.MetricChans.DatabaseRead, float64(time.Since(startTimer).Microseconds()))

		if session != nil {
			rc.Session = session
			rc.Identity = session.Identity
		} else if _, err := r.Cookie(auth.SESSION_COOKIE_NAME); err == nil {
			// stale cookie, the session is gone
			http.SetCookie(w, app.Sessions.ClearCookie())
		}

		ctx := context.WithValue(r.Context(), RequestCtxKey, rc)
		next(w, r.WithContext(ctx))
	}
}

// AuthMiddleware requires a logged-in caller holding role, "" accepts any
// logged-in caller.
func AuthMiddleware(app *App, role string, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return SessionMiddleware(app, func(w http.ResponseWriter, r *http.Request) {
		rc := GetRequestContext(r)
		switch {
		case rc.Identity == nil:
			writeError(w, &apperr.AuthError{Reason: apperr.AuthNotLoggedIn})
			return
		case role != "" && !rc.Identity.HasRole(role):
			writeError(w, &apperr.ForbiddenError{Action: "act as " + role})
			return
		}
		next(w, r)
	})
}
