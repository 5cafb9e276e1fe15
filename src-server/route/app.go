package route

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"parish/src-server/auth"
	"parish/src-server/imageproc"
	"parish/src-server/mailer"
	"parish/src-server/recurrence"
	"parish/src-server/storage"
	"parish/src-server/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Largest accepted upload, in bytes.
const MAX_UPLOAD_BYTES = 20 << 20

// App is the AppState plus the services the handlers call into.
type App struct {
	*utils.AppState

	Store    *storage.Manager
	Images   *imageproc.Processor
	Auth     *auth.Authenticator
	Sessions *auth.Sessions
	Users    *auth.Users
	Repeat   *recurrence.Generator
	Mail     mailer.Sender

	now func() time.Time
}

func NewApp(as *utils.AppState) (*App, error) {
	store, err := storage.NewManager(as.Config.GetStorageDir())
	if err != nil {
		return nil, fmt.Errorf("NewApp: %w", err)
	}
	mail := mailer.FromConfig(as.Config)
	authenticator := auth.NewAuthenticator(as.BunDB)
	sessions := auth.NewSessions(as.BunDB, authenticator, as.Config.GetSessionSecret(), as.Config.GetSessionExpire())
	sessions.SecureCookie = strings.HasPrefix(as.Config.GetPublicURL(), "https://")

	return &App{
		AppState: as,
		Store:    store,
		Images:   imageproc.NewProcessor(store, imageproc.OptionsFromConfig(as.Config), as.MetricChans),
		Auth:     authenticator,
		Sessions: sessions,
		Users:    auth.NewUsers(as.BunDB, authenticator, mail, as.Config.GetPublicURL()),
		Repeat:   recurrence.FromAppState(as),
		Mail:     mail,
		now:      time.Now,
	}, nil
}

// SetClock replaces time.Now for the handlers, tests only.
func (app *App) SetClock(now func() time.Time) {
	app.now = now
}

// NewMux registers every route of the API.
func NewMux(app *App) *http.ServeMux {
	muxer := http.NewServeMux()
	muxer.Handle("GET /metrics", promhttp.Handler())
	Auth(muxer, app)
	Users(muxer, app)
	Calendar(muxer, app)
	Repeat(muxer, app)
	Ical(muxer, app)
	Posts(muxer, app)
	Bells(muxer, app)
	Feasts(muxer, app)
	Tickets(muxer, app)
	Releases(muxer, app)
	Files(muxer, app)
	Sitemap(muxer, app)
	return muxer
}
