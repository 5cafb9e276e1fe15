package route

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"parish/src-server/model"
)

const SITEMAP_XMLNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type SitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// siteBase is PUBLIC_URL, or the address the request came to when unset.
func (app *App) siteBase(r *http.Request) string {
	if base := strings.TrimRight(app.Config.GetPublicURL(), "/"); base != "" {
		return base
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func Sitemap(muxer *http.ServeMux, app *App) {
	muxer.HandleFunc("GET /sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		calendarChange, err := model.LastCalendarChange(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}
		posts, err := model.ListPublishedPosts(r.Context(), app.BunDB)
		if err != nil {
			writeError(w, err)
			return
		}

		loc := app.Config.GetLocation()
		day := func(unix int64) string {
			if unix <= 0 {
				return ""
			}
			return time.Unix(unix, 0).In(loc).Format(time.DateOnly)
		}
		base := app.siteBase(r)
		url := func(path string, lastMod int64, changeFreq string, priority float64) SitemapURL {
			return SitemapURL{
				Loc:        base + path,
				LastMod:    day(lastMod),
				ChangeFreq: changeFreq,
				Priority:   fmt.Sprintf("%.1f", priority),
			}
		}

		var postChange int64
		for _, post := range posts {
			postChange = max(postChange, post.UpdatedAt)
		}

		urlSet := SitemapURLSet{Xmlns: SITEMAP_XMLNS}
		urlSet.URLs = append(urlSet.URLs,
			url("/", max(calendarChange, postChange), "monthly", 0.6),
			url("/calendar", calendarChange, "weekly", 0.8),
			url("/posts", postChange, "weekly", 0.7),
			url("/feasts", 0, "yearly", 0.3),
			url("/bells", 0, "yearly", 0.2),
		)
		for _, post := range posts {
			urlSet.URLs = append(urlSet.URLs, url("/posts/"+post.Slug, post.UpdatedAt, "monthly", 0.5))
		}

		raw, err := xml.MarshalIndent(urlSet, "", "  ")
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(xml.Header))
		w.Write(raw)
	})
}
