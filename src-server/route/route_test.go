package route_test

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parish/src-server/auth"
	"parish/src-server/model"
	"parish/src-server/route"
	"parish/src-server/testutils"
	"parish/src-server/utils"

	ical "github.com/arran4/golang-ical"
	"golang.org/x/crypto/bcrypt"
)

// Monday
var testNow = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type harness struct {
	app    *route.App
	mux    http.Handler
	outbox *testutils.Outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("STORAGE_DIR", t.TempDir())
	t.Setenv("SESSION_SECRET", "route-test-secret")
	t.Setenv("ADMIN_EMAIL", "spravce@farnost.example")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("PUBLIC_URL", "https://farnost.example")

	db := testutils.NewDB(t)
	as := utils.NewAppStateWithDB(utils.NewConfig(), db.DB, db)
	app, err := route.NewApp(as)
	if err != nil {
		t.Fatal(err)
	}
	app.Auth.SetCost(bcrypt.MinCost)
	outbox := new(testutils.Outbox)
	app.Mail = outbox
	app.Users = auth.NewUsers(db, app.Auth, outbox, as.Config.GetPublicURL())
	app.SetClock(func() time.Time { return testNow })
	return &harness{app: app, mux: route.NewMux(app), outbox: outbox}
}

func (h *harness) do(method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func (h *harness) doJSON(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	return h.do(method, path, bytes.NewReader(raw), "application/json", cookie)
}

// login registers an active user with roles and returns its session cookie.
func (h *harness) login(t *testing.T, name string, roles ...string) *http.Cookie {
	t.Helper()
	email := name + "@farnost.example"
	if _, err := h.app.Users.Register(context.Background(), auth.Registration{
		UserName: name,
		Email:    email,
		Password: "tajne-heslo",
		Roles:    roles,
		IsActive: true,
	}); err != nil {
		t.Fatal(err)
	}
	rec := h.doJSON("POST", "/auth/login", map[string]string{"email": email, "password": "tajne-heslo"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatal("login failed", rec.Code, rec.Body.String())
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == auth.SESSION_COOKIE_NAME {
			return cookie
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatal(err, rec.Body.String())
	}
	return v
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, file []byte) (io.Reader, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile(route.PHOTO_FIELD, fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	cookie := h.login(t, "marie", model.ROLE_EDITOR)

	// case: wrong password
	func() {
		rec := h.doJSON("POST", "/auth/login", map[string]string{"email": "marie@farnost.example", "password": "nope-nope"}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Error("expected 401, got", rec.Code)
		}
		if body := decode[route.ErrorRespBody](t, rec); body.Error == "" {
			t.Error("error message missing")
		}
	}()

	// case: me with and without the cookie
	func() {
		rec := h.do("GET", "/auth/me", nil, "", cookie)
		if rec.Code != http.StatusOK {
			t.Fatal("expected 200, got", rec.Code, rec.Body.String())
		}
		if me := decode[auth.Identity](t, rec); me.UserName != "marie" || !me.HasRole(model.ROLE_EDITOR) {
			t.Errorf("unexpected identity %+v", me)
		}
		if rec := h.do("GET", "/auth/me", nil, "", nil); rec.Code != http.StatusUnauthorized {
			t.Error("anonymous me: expected 401, got", rec.Code)
		}
	}()

	// case: change password, then logout kills the cookie
	func() {
		rec := h.doJSON("POST", "/auth/password", map[string]string{"current_password": "wrong-one", "new_password": "nove-heslo"}, cookie)
		if rec.Code != http.StatusUnauthorized {
			t.Error("wrong current password: expected 401, got", rec.Code)
		}
		rec = h.doJSON("POST", "/auth/password", map[string]string{"current_password": "tajne-heslo", "new_password": "nove-heslo"}, cookie)
		if rec.Code != http.StatusNoContent {
			t.Error("change password: expected 204, got", rec.Code, rec.Body.String())
		}

		rec = h.do("POST", "/auth/logout", nil, "", cookie)
		if rec.Code != http.StatusNoContent {
			t.Fatal("expected 204, got", rec.Code)
		}
		if rec := h.do("GET", "/auth/me", nil, "", cookie); rec.Code != http.StatusUnauthorized {
			t.Error("old cookie still works", rec.Code)
		}
	}()
}

func TestPasswordResetRoutes(t *testing.T) {
	h := newHarness(t)
	h.login(t, "josef")

	if rec := h.doJSON("POST", "/auth/reset-request", map[string]string{"email": "nikdo@farnost.example"}, nil); rec.Code != http.StatusAccepted {
		t.Error("unknown e-mail: expected 202, got", rec.Code)
	}
	if len(h.outbox.Messages()) != 0 {
		t.Fatal("mail sent for an unknown e-mail")
	}

	if rec := h.doJSON("POST", "/auth/reset-request", map[string]string{"email": "josef@farnost.example"}, nil); rec.Code != http.StatusAccepted {
		t.Fatal("expected 202, got", rec.Code)
	}
	messages := h.outbox.Messages()
	if len(messages) != 1 {
		t.Fatal("expected one mail, got", len(messages))
	}
	token := messages[0].URL[strings.Index(messages[0].URL, "token=")+len("token="):]

	if rec := h.doJSON("POST", "/auth/reset", map[string]string{"token": "bogus", "password": "nove-heslo"}, nil); rec.Code != http.StatusBadRequest {
		t.Error("bogus token: expected 400, got", rec.Code)
	}
	if rec := h.doJSON("POST", "/auth/reset", map[string]string{"token": token, "password": "nove-heslo"}, nil); rec.Code != http.StatusNoContent {
		t.Fatal("expected 204, got", rec.Code, rec.Body.String())
	}
	if rec := h.doJSON("POST", "/auth/login", map[string]string{"email": "josef@farnost.example", "password": "nove-heslo"}, nil); rec.Code != http.StatusOK {
		t.Error("new password rejected", rec.Code)
	}
}

func TestRoles(t *testing.T) {
	h := newHarness(t)
	member := h.login(t, "anna", model.ROLE_MEMBER)
	admin := h.login(t, "farar", model.ROLE_ADMIN)

	event := map[string]any{"start_date": testNow.Unix(), "end_date": testNow.Add(time.Hour).Unix(), "title": "mše"}
	if rec := h.doJSON("POST", "/calendar/events", event, nil); rec.Code != http.StatusUnauthorized {
		t.Error("visitor: expected 401, got", rec.Code)
	}
	if rec := h.doJSON("POST", "/calendar/events", event, member); rec.Code != http.StatusForbidden {
		t.Error("member: expected 403, got", rec.Code)
	}
	// admin holds every role
	if rec := h.doJSON("POST", "/calendar/events", event, admin); rec.Code != http.StatusCreated {
		t.Error("admin: expected 201, got", rec.Code, rec.Body.String())
	}
	if rec := h.do("GET", "/users", nil, "", member); rec.Code != http.StatusForbidden {
		t.Error("member listing users: expected 403, got", rec.Code)
	}

	users := decode[[]route.UserRespBody](t, h.do("GET", "/users", nil, "", admin))
	if len(users) != 2 {
		t.Fatal("expected 2 users, got", len(users))
	}
	var annaID int64
	for _, u := range users {
		if u.UserName == "anna" {
			annaID = u.ID
		}
	}
	// deactivated accounts are logged out on their next request
	rec := h.doJSON("POST", fmt.Sprintf("/users/%d/active", annaID), map[string]bool{"is_active": false}, admin)
	if rec.Code != http.StatusOK {
		t.Fatal("expected 200, got", rec.Code, rec.Body.String())
	}
	if rec := h.do("GET", "/auth/me", nil, "", member); rec.Code != http.StatusUnauthorized {
		t.Error("deactivated user still logged in", rec.Code)
	}

	// duplicate registration
	rec = h.doJSON("POST", "/users", map[string]any{"user_name": "anna", "email": "jina@farnost.example", "password": "tajne-heslo"}, admin)
	if rec.Code != http.StatusConflict {
		t.Error("duplicate user: expected 409, got", rec.Code, rec.Body.String())
	}
}

func TestCalendarEvents(t *testing.T) {
	h := newHarness(t)
	editor := h.login(t, "marie", model.ROLE_EDITOR)

	create := func(title string, day int, visible bool) route.OneEventRespBody {
		start := time.Date(2024, 6, day, 18, 0, 0, 0, time.UTC)
		rec := h.doJSON("POST", "/calendar/events", map[string]any{
			"start_date": start.Unix(),
			"end_date":   start.Add(time.Hour).Unix(),
			"title":      title,
			"is_visible": visible,
		}, editor)
		if rec.Code != http.StatusCreated {
			t.Fatal("expected 201, got", rec.Code, rec.Body.String())
		}
		return decode[route.OneEventRespBody](t, rec)
	}
	shown := create("adorace", 4, true)
	hidden := create("zkouška sboru", 5, false)
	create("pouť", 20, true)

	if shown.Title != "Adorace" {
		t.Error("title not cleaned up", shown.Title)
	}

	// case: visitors see visible events of this week only
	func() {
		events := decode[[]route.OneEventRespBody](t, h.do("GET", "/calendar/events", nil, "", nil))
		if len(events) != 1 || events[0].ID != shown.ID {
			t.Errorf("unexpected public list %+v", events)
		}
	}()

	// case: editors see hidden events too, explicit range
	func() {
		events := decode[[]route.OneEventRespBody](t, h.do("GET", "/calendar/events?from=2024-06-01&to=2024-06-30", nil, "", editor))
		if len(events) != 3 {
			t.Errorf("expected 3 events, got %d", len(events))
		}
	}()

	// case: bad range
	func() {
		if rec := h.do("GET", "/calendar/events?from=someday-maybe", nil, "", nil); rec.Code != http.StatusBadRequest {
			t.Error("expected 400, got", rec.Code)
		}
		if rec := h.do("GET", "/calendar/events?from=2024-06-10&to=2024-06-01", nil, "", nil); rec.Code != http.StatusBadRequest {
			t.Error("expected 400, got", rec.Code)
		}
	}()

	// case: hidden event is 404 for visitors until shown
	func() {
		path := fmt.Sprintf("/calendar/events/%d", hidden.ID)
		if rec := h.do("GET", path, nil, "", nil); rec.Code != http.StatusNotFound {
			t.Error("expected 404, got", rec.Code)
		}
		if rec := h.doJSON("POST", path+"/visibility", map[string]bool{"is_visible": true}, editor); rec.Code != http.StatusNoContent {
			t.Fatal("expected 204, got", rec.Code)
		}
		if rec := h.do("GET", path, nil, "", nil); rec.Code != http.StatusOK {
			t.Error("expected 200, got", rec.Code)
		}
	}()

	// case: update, then delete
	func() {
		path := fmt.Sprintf("/calendar/events/%d", shown.ID)
		rec := h.doJSON("PUT", path, map[string]any{
			"start_date": shown.StartDate,
			"end_date":   shown.EndDate,
			"title":      "tichá adorace",
			"is_visible": true,
		}, editor)
		if rec.Code != http.StatusOK {
			t.Fatal("expected 200, got", rec.Code, rec.Body.String())
		}
		if got := decode[route.OneEventRespBody](t, rec); got.Title != "Tichá adorace" {
			t.Error("update not applied", got.Title)
		}
		if rec := h.do("DELETE", path, nil, "", editor); rec.Code != http.StatusNoContent {
			t.Error("expected 204, got", rec.Code)
		}
		if rec := h.do("DELETE", path, nil, "", editor); rec.Code != http.StatusNotFound {
			t.Error("second delete: expected 404, got", rec.Code)
		}
	}()

	summary := decode[[]model.EventTypeCount](t, h.do("GET", "/calendar/upcoming", nil, "", nil))
	if len(summary) != 1 || summary[0].Qty != 2 {
		t.Errorf("unexpected upcoming summary %+v", summary)
	}
}

func TestLookups(t *testing.T) {
	h := newHarness(t)
	editor := h.login(t, "marie", model.ROLE_EDITOR)

	for _, name := range []string{"mše svatá", "mše svatá ", "adorace"} {
		if rec := h.doJSON("POST", "/calendar/types", map[string]string{"name": name}, editor); rec.Code != http.StatusOK {
			t.Fatal(name, rec.Code, rec.Body.String())
		}
	}
	if rec := h.doJSON("POST", "/calendar/places", map[string]string{"name": " "}, editor); rec.Code != http.StatusBadRequest {
		t.Error("blank place: expected 400, got", rec.Code)
	}
	types := decode[[]route.NameRespBody](t, h.do("GET", "/calendar/types", nil, "", nil))
	if len(types) != 2 || types[0].Name != "Adorace" || types[1].Name != "Mše svatá" {
		t.Errorf("unexpected types %+v", types)
	}
}

func TestRepeatRoutes(t *testing.T) {
	h := newHarness(t)
	editor := h.login(t, "marie", model.ROLE_EDITOR)
	req := map[string]any{
		"date_from":  "2024-06-03",
		"date_till":  "2024-06-09",
		"time_start": "08:00",
		"time_end":   "09:00",
		"weekdays":   []int{1, 3, 5},
		"title":      "ranní mše",
	}

	rec := h.doJSON("POST", "/calendar/repeat", req, editor)
	if rec.Code != http.StatusCreated {
		t.Fatal("expected 201, got", rec.Code, rec.Body.String())
	}
	var created struct {
		Group    string `json:"group"`
		Inserted int    `json:"inserted"`
		RRule    string `json:"rrule"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Inserted != 3 || created.Group == "" || !strings.Contains(created.RRule, "BYDAY=MO,WE,FR") {
		t.Errorf("unexpected response %+v", created)
	}

	rec = h.doJSON("POST", "/calendar/repeat", req, editor)
	if rec.Code != http.StatusBadRequest {
		t.Error("repeat of the same rule: expected 400, got", rec.Code)
	}
	if msg := decode[route.ErrorRespBody](t, rec).Error; !strings.Contains(msg, "no events") {
		t.Error("unexpected message", msg)
	}

	req["weekdays"] = []int{}
	if rec := h.doJSON("POST", "/calendar/repeat", req, editor); rec.Code != http.StatusBadRequest {
		t.Error("no weekdays: expected 400, got", rec.Code)
	}

	rec = h.do("GET", "/calendar/repeat", nil, "", editor)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), created.Group) {
		t.Error("group not listed", rec.Code, rec.Body.String())
	}

	if rec := h.do("DELETE", "/calendar/repeat/"+created.Group, nil, "", editor); rec.Code != http.StatusOK {
		t.Error("expected 200, got", rec.Code)
	}
	if rec := h.do("DELETE", "/calendar/repeat/"+created.Group, nil, "", editor); rec.Code != http.StatusNotFound {
		t.Error("deleted group: expected 404, got", rec.Code)
	}
}

func TestIcalFeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	place := &model.Place{Name: "kostel sv. Jakuba"}
	if err := place.Upsert(ctx, h.app.BunDB); err != nil {
		t.Fatal(err)
	}
	for _, event := range []*model.CalendarEvent{
		{StartDate: testNow.AddDate(0, 0, 2).Unix(), EndDate: testNow.AddDate(0, 0, 2).Add(time.Hour).Unix(), Title: "Adorace", PlaceID: place.ID, IsVisible: true},
		{StartDate: testNow.AddDate(0, 0, 3).Unix(), EndDate: testNow.AddDate(0, 0, 3).Add(time.Hour).Unix(), Title: "Porada", IsVisible: false},
		{StartDate: testNow.AddDate(-1, 0, 0).Unix(), EndDate: testNow.AddDate(-1, 0, 0).Add(time.Hour).Unix(), Title: "Loni", IsVisible: true},
	} {
		if err := event.Upsert(ctx, h.app.BunDB); err != nil {
			t.Fatal(err)
		}
	}

	rec := h.do("GET", "/calendar.ics", nil, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatal("expected 200, got", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Error("unexpected content type", ct)
	}
	cal, err := ical.ParseCalendar(strings.NewReader(rec.Body.String()))
	if err != nil {
		t.Fatal(err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatal("expected 1 event, got", len(events))
	}
	if p := events[0].GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Adorace" {
		t.Error("unexpected summary", p)
	}
	if p := events[0].GetProperty(ical.ComponentPropertyLocation); p == nil || p.Value != "Kostel sv. Jakuba" {
		t.Error("unexpected location", p)
	}
}

func TestPostWithPhoto(t *testing.T) {
	h := newHarness(t)
	editor := h.login(t, "marie", model.ROLE_EDITOR)

	// case: a text file is refused and nothing is saved
	func() {
		body, ct := multipartBody(t, map[string]string{"title": "Pouť", "kind": "news"}, "notes.txt", []byte("not an image at all"))
		rec := h.do("POST", "/posts", body, ct, editor)
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Error("expected 415, got", rec.Code, rec.Body.String())
		}
		list := decode[route.ListRespBody[route.PostRespBody]](t, h.do("GET", "/posts", nil, "", nil))
		if list.Total != 0 {
			t.Error("post saved despite the bad photo")
		}
	}()

	body, ct := multipartBody(t, map[string]string{"title": "Pouť 2024", "kind": "news", "content": "Zveme vás.", "published_at": "2024-06-01"}, "pout.png", pngBytes(t))
	rec := h.do("POST", "/posts", body, ct, editor)
	if rec.Code != http.StatusCreated {
		t.Fatal("expected 201, got", rec.Code, rec.Body.String())
	}
	post := decode[route.PostRespBody](t, rec)
	if post.Slug == "" || !strings.HasPrefix(post.PhotoURL, route.FILES_PREFIX) || !strings.HasSuffix(post.PhotoURL, ".webp") {
		t.Fatalf("unexpected post %+v", post)
	}

	rec = h.do("GET", post.PhotoURL, nil, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatal("photo not served", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("RIFF")) {
		t.Error("served file is not a webp")
	}

	if rec := h.do("GET", "/posts/"+post.Slug, nil, "", nil); rec.Code != http.StatusOK {
		t.Error("by slug: expected 200, got", rec.Code)
	}
	if rec := h.do("GET", "/posts?kind=poster", nil, "", nil); rec.Code != http.StatusBadRequest {
		t.Error("unknown kind: expected 400, got", rec.Code)
	}

	// deleting the post removes its photo
	if rec := h.do("DELETE", fmt.Sprintf("/posts/%d", post.ID), nil, "", editor); rec.Code != http.StatusNoContent {
		t.Fatal("expected 204, got", rec.Code)
	}
	if h.app.Store.Exists(strings.TrimPrefix(post.PhotoURL, route.FILES_PREFIX)) {
		t.Error("photo left behind")
	}
	if rec := h.do("GET", post.PhotoURL, nil, "", nil); rec.Code != http.StatusNotFound {
		t.Error("removed photo: expected 404, got", rec.Code)
	}
}

func TestBellsAndWorkshops(t *testing.T) {
	h := newHarness(t)
	bells := h.login(t, "zvonik", model.ROLE_BELLS)

	body, ct := multipartBody(t, map[string]string{"name": "Dionýz Dytrych", "city": "Brno"}, "", nil)
	rec := h.do("POST", "/workshops", body, ct, bells)
	if rec.Code != http.StatusCreated {
		t.Fatal("expected 201, got", rec.Code, rec.Body.String())
	}
	workshop := decode[route.WorkshopRespBody](t, rec)

	body, ct = multipartBody(t, map[string]string{"name": "Marie", "workshop_id": fmt.Sprint(workshop.ID), "cast_year": "1928", "weight_kg": "450"}, "marie.png", pngBytes(t))
	rec = h.do("POST", "/bells", body, ct, bells)
	if rec.Code != http.StatusCreated {
		t.Fatal("expected 201, got", rec.Code, rec.Body.String())
	}
	bell := decode[route.BellRespBody](t, rec)
	if bell.Workshop == nil || bell.Workshop.Name != "Dionýz Dytrych" || bell.CastYear != 1928 || bell.PhotoURL == "" {
		t.Fatalf("unexpected bell %+v", bell)
	}

	body, ct = multipartBody(t, map[string]string{"name": "Marie", "weight_kg": "těžký"}, "", nil)
	if rec := h.do("POST", fmt.Sprintf("/bells/%d", bell.ID), body, ct, bells); rec.Code != http.StatusBadRequest {
		t.Error("bad number: expected 400, got", rec.Code)
	}

	// replacing the photo drops the old file
	body, ct = multipartBody(t, map[string]string{"name": "Marie", "workshop_id": fmt.Sprint(workshop.ID)}, "nova.png", pngBytes(t))
	rec = h.do("POST", fmt.Sprintf("/bells/%d", bell.ID), body, ct, bells)
	if rec.Code != http.StatusOK {
		t.Fatal("expected 200, got", rec.Code, rec.Body.String())
	}
	updated := decode[route.BellRespBody](t, rec)
	if updated.PhotoURL == bell.PhotoURL || h.app.Store.Exists(strings.TrimPrefix(bell.PhotoURL, route.FILES_PREFIX)) {
		t.Error("old photo kept", bell.PhotoURL, updated.PhotoURL)
	}

	if rec := h.do("DELETE", fmt.Sprintf("/workshops/%d", workshop.ID), nil, "", bells); rec.Code != http.StatusNoContent {
		t.Fatal("expected 204, got", rec.Code)
	}
	rec = h.do("GET", fmt.Sprintf("/bells/%d", bell.ID), nil, "", nil)
	if got := decode[route.BellRespBody](t, rec); got.WorkshopID != 0 || got.Workshop != nil {
		t.Error("bell still points at the deleted workshop")
	}

	if rec := h.do("GET", "/bells/999", nil, "", nil); rec.Code != http.StatusNotFound {
		t.Error("expected 404, got", rec.Code)
	}
	if rec := h.do("GET", "/bells/abc", nil, "", nil); rec.Code != http.StatusBadRequest {
		t.Error("expected 400, got", rec.Code)
	}
}

func TestTickets(t *testing.T) {
	h := newHarness(t)
	member := h.login(t, "anna", model.ROLE_MEMBER)
	admin := h.login(t, "farar", model.ROLE_ADMIN)

	report := func(description string) route.TicketRespBody {
		body, ct := multipartBody(t, map[string]string{"description": description}, "", nil)
		rec := h.do("POST", "/tickets", body, ct, member)
		if rec.Code != http.StatusCreated {
			t.Fatal("expected 201, got", rec.Code, rec.Body.String())
		}
		return decode[route.TicketRespBody](t, rec)
	}

	first := report("Nesvítí světlo v sakristii.")
	messages := h.outbox.Messages()
	if len(messages) != 1 || messages[0].To != "spravce@farnost.example" || !strings.Contains(messages[0].Subject, "anna") {
		t.Fatalf("unexpected notification %+v", messages)
	}

	// a failing notification doesn't lose the ticket
	h.outbox.Err = errors.New("webhook down")
	second := report("Kape kohoutek.")
	h.outbox.Err = nil

	body, ct := multipartBody(t, map[string]string{"description": "  "}, "", nil)
	if rec := h.do("POST", "/tickets", body, ct, member); rec.Code != http.StatusBadRequest {
		t.Error("blank description: expected 400, got", rec.Code)
	}
	if rec := h.do("GET", "/tickets", nil, "", member); rec.Code != http.StatusForbidden {
		t.Error("member listing tickets: expected 403, got", rec.Code)
	}

	// only one open priority ticket
	for _, id := range []int64{first.ID, second.ID} {
		if rec := h.do("POST", fmt.Sprintf("/tickets/%d/priority", id), nil, "", admin); rec.Code != http.StatusNoContent {
			t.Fatal("expected 204, got", rec.Code, rec.Body.String())
		}
	}
	open := decode[[]route.TicketRespBody](t, h.do("GET", "/tickets", nil, "", admin))
	if len(open) != 2 || open[0].ID != second.ID || !open[0].IsPriority || open[1].IsPriority {
		t.Errorf("unexpected open tickets %+v", open)
	}

	if rec := h.doJSON("POST", fmt.Sprintf("/tickets/%d/reply", first.ID), map[string]string{"reply": "Vyměněno."}, admin); rec.Code != http.StatusNoContent {
		t.Error("reply: expected 204, got", rec.Code)
	}
	if rec := h.do("POST", fmt.Sprintf("/tickets/%d/done", first.ID), nil, "", admin); rec.Code != http.StatusNoContent {
		t.Error("done: expected 204, got", rec.Code)
	}
	if rec := h.do("POST", fmt.Sprintf("/tickets/%d/priority", first.ID), nil, "", admin); rec.Code != http.StatusNotFound {
		t.Error("priority on a done ticket: expected 404, got", rec.Code)
	}

	done := decode[[]route.TicketRespBody](t, h.do("GET", "/tickets?done=true", nil, "", admin))
	if len(done) != 1 || done[0].Reply != "Vyměněno." {
		t.Errorf("unexpected archive %+v", done)
	}

	var stats struct {
		Open int `json:"open"`
		Done int `json:"done"`
	}
	if err := json.Unmarshal(h.do("GET", "/tickets/stats", nil, "", admin).Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Open != 1 || stats.Done != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if rec := h.do("DELETE", fmt.Sprintf("/tickets/%d", second.ID), nil, "", admin); rec.Code != http.StatusNoContent {
		t.Error("delete: expected 204, got", rec.Code)
	}
}

func TestReleases(t *testing.T) {
	h := newHarness(t)
	admin := h.login(t, "farar", model.ROLE_ADMIN)

	for _, v := range []map[string]string{
		{"version": "1.0.0", "note": "first", "released_at": "2024-05-01"},
		{"version": "1.1.0", "note": "calendar repeat"},
		{"version": "1.0.0", "note": "first, fixed", "released_at": "2024-05-01"},
	} {
		if rec := h.doJSON("POST", "/releases", v, admin); rec.Code != http.StatusOK {
			t.Fatal(v, rec.Code, rec.Body.String())
		}
	}
	if rec := h.doJSON("POST", "/releases", map[string]string{"version": "2.0.0", "released_at": "May"}, admin); rec.Code != http.StatusBadRequest {
		t.Error("bad date: expected 400, got", rec.Code)
	}

	var list struct {
		Items []struct {
			Version string `json:"version"`
			Note    string `json:"note"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(h.do("GET", "/releases", nil, "", nil).Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || list.Items[0].Version != "1.1.0" || list.Items[1].Note != "first, fixed" {
		t.Errorf("unexpected releases %+v", list)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := h.do("GET", "/metrics", nil, "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics not served", rec.Code)
	}
}

func TestFeasts(t *testing.T) {
	h := newHarness(t)
	editor := h.login(t, "kaplan", model.ROLE_EDITOR)
	member := h.login(t, "anna", model.ROLE_MEMBER)

	if rec := h.doJSON("POST", "/feasts/levels", map[string]string{"name": "slavnost"}, member); rec.Code != http.StatusForbidden {
		t.Error("member: expected 403, got", rec.Code)
	}
	rec := h.doJSON("POST", "/feasts/levels", map[string]string{"name": "slavnost"}, editor)
	if rec.Code != http.StatusOK {
		t.Fatal("expected 200, got", rec.Code, rec.Body.String())
	}
	level := decode[route.NameRespBody](t, rec)
	rec = h.doJSON("POST", "/feasts/species", map[string]string{"name": "mučedník"}, editor)
	if rec.Code != http.StatusOK {
		t.Fatal("expected 200, got", rec.Code, rec.Body.String())
	}
	species := decode[route.NameRespBody](t, rec)

	add := func(name, date string, photo []byte) *httptest.ResponseRecorder {
		fields := map[string]string{
			"name":       name,
			"date":       date,
			"detail":     "patron",
			"level_id":   fmt.Sprint(level.ID),
			"species_id": fmt.Sprint(species.ID),
		}
		fileName := ""
		if photo != nil {
			fileName = "svaty.png"
		}
		body, ct := multipartBody(t, fields, fileName, photo)
		return h.do("POST", "/feasts", body, ct, editor)
	}

	body, ct := multipartBody(t, map[string]string{"name": "Sv. Václav", "date": "09-28"}, "", nil)
	if rec := h.do("POST", "/feasts", body, ct, nil); rec.Code != http.StatusUnauthorized {
		t.Error("anonymous: expected 401, got", rec.Code)
	}
	if rec := add("Sv. Václav", "28.9.", nil); rec.Code != http.StatusBadRequest {
		t.Error("bad date: expected 400, got", rec.Code)
	}

	rec = add("Sv. Václav", "09-28", pngBytes(t))
	if rec.Code != http.StatusCreated {
		t.Fatal("expected 201, got", rec.Code, rec.Body.String())
	}
	wenceslas := decode[route.FeastRespBody](t, rec)
	if wenceslas.LevelName != "Slavnost" || wenceslas.SpeciesName != "Mučedník" || wenceslas.PhotoURL == "" {
		t.Fatalf("unexpected feast %+v", wenceslas)
	}
	if rec := add("Sv. Norbert", "06-03", nil); rec.Code != http.StatusCreated {
		t.Fatal("expected 201, got", rec.Code, rec.Body.String())
	}

	// case: today follows the clock, ?day= picks another one
	func() {
		today := decode[[]route.FeastRespBody](t, h.do("GET", "/feasts/today", nil, "", nil))
		if len(today) != 1 || today[0].Name != "Sv. Norbert" {
			t.Error("unexpected feasts today", today)
		}
		other := decode[[]route.FeastRespBody](t, h.do("GET", "/feasts/today?day=2025-09-28", nil, "", nil))
		if len(other) != 1 || other[0].ID != wenceslas.ID {
			t.Error("unexpected feasts on 09-28", other)
		}
	}()

	all := decode[[]route.FeastRespBody](t, h.do("GET", "/feasts", nil, "", nil))
	if len(all) != 2 || all[0].Name != "Sv. Norbert" {
		t.Error("catalogue not in calendar order", all)
	}

	// an edit without a photo keeps the old one
	body, ct = multipartBody(t, map[string]string{
		"name":       "Sv. Václav, mučedník",
		"date":       "09-28",
		"level_id":   fmt.Sprint(level.ID),
		"species_id": fmt.Sprint(species.ID),
	}, "", nil)
	rec = h.do("POST", fmt.Sprintf("/feasts/%d", wenceslas.ID), body, ct, editor)
	if rec.Code != http.StatusOK {
		t.Fatal("expected 200, got", rec.Code, rec.Body.String())
	}
	if edited := decode[route.FeastRespBody](t, rec); edited.Name != "Sv. Václav, mučedník" || edited.PhotoURL != wenceslas.PhotoURL {
		t.Errorf("unexpected edit %+v", edited)
	}

	if rec := h.do("DELETE", fmt.Sprintf("/feasts/%d", wenceslas.ID), nil, "", editor); rec.Code != http.StatusNoContent {
		t.Fatal("expected 204, got", rec.Code)
	}
	if h.app.Store.Exists(strings.TrimPrefix(wenceslas.PhotoURL, route.FILES_PREFIX)) {
		t.Error("photo left behind")
	}
	if rec := h.do("GET", fmt.Sprintf("/feasts/%d", wenceslas.ID), nil, "", nil); rec.Code != http.StatusNotFound {
		t.Error("expected 404, got", rec.Code)
	}
	if levels := decode[[]route.NameRespBody](t, h.do("GET", "/feasts/levels", nil, "", nil)); len(levels) != 1 {
		t.Error("unexpected levels", levels)
	}
}

func TestSitemap(t *testing.T) {
	h := newHarness(t)
	editor := h.login(t, "marie", model.ROLE_EDITOR)

	for title, published := range map[string]string{"Pouť 2024": "2024-06-01", "Advent": "2099-12-01"} {
		body, ct := multipartBody(t, map[string]string{"title": title, "kind": "news", "published_at": published}, "", nil)
		if rec := h.do("POST", "/posts", body, ct, editor); rec.Code != http.StatusCreated {
			t.Fatal("expected 201, got", rec.Code, rec.Body.String())
		}
	}
	event := &model.CalendarEvent{StartDate: testNow.Unix(), EndDate: testNow.Add(time.Hour).Unix(), Title: "Mše", IsVisible: true}
	if err := event.Upsert(context.Background(), h.app.BunDB); err != nil {
		t.Fatal(err)
	}

	rec := h.do("GET", "/sitemap.xml", nil, "", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/xml") {
		t.Fatal("unexpected response", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "<?xml") || !strings.Contains(rec.Body.String(), route.SITEMAP_XMLNS) {
		t.Error("not a sitemap document", rec.Body.String())
	}
	var urlSet route.SitemapURLSet
	if err := xml.Unmarshal(rec.Body.Bytes(), &urlSet); err != nil {
		t.Fatal(err)
	}
	byLoc := make(map[string]route.SitemapURL)
	for _, u := range urlSet.URLs {
		byLoc[u.Loc] = u
	}
	if u, ok := byLoc["https://farnost.example/posts/pout-2024"]; !ok || u.LastMod == "" {
		t.Error("published post missing", urlSet.URLs)
	}
	if _, ok := byLoc["https://farnost.example/posts/advent"]; ok {
		t.Error("unpublished post listed")
	}
	if u, ok := byLoc["https://farnost.example/calendar"]; !ok || u.LastMod == "" || u.Priority != "0.8" {
		t.Errorf("unexpected calendar entry %+v", u)
	}
}

func TestBrokenUploadRejected(t *testing.T) {
	h := newHarness(t)
	bells := h.login(t, "zvonik", model.ROLE_BELLS)

	body, ct := multipartBody(t, map[string]string{"name": "Marie"}, "", nil)
	rec := h.do("POST", "/bells", body, ct, bells)
	if rec.Code != http.StatusCreated {
		t.Fatal("expected 201, got", rec.Code, rec.Body.String())
	}
	bell := decode[route.BellRespBody](t, rec)

	// the form ends in the middle of the photo
	broken := "--xyz\r\nContent-Disposition: form-data; name=\"name\"\r\n\r\nJosef\r\n" +
		"--xyz\r\nContent-Disposition: form-data; name=\"photo\"; filename=\"josef.png\"\r\n" +
		"Content-Type: image/png\r\n\r\n\x89PNG half"
	rec = h.do("POST", fmt.Sprintf("/bells/%d", bell.ID), strings.NewReader(broken), "multipart/form-data; boundary=xyz", bells)
	if rec.Code != http.StatusBadRequest {
		t.Error("expected 400, got", rec.Code, rec.Body.String())
	}
	if got := decode[route.BellRespBody](t, h.do("GET", fmt.Sprintf("/bells/%d", bell.ID), nil, "", nil)); got.Name != "Marie" {
		t.Error("bell changed by a broken upload", got.Name)
	}
}
