package recurrence_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"parish/src-server/apperr"
	"parish/src-server/model"
	"parish/src-server/recurrence"
	"parish/src-server/testutils"

	"github.com/uptrace/bun"
)

func morningMass() *recurrence.Request {
	return &recurrence.Request{
		DateFrom:  "2024-06-03", // Monday
		DateTill:  "2024-06-09", // Sunday
		TimeStart: "08:00",
		TimeEnd:   "09:00",
		Weekdays:  []int{1, 3, 5},
		Title:     "ranní mše",
		AddedBy:   1,
	}
}

func listAll(t *testing.T, db *bun.DB) []model.CalendarEvent {
	t.Helper()
	events := make([]model.CalendarEvent, 0)
	if err := db.NewSelect().Model(&events).Order("start_date").Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	return events
}

func TestGenerateWeek(t *testing.T) {
	db := testutils.NewDB(t)
	gen := recurrence.NewGenerator(db, time.UTC, nil)
	req := morningMass()

	n, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatal("expected 3 inserted, got", n)
	}
	if req.Group == "" {
		t.Error("group id not assigned")
	}

	events := listAll(t, db)
	if len(events) != 3 {
		t.Fatal("expected 3 rows, got", len(events))
	}
	for i, day := range []int{3, 5, 7} {
		wantStart := time.Date(2024, 6, day, 8, 0, 0, 0, time.UTC)
		if !events[i].GetStart().Equal(wantStart) {
			t.Errorf("event %d starts %v, want %v", i, events[i].GetStart().UTC(), wantStart)
		}
		if !events[i].GetEnd().Equal(wantStart.Add(time.Hour)) {
			t.Errorf("event %d ends %v", i, events[i].GetEnd().UTC())
		}
		if events[i].GroupID != req.Group || !events[i].IsVisible || events[i].Title != "Ranní mše" {
			t.Errorf("unexpected row %+v", events[i])
		}
	}
}

func TestGenerateIdempotent(t *testing.T) {
	db := testutils.NewDB(t)
	gen := recurrence.NewGenerator(db, time.UTC, nil)
	ctx := context.Background()

	if _, err := gen.Generate(ctx, morningMass()); err != nil {
		t.Fatal(err)
	}

	// case: same request again adds nothing
	func() {
		n, err := gen.Generate(ctx, morningMass())
		var noEvents *apperr.NoEventsGeneratedError
		if !errors.As(err, &noEvents) {
			t.Fatal("expected NoEventsGeneratedError, got", n, err)
		}
		if rows := listAll(t, db); len(rows) != 3 {
			t.Error("expected 3 rows, got", len(rows))
		}
	}()

	// case: overlapping range only adds the new days
	func() {
		req := morningMass()
		req.DateTill = "2024-06-12"
		n, err := gen.Generate(ctx, req)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Error("expected 2 new rows (06-10, 06-12), got", n)
		}
		if rows := listAll(t, db); len(rows) != 5 {
			t.Error("expected 5 rows, got", len(rows))
		}
	}()
}

func TestGenerateNothingMatches(t *testing.T) {
	db := testutils.NewDB(t)
	gen := recurrence.NewGenerator(db, time.UTC, nil)
	existing := &model.CalendarEvent{StartDate: 1717401600, EndDate: 1717405200, Title: "Adorace"}
	if err := existing.Upsert(context.Background(), db); err != nil {
		t.Fatal(err)
	}

	req := morningMass()
	req.DateFrom, req.DateTill = "2024-06-04", "2024-06-05" // Tuesday, Wednesday
	req.Weekdays = []int{0}
	_, err := gen.Generate(context.Background(), req)
	var noEvents *apperr.NoEventsGeneratedError
	if !errors.As(err, &noEvents) {
		t.Fatal("expected NoEventsGeneratedError, got", err)
	}
	if apperr.HTTPStatus(err) != http.StatusBadRequest {
		t.Error("unexpected status", apperr.HTTPStatus(err))
	}
	if rows := listAll(t, db); len(rows) != 1 || rows[0].ID != existing.ID {
		t.Error("table changed", rows)
	}
}

func TestGenerateRollsBack(t *testing.T) {
	db := testutils.NewDB(t)
	ctx := context.Background()
	// second generated day collides with an unrelated event on this index
	if _, err := db.ExecContext(ctx, "CREATE UNIQUE INDEX test_start_once ON calendar_events (start_date)"); err != nil {
		t.Fatal(err)
	}
	blocker := &model.CalendarEvent{
		StartDate: time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC).Unix(),
		EndDate:   time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC).Unix(),
		Title:     "Pouť",
	}
	if err := blocker.Upsert(ctx, db); err != nil {
		t.Fatal(err)
	}

	gen := recurrence.NewGenerator(db, time.UTC, nil)
	if _, err := gen.Generate(ctx, morningMass()); err == nil {
		t.Fatal("expected an error")
	}
	if rows := listAll(t, db); len(rows) != 1 || rows[0].Title != "Pouť" {
		t.Error("batch not rolled back", rows)
	}
}

func TestGenerateCrossingMidnight(t *testing.T) {
	db := testutils.NewDB(t)
	prague, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Fatal(err)
	}
	gen := recurrence.NewGenerator(db, prague, nil)

	req := morningMass()
	req.TimeStart, req.TimeEnd = "22:00", "01:00"
	req.Weekdays = []int{6}
	n, err := gen.Generate(context.Background(), req)
	if err != nil || n != 1 {
		t.Fatal(n, err)
	}
	rows := listAll(t, db)
	wantStart := time.Date(2024, 6, 8, 22, 0, 0, 0, prague)
	wantEnd := time.Date(2024, 6, 9, 1, 0, 0, 0, prague)
	if !rows[0].GetStart().Equal(wantStart) || !rows[0].GetEnd().Equal(wantEnd) {
		t.Error("unexpected window", rows[0].GetStart().In(prague), rows[0].GetEnd().In(prague))
	}
}

func TestGenerateValidation(t *testing.T) {
	db := testutils.NewDB(t)
	gen := recurrence.NewGenerator(db, time.UTC, nil)

	for field, mutate := range map[string]func(r *recurrence.Request){
		"date_from":  func(r *recurrence.Request) { r.DateFrom = "3. 6. 2024" },
		"date_till":  func(r *recurrence.Request) { r.DateTill = "2024-06-01" },
		"time_start": func(r *recurrence.Request) { r.TimeStart = "25:00" },
		"time_end":   func(r *recurrence.Request) { r.TimeEnd = "" },
		"weekdays":   func(r *recurrence.Request) { r.Weekdays = []int{1, 7} },
	} {
		req := morningMass()
		mutate(req)
		if err := req.Validate(time.UTC); err == nil {
			t.Errorf("%s: Validate accepted the request", field)
		}
		_, err := gen.Generate(context.Background(), req)
		var validation *apperr.ValidationError
		if !errors.As(err, &validation) || validation.Field != field {
			t.Errorf("%s: expected ValidationError on the field, got %v", field, err)
		}
	}

	req := morningMass()
	req.Weekdays = nil
	if err := req.Validate(time.UTC); err == nil {
		t.Error("empty weekday set accepted")
	}
	if rows := listAll(t, db); len(rows) != 0 {
		t.Error("invalid requests inserted rows", len(rows))
	}
}

func TestDeleteGroup(t *testing.T) {
	db := testutils.NewDB(t)
	gen := recurrence.NewGenerator(db, time.UTC, nil)
	ctx := context.Background()

	kept := morningMass()
	kept.Title = "Večerní mše"
	if _, err := gen.Generate(ctx, kept); err != nil {
		t.Fatal(err)
	}
	gone := morningMass()
	if _, err := gen.Generate(ctx, gone); err != nil {
		t.Fatal(err)
	}

	n, err := gen.DeleteGroup(ctx, gone.Group)
	if err != nil || n != 3 {
		t.Fatal(n, err)
	}
	rows := listAll(t, db)
	if len(rows) != 3 {
		t.Fatal("expected the other group to stay, got", len(rows))
	}
	for _, row := range rows {
		if row.GroupID != kept.Group {
			t.Error("wrong group left", row.GroupID)
		}
	}

	if n, err := gen.DeleteGroup(ctx, "no-such-group"); err != nil || n != 0 {
		t.Error(n, err)
	}
	var validation *apperr.ValidationError
	if _, err := gen.DeleteGroup(ctx, ""); !errors.As(err, &validation) {
		t.Error("expected ValidationError, got", err)
	}
}

func TestListGroups(t *testing.T) {
	db := testutils.NewDB(t)
	ctx := context.Background()
	note := &model.CalendarNote{Name: "mše svatá"}
	if err := note.Upsert(ctx, db); err != nil {
		t.Fatal(err)
	}
	place := &model.Place{Name: "kostel sv. Jakuba"}
	if err := place.Upsert(ctx, db); err != nil {
		t.Fatal(err)
	}

	gen := recurrence.NewGenerator(db, time.UTC, nil)
	req := morningMass()
	req.NoteID, req.PlaceID = note.ID, place.ID
	if _, err := gen.Generate(ctx, req); err != nil {
		t.Fatal(err)
	}
	// a single event is not a group
	single := &model.CalendarEvent{StartDate: 1717401600, EndDate: 1717405200, Title: "Pouť"}
	if err := single.Upsert(ctx, db); err != nil {
		t.Fatal(err)
	}

	groups, err := gen.ListGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatal("expected one group, got", len(groups))
	}
	g := groups[0]
	if g.GroupID != req.Group || g.Qty != 3 || g.TypeName != "Mše svatá" || g.PlaceName != "Kostel sv. Jakuba" {
		t.Errorf("unexpected summary %+v", g)
	}
	if g.FirstStart != time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC).Unix() ||
		g.LastEnd != time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC).Unix() {
		t.Errorf("unexpected bounds %+v", g)
	}
}

func TestRRule(t *testing.T) {
	rule := morningMass().RRule(time.UTC)
	if !strings.Contains(rule, "FREQ=DAILY") || !strings.Contains(rule, "BYDAY=MO,WE,FR") {
		t.Error("unexpected rule", rule)
	}
	bad := morningMass()
	bad.DateFrom = "yesterday"
	if bad.RRule(time.UTC) != "" {
		t.Error("invalid request rendered a rule")
	}
}
