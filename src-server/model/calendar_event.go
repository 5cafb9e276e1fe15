package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parish/src-server/utils"

	"github.com/uptrace/bun"
)

// Event type ("Mše svatá", "Adorace"...), shown as the event's label.
type CalendarNote struct {
	bun.BaseModel `bun:"table:calendar_notes"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"` // required
}

type Place struct {
	bun.BaseModel `bun:"table:places"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"` // required
}

type CalendarEvent struct {
	bun.BaseModel `bun:"table:calendar_events"`

	ID        int64  `bun:"id,pk,autoincrement"`
	StartDate int64  `bun:"start_date,notnull"` // required, unix seconds
	EndDate   int64  `bun:"end_date,notnull"`   // required, unix seconds
	NoteID    int64  `bun:"note_id,nullzero"`
	PlaceID   int64  `bun:"place_id,nullzero"`
	Title     string `bun:"title"`
	Note      string `bun:"note"`
	Person    string `bun:"person"`
	Content   string `bun:"content"`
	WebLink   string `bun:"web_link"`
	IsVisible bool   `bun:"is_visible,notnull"`
	// shared by every row of one recurrence request, empty for single events
	GroupID   string `bun:"group_id,nullzero"`
	AddedBy   int64  `bun:"added_by,nullzero"`
	CreatedAt int64  `bun:"created_at,notnull"`
	UpdatedAt int64  `bun:"updated_at,notnull"`

	Type  *CalendarNote `bun:"rel:belongs-to,join:note_id=id"`
	Place *Place        `bun:"rel:belongs-to,join:place_id=id"`
}

func (e *CalendarEvent) GetStart() time.Time { return time.Unix(e.StartDate, 0) }
func (e *CalendarEvent) GetEnd() time.Time   { return time.Unix(e.EndDate, 0) }

// Normalize cleans the text fields and moves an end before the start to the next day.
func (e *CalendarEvent) Normalize() {
	e.Title = utils.CleanupString(e.Title)
	e.Note = strings.TrimSpace(e.Note)
	e.Person = strings.TrimSpace(e.Person)
	e.WebLink = strings.TrimSpace(e.WebLink)
	if e.EndDate < e.StartDate {
		e.EndDate = time.Unix(e.EndDate, 0).UTC().AddDate(0, 0, 1).Unix()
	}
}

func (e *CalendarEvent) Upsert(ctx context.Context, db bun.IDB) error {
	e.Normalize()
	switch {
	case e.StartDate == 0:
		return fmt.Errorf("(*CalendarEvent).Upsert: %w", invalid("start", "start date is required"))
	case e.EndDate == 0:
		return fmt.Errorf("(*CalendarEvent).Upsert: %w", invalid("end", "end date is required"))
	case e.EndDate < e.StartDate:
		return fmt.Errorf("(*CalendarEvent).Upsert: %w", invalid("end", "the event ends more than a day before it starts"))
	case e.WebLink != "" && !strings.HasPrefix(e.WebLink, "http://") && !strings.HasPrefix(e.WebLink, "https://"):
		return fmt.Errorf("(*CalendarEvent).Upsert: %w", invalid("web_link", "link must start with http:// or https://"))
	}

	now := time.Now().UTC().Unix()
	e.UpdatedAt = now
	if e.ID == 0 {
		e.CreatedAt = now
		if _, err := db.NewInsert().Model(e).Exec(ctx); err != nil {
			return fmt.Errorf("(*CalendarEvent).Upsert: %w", err)
		}
		return nil
	}

	res, err := db.NewUpdate().
		Model(e).
		ExcludeColumn("created_at", "added_by", "group_id").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*CalendarEvent).Upsert: %w", err)
	}
	if err := affected(res, "event", e.ID); err != nil {
		return fmt.Errorf("(*CalendarEvent).Upsert: %w", err)
	}
	return nil
}

// LastCalendarChange is the newest update time of a visible event, 0 when
// there is none.
func LastCalendarChange(ctx context.Context, db bun.IDB) (int64, error) {
	var last int64
	if err := db.NewSelect().
		Model((*CalendarEvent)(nil)).
		ColumnExpr("COALESCE(MAX(updated_at), 0)").
		Where("is_visible = ?", true).
		Scan(ctx, &last); err != nil {
		return 0, fmt.Errorf("LastCalendarChange: %w", err)
	}
	return last, nil
}

func GetCalendarEvent(ctx context.Context, db bun.IDB, id int64) (*CalendarEvent, error) {
	event := new(CalendarEvent)
	if err := db.NewSelect().
		Model(event).
		Relation("Type").
		Relation("Place").
		Where("calendar_event.id = ?", id).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetCalendarEvent: %w", notFound(err, "event", id))
	}
	return event, nil
}

func DeleteCalendarEvent(ctx context.Context, db bun.IDB, id int64) error {
	res, err := db.NewDelete().
		Model((*CalendarEvent)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("DeleteCalendarEvent: %w", err)
	}
	if err := affected(res, "event", id); err != nil {
		return fmt.Errorf("DeleteCalendarEvent: %w", err)
	}
	return nil
}

func SetCalendarEventVisibility(ctx context.Context, db bun.IDB, id int64, visible bool) error {
	res, err := db.NewUpdate().
		Model((*CalendarEvent)(nil)).
		Set("is_visible = ?", visible).
		Set("updated_at = ?", time.Now().UTC().Unix()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("SetCalendarEventVisibility: %w", err)
	}
	if err := affected(res, "event", id); err != nil {
		return fmt.Errorf("SetCalendarEventVisibility: %w", err)
	}
	return nil
}

// ListCalendarEvents returns events overlapping [from, to), ordered by start.
func ListCalendarEvents(ctx context.Context, db bun.IDB, from, to time.Time, visibleOnly bool) ([]CalendarEvent, error) {
	events := make([]CalendarEvent, 0)
	q := db.NewSelect().
		Model(&events).
		Relation("Type").
		Relation("Place").
		Where("calendar_event.start_date < ?", to.Unix()).
		Where("calendar_event.end_date >= ?", from.Unix()).
		Order("calendar_event.start_date")
	if visibleOnly {
		q = q.Where("calendar_event.is_visible = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListCalendarEvents: %w", err)
	}
	return events, nil
}

type EventTypeCount struct {
	Name string `bun:"name" json:"name"`
	Qty  int    `bun:"qty" json:"qty"`
}

// UpcomingEventSummary counts visible events not yet finished, per type.
func UpcomingEventSummary(ctx context.Context, db bun.IDB, now time.Time) ([]EventTypeCount, error) {
	summary := make([]EventTypeCount, 0)
	if err := db.NewSelect().
		TableExpr("calendar_events AS c").
		Join("LEFT JOIN calendar_notes AS n ON c.note_id = n.id").
		ColumnExpr("COALESCE(n.name, '') AS name").
		ColumnExpr("COUNT(*) AS qty").
		Where("c.end_date >= ?", now.Unix()).
		Where("c.is_visible = ?", true).
		GroupExpr("n.name").
		OrderExpr("qty DESC").
		Scan(ctx, &summary); err != nil {
		return nil, fmt.Errorf("UpcomingEventSummary: %w", err)
	}
	return summary, nil
}

func (n *CalendarNote) Upsert(ctx context.Context, db bun.IDB) error {
	n.Name = utils.CleanupString(n.Name)
	if n.Name == "" {
		return fmt.Errorf("(*CalendarNote).Upsert: %w", invalid("name", "name is required"))
	}
	if _, err := db.NewInsert().
		Model(n).
		On("CONFLICT (name) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*CalendarNote).Upsert: %w", err)
	}
	return nil
}

func (p *Place) Upsert(ctx context.Context, db bun.IDB) error {
	p.Name = utils.CleanupString(p.Name)
	if p.Name == "" {
		return fmt.Errorf("(*Place).Upsert: %w", invalid("name", "name is required"))
	}
	if _, err := db.NewInsert().
		Model(p).
		On("CONFLICT (name) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Place).Upsert: %w", err)
	}
	return nil
}

func ListCalendarNotes(ctx context.Context, db bun.IDB) ([]CalendarNote, error) {
	notes := make([]CalendarNote, 0)
	if err := db.NewSelect().Model(&notes).Order("name").Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListCalendarNotes: %w", err)
	}
	return notes, nil
}

func ListPlaces(ctx context.Context, db bun.IDB) ([]Place, error) {
	places := make([]Place, 0)
	if err := db.NewSelect().Model(&places).Order("name").Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListPlaces: %w", err)
	}
	return places, nil
}
