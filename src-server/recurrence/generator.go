package recurrence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/model"
	"parish/src-server/utils"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Generator struct {
	db      *bun.DB
	loc     *time.Location
	metrics *utils.Metric

	// Isolation of the generating transaction. The duplicate check only sees
	// what this level lets it see, so overlapping concurrent requests can
	// still insert twice below sql.LevelSerializable.
	TxOptions sql.TxOptions
}

// NewGenerator computes event times in loc (UTC when nil), metrics may be nil.
func NewGenerator(db *bun.DB, loc *time.Location, metrics *utils.Metric) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{db: db, loc: loc, metrics: metrics}
}

// FromAppState builds a generator from the app's database, time zone and
// configured isolation level.
func FromAppState(as *utils.AppState) *Generator {
	g := NewGenerator(as.BunDB, as.Config.GetLocation(), as.MetricChans)
	if as.Config.GetRecurrenceSerializable() {
		g.TxOptions.Isolation = sql.LevelSerializable
	}
	return g
}

// Generate inserts one visible event per matching day of req and returns how
// many were inserted. Days already holding an identical event (same start,
// end, type, place and title) are skipped.
//
// Everything happens in one transaction: any failure leaves the table as it
// was. Zero inserted rows is reported as *apperr.NoEventsGeneratedError.
func (g *Generator) Generate(ctx context.Context, req *Request) (int, error) {
	startTimer := time.Now()

	w, err := req.parse(g.loc)
	if err != nil {
		return 0, fmt.Errorf("(*Generator).Generate: %w", err)
	}
	days, err := w.days()
	if err != nil {
		return 0, fmt.Errorf("(*Generator).Generate: %w", invalid("weekdays", "can't build the rule", err))
	}
	if req.Group == "" {
		req.Group = uuid.NewString()
	}
	title := req.normalizedTitle()

	inserted, skipped := 0, 0
	if err := g.db.RunInTx(ctx, &g.TxOptions, func(ctx context.Context, tx bun.Tx) error {
		for _, day := range days {
			start, end := w.at(day)

			exists, err := duplicateQuery(tx, start, end, req.NoteID, req.PlaceID, title).Exists(ctx)
			if err != nil {
				return fmt.Errorf("duplicate check for %s: %w", day.Format(time.DateOnly), err)
			}
			if exists {
				skipped++
				continue
			}

			event := &model.CalendarEvent{
				StartDate: start.Unix(),
				EndDate:   end.Unix(),
				NoteID:    req.NoteID,
				PlaceID:   req.PlaceID,
				Title:     title,
				Note:      req.Note,
				IsVisible: true,
				GroupID:   req.Group,
				AddedBy:   req.AddedBy,
			}
			if err := event.Upsert(ctx, tx); err != nil {
				return fmt.Errorf("insert for %s: %w", day.Format(time.DateOnly), err)
			}
			inserted++
		}

		if inserted == 0 {
			return &apperr.NoEventsGeneratedError{}
		}
		return nil
	}); err != nil {
		return 0, fmt.Errorf("(*Generator).Generate: %w", err)
	}

	if g.metrics != nil {
		g.metrics.Push(g.metrics.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))
		g.metrics.Push(g.metrics.EventsGenerated, float64(inserted))
	}
	slog.Info("repeated events generated",
		"group", req.Group,
		"inserted", inserted,
		"skipped", skipped,
		"from", req.DateFrom,
		"till", req.DateTill,
	)
	return inserted, nil
}

func duplicateQuery(db bun.IDB, start, end time.Time, noteID, placeID int64, title string) *bun.SelectQuery {
	q := db.NewSelect().
		Model((*model.CalendarEvent)(nil)).
		Where("start_date = ?", start.Unix()).
		Where("end_date = ?", end.Unix()).
		Where("title = ?", title)
	// 0 is stored as NULL
	if noteID == 0 {
		q = q.Where("note_id IS NULL")
	} else {
		q = q.Where("note_id = ?", noteID)
	}
	if placeID == 0 {
		q = q.Where("place_id IS NULL")
	} else {
		q = q.Where("place_id = ?", placeID)
	}
	return q
}

// DeleteGroup removes every event of one recurrence group in a single
// statement and returns how many went.
func (g *Generator) DeleteGroup(ctx context.Context, group string) (int64, error) {
	if group == "" {
		return 0, fmt.Errorf("(*Generator).DeleteGroup: %w", invalid("group", "group is required", nil))
	}
	res, err := g.db.NewDelete().
		Model((*model.CalendarEvent)(nil)).
		Where("group_id = ?", group).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("(*Generator).DeleteGroup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("(*Generator).DeleteGroup: %w", err)
	}
	slog.Info("recurrence group deleted", "group", group, "deleted", n)
	return n, nil
}
