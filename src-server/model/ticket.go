package model

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Description string `bun:"description,notnull"` // required
	PhotoPath   string `bun:"photo_path"`
	ReportedBy  int64  `bun:"reported_by,nullzero"`
	Reply       string `bun:"reply"`
	ReceivedAt  int64  `bun:"received_at,notnull"`
	FinishedAt  int64  `bun:"finished_at,nullzero"`
	IsDone      bool   `bun:"is_done,notnull"`
	IsPriority  bool   `bun:"is_priority,notnull"`
}

func (t *Ticket) Insert(ctx context.Context, db bun.IDB) error {
	t.Description = strings.TrimSpace(t.Description)
	if t.Description == "" {
		return fmt.Errorf("(*Ticket).Insert: %w", invalid("description", "please describe the problem"))
	}
	if t.ReceivedAt == 0 {
		t.ReceivedAt = time.Now().UTC().Unix()
	}
	t.IsDone = false
	t.IsPriority = false
	if _, err := db.NewInsert().Model(t).Exec(ctx); err != nil {
		return fmt.Errorf("(*Ticket).Insert: %w", err)
	}
	return nil
}

func GetTicket(ctx context.Context, db bun.IDB, id int64) (*Ticket, error) {
	ticket := new(Ticket)
	if err := db.NewSelect().Model(ticket).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetTicket: %w", notFound(err, "ticket", id))
	}
	return ticket, nil
}

// ListTickets puts the priority ticket first, then the newest.
func ListTickets(ctx context.Context, db bun.IDB, done bool) ([]Ticket, error) {
	tickets := make([]Ticket, 0)
	if err := db.NewSelect().
		Model(&tickets).
		Where("is_done = ?", done).
		Order("is_priority DESC", "received_at DESC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListTickets: %w", err)
	}
	return tickets, nil
}

func ReplyTicket(ctx context.Context, db bun.IDB, id int64, reply string) error {
	res, err := db.NewUpdate().
		Model((*Ticket)(nil)).
		Set("reply = ?", strings.TrimSpace(reply)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ReplyTicket: %w", err)
	}
	if err := affected(res, "ticket", id); err != nil {
		return fmt.Errorf("ReplyTicket: %w", err)
	}
	return nil
}

// DoneTicket archives the ticket, an archived ticket is never the priority one.
func DoneTicket(ctx context.Context, db bun.IDB, id int64, now time.Time) error {
	res, err := db.NewUpdate().
		Model((*Ticket)(nil)).
		Set("is_done = ?", true).
		Set("finished_at = ?", now.UTC().Unix()).
		Set("is_priority = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("DoneTicket: %w", err)
	}
	if err := affected(res, "ticket", id); err != nil {
		return fmt.Errorf("DoneTicket: %w", err)
	}
	return nil
}

// SetPriorityTicket makes id the only open priority ticket.
func SetPriorityTicket(ctx context.Context, db *bun.DB, id int64) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*Ticket)(nil)).
			Set("is_priority = ?", false).
			Where("is_done = ?", false).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewUpdate().
			Model((*Ticket)(nil)).
			Set("is_priority = ?", true).
			Where("id = ?", id).
			Where("is_done = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}
		// closed or missing, roll the reset back too
		return affected(res, "open ticket", id)
	}); err != nil {
		return fmt.Errorf("SetPriorityTicket: %w", err)
	}
	return nil
}

func DeleteTicket(ctx context.Context, db bun.IDB, id int64, remover Remover) error {
	ticket, err := GetTicket(ctx, db, id)
	if err != nil {
		return fmt.Errorf("DeleteTicket: %w", err)
	}
	if _, err := db.NewDelete().Model((*Ticket)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("DeleteTicket: %w", err)
	}
	removePhoto(remover, ticket.PhotoPath)
	return nil
}

func CountTickets(ctx context.Context, db bun.IDB, done bool) (int, error) {
	count, err := db.NewSelect().Model((*Ticket)(nil)).Where("is_done = ?", done).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTickets: %w", err)
	}
	return count, nil
}

// AverageFinishDuration is the mean time from receiving to finishing a done ticket,
// ok is false when no ticket was finished yet.
func AverageFinishDuration(ctx context.Context, db bun.IDB) (d time.Duration, ok bool, err error) {
	var avg sql.NullFloat64
	if err := db.NewSelect().
		Model((*Ticket)(nil)).
		ColumnExpr("AVG(finished_at - received_at)").
		Where("is_done = ?", true).
		Where("finished_at IS NOT NULL").
		Scan(ctx, &avg); err != nil {
		return 0, false, fmt.Errorf("AverageFinishDuration: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return time.Duration(math.Round(avg.Float64)) * time.Second, true, nil
}

// AverageOpenDuration is the mean age of the open tickets at now.
func AverageOpenDuration(ctx context.Context, db bun.IDB, now time.Time) (d time.Duration, ok bool, err error) {
	var avg sql.NullFloat64
	if err := db.NewSelect().
		Model((*Ticket)(nil)).
		ColumnExpr("AVG(? - received_at)", now.UTC().Unix()).
		Where("is_done = ?", false).
		Scan(ctx, &avg); err != nil {
		return 0, false, fmt.Errorf("AverageOpenDuration: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return time.Duration(math.Round(avg.Float64)) * time.Second, true, nil
}

// FormatDuration renders "1 day, 2 hours, 30 minutes" style text.
func FormatDuration(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	if total <= 0 {
		return "0 minutes"
	}
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60

	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 {
		return "Less than 1 minute"
	}
	return strings.Join(parts, ", ")
}
