package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

func CreateSchema(ctx context.Context, db *bun.DB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*User)(nil),
			(*SessionToken)(nil),
			(*CalendarNote)(nil),
			(*Place)(nil),
			(*CalendarEvent)(nil),
			(*Post)(nil),
			(*Workshop)(nil),
			(*Bell)(nil),
			(*Ticket)(nil),
			(*Release)(nil),
			(*FeastLevel)(nil),
			(*FeastSpecies)(nil),
			(*Feast)(nil),
		} {
			if _, err := tx.
				NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}

		for _, index := range []struct {
			model   interface{}
			name    string
			columns []string
		}{
			{(*CalendarEvent)(nil), "calendar_events_start_date_idx", []string{"start_date"}},
			{(*CalendarEvent)(nil), "calendar_events_group_id_idx", []string{"group_id"}},
			{(*CalendarEvent)(nil), "calendar_events_dedup_idx", []string{"start_date", "end_date", "title"}},
			{(*SessionToken)(nil), "session_tokens_user_id_idx", []string{"user_id"}},
			{(*Post)(nil), "posts_kind_published_at_idx", []string{"kind", "published_at"}},
			{(*Feast)(nil), "feasts_feast_date_idx", []string{"feast_date"}},
		} {
			if _, err := tx.
				NewCreateIndex().
				Model(index.model).
				Index(index.name).
				Column(index.columns...).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}

	return nil
}
