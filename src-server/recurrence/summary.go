package recurrence

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// GroupSummary describes the rows one recurrence request produced.
type GroupSummary struct {
	GroupID    string `bun:"group_id" json:"group_id"`
	Qty        int    `bun:"qty" json:"qty"`
	FirstStart int64  `bun:"first_start" json:"first_start"`
	LastEnd    int64  `bun:"last_end" json:"last_end"`
	Title      string `bun:"title" json:"title"`
	Note       string `bun:"note" json:"note"`
	TypeName   string `bun:"type_name" json:"type_name"`
	PlaceName  string `bun:"place_name" json:"place_name"`
}

// ListGroups summarises every recurrence group, oldest first.
func (g *Generator) ListGroups(ctx context.Context) ([]GroupSummary, error) {
	return listGroups(ctx, g.db)
}

func listGroups(ctx context.Context, db bun.IDB) ([]GroupSummary, error) {
	groups := make([]GroupSummary, 0)
	if err := db.NewSelect().
		TableExpr("calendar_events AS c").
		Join("LEFT JOIN calendar_notes AS n ON c.note_id = n.id").
		Join("LEFT JOIN places AS p ON c.place_id = p.id").
		ColumnExpr("c.group_id").
		ColumnExpr("COUNT(*) AS qty").
		ColumnExpr("MIN(c.start_date) AS first_start").
		ColumnExpr("MAX(c.end_date) AS last_end").
		ColumnExpr("MAX(c.title) AS title").
		ColumnExpr("MAX(c.note) AS note").
		ColumnExpr("MAX(COALESCE(n.name, '')) AS type_name").
		ColumnExpr("MAX(COALESCE(p.name, '')) AS place_name").
		Where("c.group_id IS NOT NULL").
		GroupExpr("c.group_id").
		OrderExpr("first_start").
		Scan(ctx, &groups); err != nil {
		return nil, fmt.Errorf("ListGroups: %w", err)
	}
	return groups, nil
}
