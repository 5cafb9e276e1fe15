package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Release notes of this application, shown on the admin dashboard.
type Release struct {
	bun.BaseModel `bun:"table:releases"`

	ID         int64  `bun:"id,pk,autoincrement"`
	Version    string `bun:"version,notnull,unique"` // required
	Note       string `bun:"note"`
	ReleasedAt int64  `bun:"released_at,notnull"`
}

func (r *Release) Upsert(ctx context.Context, db bun.IDB) error {
	r.Version = strings.TrimSpace(r.Version)
	if r.Version == "" {
		return fmt.Errorf("(*Release).Upsert: %w", invalid("version", "version is required"))
	}
	if r.ReleasedAt == 0 {
		r.ReleasedAt = time.Now().UTC().Unix()
	}
	if _, err := db.NewInsert().
		Model(r).
		On("CONFLICT (version) DO UPDATE").
		Set("note = EXCLUDED.note").
		Set("released_at = EXCLUDED.released_at").
		Returning("id").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Release).Upsert: %w", err)
	}
	return nil
}

func ListReleases(ctx context.Context, db bun.IDB, limit, offset int) ([]Release, int, error) {
	releases := make([]Release, 0)
	total, err := db.NewSelect().
		Model(&releases).
		Order("released_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("ListReleases: %w", err)
	}
	return releases, total, nil
}

func DeleteRelease(ctx context.Context, db bun.IDB, id int64) error {
	res, err := db.NewDelete().Model((*Release)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("DeleteRelease: %w", err)
	}
	if err := affected(res, "release", id); err != nil {
		return fmt.Errorf("DeleteRelease: %w", err)
	}
	return nil
}
