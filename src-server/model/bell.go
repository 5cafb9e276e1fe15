package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Bell foundry.
type Workshop struct {
	bun.BaseModel `bun:"table:bell_workshops"`

	ID        int64  `bun:"id,pk,autoincrement"`
	Name      string `bun:"name,notnull"` // required
	City      string `bun:"city"`
	Note      string `bun:"note"`
	PhotoPath string `bun:"photo_path"`
}

type Bell struct {
	bun.BaseModel `bun:"table:bells"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Name        string `bun:"name,notnull"` // required
	PlaceID     int64  `bun:"place_id,nullzero"`
	WorkshopID  int64  `bun:"workshop_id,nullzero"`
	CastYear    int    `bun:"cast_year"`
	WeightKg    int    `bun:"weight_kg"`
	DiameterCm  int    `bun:"diameter_cm"`
	Tone        string `bun:"tone"`
	Inscription string `bun:"inscription"`
	Note        string `bun:"note"`
	PhotoPath   string `bun:"photo_path"`

	Place    *Place    `bun:"rel:belongs-to,join:place_id=id"`
	Workshop *Workshop `bun:"rel:belongs-to,join:workshop_id=id"`
}

func (w *Workshop) Upsert(ctx context.Context, db bun.IDB) error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return fmt.Errorf("(*Workshop).Upsert: %w", invalid("name", "workshop name is required"))
	}
	if w.ID == 0 {
		if _, err := db.NewInsert().Model(w).Exec(ctx); err != nil {
			return fmt.Errorf("(*Workshop).Upsert: %w", err)
		}
		return nil
	}
	res, err := db.NewUpdate().Model(w).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*Workshop).Upsert: %w", err)
	}
	if err := affected(res, "workshop", w.ID); err != nil {
		return fmt.Errorf("(*Workshop).Upsert: %w", err)
	}
	return nil
}

func (b *Bell) Upsert(ctx context.Context, db bun.IDB) error {
	b.Name = strings.TrimSpace(b.Name)
	switch {
	case b.Name == "":
		return fmt.Errorf("(*Bell).Upsert: %w", invalid("name", "bell name is required"))
	case b.CastYear < 0 || b.WeightKg < 0 || b.DiameterCm < 0:
		return fmt.Errorf("(*Bell).Upsert: %w", invalid("numbers", "year, weight and diameter can't be negative"))
	}
	if b.ID == 0 {
		if _, err := db.NewInsert().Model(b).Exec(ctx); err != nil {
			return fmt.Errorf("(*Bell).Upsert: %w", err)
		}
		return nil
	}
	res, err := db.NewUpdate().Model(b).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*Bell).Upsert: %w", err)
	}
	if err := affected(res, "bell", b.ID); err != nil {
		return fmt.Errorf("(*Bell).Upsert: %w", err)
	}
	return nil
}

func GetBell(ctx context.Context, db bun.IDB, id int64) (*Bell, error) {
	bell := new(Bell)
	if err := db.NewSelect().
		Model(bell).
		Relation("Place").
		Relation("Workshop").
		Where("bell.id = ?", id).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetBell: %w", notFound(err, "bell", id))
	}
	return bell, nil
}

func ListBells(ctx context.Context, db bun.IDB) ([]Bell, error) {
	bells := make([]Bell, 0)
	if err := db.NewSelect().
		Model(&bells).
		Relation("Place").
		Relation("Workshop").
		Order("bell.name").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListBells: %w", err)
	}
	return bells, nil
}

func GetWorkshop(ctx context.Context, db bun.IDB, id int64) (*Workshop, error) {
	workshop := new(Workshop)
	if err := db.NewSelect().Model(workshop).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetWorkshop: %w", notFound(err, "workshop", id))
	}
	return workshop, nil
}

func ListWorkshops(ctx context.Context, db bun.IDB) ([]Workshop, error) {
	workshops := make([]Workshop, 0)
	if err := db.NewSelect().Model(&workshops).Order("name").Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListWorkshops: %w", err)
	}
	return workshops, nil
}

// DeleteBell removes the row, then its photo from storage.
func DeleteBell(ctx context.Context, db bun.IDB, id int64, remover Remover) error {
	bell := new(Bell)
	if err := db.NewSelect().Model(bell).Where("id = ?", id).Scan(ctx); err != nil {
		return fmt.Errorf("DeleteBell: %w", notFound(err, "bell", id))
	}
	if _, err := db.NewDelete().Model((*Bell)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("DeleteBell: %w", err)
	}
	removePhoto(remover, bell.PhotoPath)
	return nil
}

// DeleteWorkshop detaches its bells before removing the row and its photo.
func DeleteWorkshop(ctx context.Context, db *bun.DB, id int64, remover Remover) error {
	workshop, err := GetWorkshop(ctx, db, id)
	if err != nil {
		return fmt.Errorf("DeleteWorkshop: %w", err)
	}
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*Bell)(nil)).
			Set("workshop_id = NULL").
			Where("workshop_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*Workshop)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("DeleteWorkshop: %w", err)
	}
	removePhoto(remover, workshop.PhotoPath)
	return nil
}
