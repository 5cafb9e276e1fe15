package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parish/src-server/utils"

	"github.com/uptrace/bun"
)

// Feast days repeat every year, so only month and day are stored.
const FEAST_DATE_LAYOUT = "01-02"

// Liturgical rank ("Slavnost", "Svátek", "Památka"...). Lower ids rank higher.
type FeastLevel struct {
	bun.BaseModel `bun:"table:feast_levels"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Description string `bun:"description,notnull,unique"` // required
}

// Who or what is celebrated ("mučedník", "panna"...).
type FeastSpecies struct {
	bun.BaseModel `bun:"table:feast_species"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Note string `bun:"note,notnull,unique"` // required
}

type Feast struct {
	bun.BaseModel `bun:"table:feasts"`

	ID        int64  `bun:"id,pk,autoincrement"`
	Name      string `bun:"name,notnull"` // required
	Detail    string `bun:"detail"`
	LevelID   int64  `bun:"level_id,notnull"`   // required
	SpeciesID int64  `bun:"species_id,notnull"` // required
	Date      string `bun:"feast_date,notnull"` // required, MM-DD
	PhotoPath string `bun:"photo_path"`

	Level   *FeastLevel   `bun:"rel:belongs-to,join:level_id=id"`
	Species *FeastSpecies `bun:"rel:belongs-to,join:species_id=id"`
}

// ParseFeastDate checks an MM-DD day, 02-29 included.
func ParseFeastDate(text string) (string, error) {
	text = strings.TrimSpace(text)
	// a leap year, so every day of the calendar parses
	day, err := time.Parse(time.DateOnly, "2024-"+text)
	if err != nil || day.Format(FEAST_DATE_LAYOUT) != text {
		return "", invalid("feast_date", "expected a MM-DD day")
	}
	return text, nil
}

func (l *FeastLevel) Upsert(ctx context.Context, db bun.IDB) error {
	l.Description = utils.CleanupString(l.Description)
	if l.Description == "" {
		return fmt.Errorf("(*FeastLevel).Upsert: %w", invalid("description", "description is required"))
	}
	if _, err := db.NewInsert().
		Model(l).
		On("CONFLICT (description) DO UPDATE").
		Set("description = EXCLUDED.description").
		Returning("id").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*FeastLevel).Upsert: %w", err)
	}
	return nil
}

func (s *FeastSpecies) Upsert(ctx context.Context, db bun.IDB) error {
	s.Note = utils.CleanupString(s.Note)
	if s.Note == "" {
		return fmt.Errorf("(*FeastSpecies).Upsert: %w", invalid("note", "note is required"))
	}
	if _, err := db.NewInsert().
		Model(s).
		On("CONFLICT (note) DO UPDATE").
		Set("note = EXCLUDED.note").
		Returning("id").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*FeastSpecies).Upsert: %w", err)
	}
	return nil
}

func (f *Feast) Upsert(ctx context.Context, db bun.IDB) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Detail = strings.TrimSpace(f.Detail)
	date, dateErr := ParseFeastDate(f.Date)
	switch {
	case f.Name == "":
		return fmt.Errorf("(*Feast).Upsert: %w", invalid("name", "feast name is required"))
	case dateErr != nil:
		return fmt.Errorf("(*Feast).Upsert: %w", dateErr)
	case f.LevelID <= 0:
		return fmt.Errorf("(*Feast).Upsert: %w", invalid("level_id", "feast level is required"))
	case f.SpeciesID <= 0:
		return fmt.Errorf("(*Feast).Upsert: %w", invalid("species_id", "feast species is required"))
	}
	f.Date = date

	if exists, err := db.NewSelect().Model((*FeastLevel)(nil)).Where("id = ?", f.LevelID).Exists(ctx); err != nil {
		return fmt.Errorf("(*Feast).Upsert: %w", err)
	} else if !exists {
		return fmt.Errorf("(*Feast).Upsert: %w", invalid("level_id", "unknown feast level"))
	}
	if exists, err := db.NewSelect().Model((*FeastSpecies)(nil)).Where("id = ?", f.SpeciesID).Exists(ctx); err != nil {
		return fmt.Errorf("(*Feast).Upsert: %w", err)
	} else if !exists {
		return fmt.Errorf("(*Feast).Upsert: %w", invalid("species_id", "unknown feast species"))
	}

	if f.ID == 0 {
		if _, err := db.NewInsert().Model(f).Exec(ctx); err != nil {
			return fmt.Errorf("(*Feast).Upsert: %w", err)
		}
		return nil
	}
	res, err := db.NewUpdate().Model(f).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*Feast).Upsert: %w", err)
	}
	if err := affected(res, "feast", f.ID); err != nil {
		return fmt.Errorf("(*Feast).Upsert: %w", err)
	}
	return nil
}

func GetFeast(ctx context.Context, db bun.IDB, id int64) (*Feast, error) {
	feast := new(Feast)
	if err := db.NewSelect().
		Model(feast).
		Relation("Level").
		Relation("Species").
		Where("feast.id = ?", id).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetFeast: %w", notFound(err, "feast", id))
	}
	return feast, nil
}

// ListFeasts orders the catalogue by its place in the year.
func ListFeasts(ctx context.Context, db bun.IDB) ([]Feast, error) {
	feasts := make([]Feast, 0)
	if err := db.NewSelect().
		Model(&feasts).
		Relation("Level").
		Relation("Species").
		Order("feast.feast_date", "feast.level_id", "feast.name").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListFeasts: %w", err)
	}
	return feasts, nil
}

// FeastsOn lists the feasts falling on day's month and day, highest rank first.
func FeastsOn(ctx context.Context, db bun.IDB, day time.Time) ([]Feast, error) {
	feasts := make([]Feast, 0)
	if err := db.NewSelect().
		Model(&feasts).
		Relation("Level").
		Relation("Species").
		Where("feast.feast_date = ?", day.Format(FEAST_DATE_LAYOUT)).
		Order("feast.level_id", "feast.name").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("FeastsOn: %w", err)
	}
	return feasts, nil
}

// DeleteFeast removes the row and its photo.
func DeleteFeast(ctx context.Context, db bun.IDB, id int64, remover Remover) error {
	feast := new(Feast)
	if err := db.NewSelect().Model(feast).Where("id = ?", id).Scan(ctx); err != nil {
		return fmt.Errorf("DeleteFeast: %w", notFound(err, "feast", id))
	}
	if _, err := db.NewDelete().Model((*Feast)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("DeleteFeast: %w", err)
	}
	removePhoto(remover, feast.PhotoPath)
	return nil
}

func ListFeastLevels(ctx context.Context, db bun.IDB) ([]FeastLevel, error) {
	levels := make([]FeastLevel, 0)
	if err := db.NewSelect().Model(&levels).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListFeastLevels: %w", err)
	}
	return levels, nil
}

func ListFeastSpecies(ctx context.Context, db bun.IDB) ([]FeastSpecies, error) {
	species := make([]FeastSpecies, 0)
	if err := db.NewSelect().Model(&species).Order("note").Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListFeastSpecies: %w", err)
	}
	return species, nil
}
