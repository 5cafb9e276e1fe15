// Package seed loads the lookup tables (event types, places, feast levels
// and species, bell workshops, release notes) from a YAML file.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"parish/src-server/model"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

type File struct {
	EventTypes   []string   `yaml:"event_types"`
	Places       []string   `yaml:"places"`
	FeastLevels  []string   `yaml:"feast_levels"` // highest rank first
	FeastSpecies []string   `yaml:"feast_species"`
	Workshops    []Workshop `yaml:"workshops"`
	Releases     []Release  `yaml:"releases"`
}

type Workshop struct {
	Name string `yaml:"name"`
	City string `yaml:"city"`
	Note string `yaml:"note"`
}

type Release struct {
	Version string `yaml:"version"`
	Note    string `yaml:"note"`
	// YYYY-MM-DD
	ReleasedAt string `yaml:"released_at"`
}

// Counts of rows touched by Apply.
type Result struct {
	EventTypes   int
	Places       int
	FeastLevels  int
	FeastSpecies int
	Workshops    int
	Releases     int
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed.Load: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	file := new(File)
	if err := yaml.Unmarshal(raw, file); err != nil {
		return nil, fmt.Errorf("seed.Parse: %w", err)
	}
	for i, r := range file.Releases {
		if r.ReleasedAt == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, r.ReleasedAt); err != nil {
			return nil, fmt.Errorf("seed.Parse: release %d: %w", i, err)
		}
	}
	return file, nil
}

// Apply upserts everything in one transaction. Running it twice leaves the
// tables as the first run did.
func (f *File) Apply(ctx context.Context, db *bun.DB) (*Result, error) {
	result := new(Result)
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, name := range f.EventTypes {
			if err := (&model.CalendarNote{Name: name}).Upsert(ctx, tx); err != nil {
				return err
			}
			result.EventTypes++
		}
		for _, name := range f.Places {
			if err := (&model.Place{Name: name}).Upsert(ctx, tx); err != nil {
				return err
			}
			result.Places++
		}
		for _, description := range f.FeastLevels {
			if err := (&model.FeastLevel{Description: description}).Upsert(ctx, tx); err != nil {
				return err
			}
			result.FeastLevels++
		}
		for _, note := range f.FeastSpecies {
			if err := (&model.FeastSpecies{Note: note}).Upsert(ctx, tx); err != nil {
				return err
			}
			result.FeastSpecies++
		}
		for _, w := range f.Workshops {
			if err := upsertWorkshop(ctx, tx, w); err != nil {
				return err
			}
			result.Workshops++
		}
		for _, r := range f.Releases {
			release := &model.Release{Version: r.Version, Note: r.Note}
			if r.ReleasedAt != "" {
				day, _ := time.Parse(time.DateOnly, r.ReleasedAt)
				release.ReleasedAt = day.Unix()
			}
			if err := release.Upsert(ctx, tx); err != nil {
				return err
			}
			result.Releases++
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("(*File).Apply: %w", err)
	}

	slog.Info("seed applied",
		"event_types", result.EventTypes,
		"places", result.Places,
		"feast_levels", result.FeastLevels,
		"feast_species", result.FeastSpecies,
		"workshops", result.Workshops,
		"releases", result.Releases,
	)
	return result, nil
}

// workshops have no unique column, the name decides
func upsertWorkshop(ctx context.Context, tx bun.Tx, w Workshop) error {
	workshop := &model.Workshop{Name: w.Name, City: w.City, Note: w.Note}
	existing := new(model.Workshop)
	err := tx.NewSelect().Model(existing).Where("name = ?", w.Name).Limit(1).Scan(ctx)
	switch {
	case err == nil:
		workshop.ID = existing.ID
		workshop.PhotoPath = existing.PhotoPath
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}
	return workshop.Upsert(ctx, tx)
}
