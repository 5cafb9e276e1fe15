package utils

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	DB_DRIVER_SQLITE   = "sqlite"
	DB_DRIVER_POSTGRES = "postgres"
)

// Open the raw connection pool and wrap it with the bun dialect of the driver.
func OpenDB(driver string, dsn string) (*sql.DB, *bun.DB, error) {
	var (
		rawDB *sql.DB
		bunDB *bun.DB
		err   error
	)
	switch driver {
	case DB_DRIVER_SQLITE:
		if rawDB, err = sql.Open(sqliteshim.ShimName, dsn); err != nil {
			return nil, nil, fmt.Errorf("OpenDB: %w", err)
		}
		rawDB.SetMaxIdleConns(8)
		bunDB = bun.NewDB(rawDB, sqlitedialect.New())
	case DB_DRIVER_POSTGRES:
		if rawDB, err = sql.Open("pgx", dsn); err != nil {
			return nil, nil, fmt.Errorf("OpenDB: %w", err)
		}
		bunDB = bun.NewDB(rawDB, pgdialect.New())
	default:
		return nil, nil, fmt.Errorf("OpenDB: unknown driver %q", driver)
	}

	bunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))
	return rawDB, bunDB, nil
}
