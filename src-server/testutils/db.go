// Package testutils builds throwaway databases and app states for package tests.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"parish/src-server/model"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var dbCounter atomic.Int64

// NewDB returns an in-memory sqlite database with the full schema, closed on cleanup.
// Every call gets its own database even inside one test binary.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbCounter.Add(1))
	rawDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatal(err)
	}
	// one connection keeps the shared-cache database alive and serialises writers
	rawDB.SetMaxOpenConns(1)
	db := bun.NewDB(rawDB, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	if err := model.CreateSchema(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}
