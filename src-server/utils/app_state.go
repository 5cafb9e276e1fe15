package utils

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/uptrace/bun"
)

type AppState struct {
	Config      *Config
	RawDB       *sql.DB
	BunDB       *bun.DB
	When        *when.Parser
	MetricChans *Metric

	// main blocks on this, anything can push a signal to stop the app
	AppCloseSignalChan chan os.Signal

	startedAt              time.Time
	gracefulShutdownChans  []*chan struct{}
	gracefulShutdownMutex  sync.Mutex
	gracefulShutdownCalled bool
}

// NewAppState opens the database described by config, the schema is left to the caller.
func NewAppState(config *Config) (*AppState, error) {
	rawDB, bunDB, err := OpenDB(config.GetDBDriver(), config.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("NewAppState: %w", err)
	}
	as := NewAppStateWithDB(config, rawDB, bunDB)
	slog.Debug("database opened", "driver", config.GetDBDriver())
	return as, nil
}

// NewAppStateWithDB wires an already opened database, tests use it with in-memory sqlite.
func NewAppStateWithDB(config *Config, rawDB *sql.DB, bunDB *bun.DB) *AppState {
	as := &AppState{
		Config:             config,
		RawDB:              rawDB,
		BunDB:              bunDB,
		MetricChans:        NewMetric(),
		AppCloseSignalChan: make(chan os.Signal, 1),
		startedAt:          time.Now(),
	}

	// date parser
	as.When = when.New(nil)
	as.When.Add(en.All...)
	as.When.Add(common.All...)

	return as
}

// Every background goroutine asks for its own channel, closed by GracefulShutdown.
func (as *AppState) CreateGracefulShutdownChan() *chan struct{} {
	as.gracefulShutdownMutex.Lock()
	defer as.gracefulShutdownMutex.Unlock()
	ch := make(chan struct{})
	if as.gracefulShutdownCalled {
		close(ch)
		return &ch
	}
	as.gracefulShutdownChans = append(as.gracefulShutdownChans, &ch)
	return &ch
}

func (as *AppState) GracefulShutdown() {
	as.gracefulShutdownMutex.Lock()
	if as.gracefulShutdownCalled {
		as.gracefulShutdownMutex.Unlock()
		return
	}
	as.gracefulShutdownCalled = true
	for _, ch := range as.gracefulShutdownChans {
		close(*ch)
	}
	as.gracefulShutdownChans = nil
	as.gracefulShutdownMutex.Unlock()

	if as.BunDB != nil {
		if err := as.BunDB.Close(); err != nil {
			slog.Warn("can't close database", "error", err)
		}
	}
}

func (as *AppState) GetUptime() time.Duration {
	return time.Since(as.startedAt)
}
