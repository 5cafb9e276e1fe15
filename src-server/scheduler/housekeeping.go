// Package scheduler runs the periodic jobs of the server.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parish/src-server/model"
	"parish/src-server/utils"

	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
)

// a single run never takes longer than this
const HOUSEKEEPING_TIMEOUT = time.Minute

// Housekeeping purges expired session rows and password reset tokens.
type Housekeeping struct {
	db  bun.IDB
	now func() time.Time
}

func NewHousekeeping(db bun.IDB) *Housekeeping {
	return &Housekeeping{db: db, now: time.Now}
}

func (h *Housekeeping) SetClock(now func() time.Time) {
	h.now = now
}

func (h *Housekeeping) Run(ctx context.Context) (sessions int64, tokens int64, err error) {
	now := h.now()
	if sessions, err = model.DeleteExpiredSessionTokens(ctx, h.db, now); err != nil {
		return 0, 0, fmt.Errorf("(*Housekeeping).Run: %w", err)
	}
	if tokens, err = model.ClearExpiredResetTokens(ctx, h.db, now); err != nil {
		return sessions, 0, fmt.Errorf("(*Housekeeping).Run: %w", err)
	}
	return sessions, tokens, nil
}

func (h *Housekeeping) runLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), HOUSEKEEPING_TIMEOUT)
	defer cancel()
	startTimer := time.Now()
	sessions, tokens, err := h.Run(ctx)
	if err != nil {
		slog.Error("housekeeping failed", "error", err)
		return
	}
	slog.Info("housekeeping done",
		"expired_sessions", sessions,
		"expired_reset_tokens", tokens,
		"took", time.Since(startTimer),
	)
}

// cronLogger sends robfig/cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

// Start schedules housekeeping on HOUSEKEEPING_CRON in the configured time
// zone. The scheduler stops, waiting for a running job, on graceful shutdown.
func Start(as *utils.AppState) (*cron.Cron, error) {
	scheduler := cron.New(
		cron.WithLocation(as.Config.GetLocation()),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		),
	)
	housekeeping := NewHousekeeping(as.BunDB)
	if _, err := scheduler.AddFunc(as.Config.GetHousekeepingCron(), housekeeping.runLogged); err != nil {
		return nil, fmt.Errorf("Start: HOUSEKEEPING_CRON %q: %w", as.Config.GetHousekeepingCron(), err)
	}
	scheduler.Start()
	slog.Debug("scheduler started", "housekeeping", as.Config.GetHousekeepingCron())

	go func() {
		<-*as.CreateGracefulShutdownChan()
		<-scheduler.Stop().Done()
		slog.Debug("scheduler stopped")
	}()
	return scheduler, nil
}
