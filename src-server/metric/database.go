package metric

import (
	"context"
	"time"

	"parish/src-server/model"
	"parish/src-server/utils"
)

func database(as *utils.AppState) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := as.BunDB.NewSelect().
		Model((*model.CalendarEvent)(nil)).
		Where("id = ?", 0).
		Exists(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
