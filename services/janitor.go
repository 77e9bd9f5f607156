// services/janitor.go
package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/persistence"
)

// Janitor periodically deletes rooms nobody has touched for maxAge.
type Janitor struct {
	db       persistence.Store
	maxAge   time.Duration
	isLive   func(code string) bool
	cron     *cron.Cron
	schedule string
}

// NewJanitor builds a janitor; isLive reports rooms that still have open
// connections and must be kept.
func NewJanitor(db persistence.Store, schedule string, maxAge time.Duration, isLive func(code string) bool) *Janitor {
	return &Janitor{
		db:       db,
		maxAge:   maxAge,
		isLive:   isLive,
		cron:     cron.New(),
		schedule: schedule,
	}
}

func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.Sweep(context.Background(), time.Now()); err != nil {
			logger.Log.Errorf("Room cleanup failed: %v", err)
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	logger.Log.Infof("Room janitor scheduled (%s, max age %v)", j.schedule, j.maxAge)
	return nil
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep deletes stale rooms and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) (int, error) {
	rooms, err := j.db.ListRoomsUpdatedBefore(ctx, now.Add(-j.maxAge))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, room := range rooms {
		if j.isLive != nil && j.isLive(room.Code) {
			continue
		}
		if err := j.db.DeleteRoom(ctx, room.ID); err != nil {
			logger.Log.Errorf("Failed to delete room %s: %v", room.Code, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		logger.Log.Infof("Room cleanup removed %d rooms", deleted)
	}
	return deleted, nil
}
