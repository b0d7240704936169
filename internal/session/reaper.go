package session

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper periodically evicts in-memory state for rooms with no connected
// users. Pure memory hygiene: the document store is never touched.
type Reaper struct {
	manager  *Manager
	log      *zap.Logger
	schedule string
	cron     *cron.Cron
}

// NewReaper builds a reaper on a cron schedule ("@every 5m" by default).
func NewReaper(manager *Manager, log *zap.Logger, schedule string) *Reaper {
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &Reaper{
		manager:  manager,
		log:      log,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start begins the sweep schedule.
func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		if n := r.manager.ReapIdle(); n > 0 {
			r.log.Info("reaped idle rooms", zap.Int("rooms", n))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule room reaper: %w", err)
	}
	r.cron.Start()
	r.log.Info("room reaper started", zap.String("schedule", r.schedule))
	return nil
}

// Stop halts the schedule. A sweep already in flight finishes.
func (r *Reaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}
