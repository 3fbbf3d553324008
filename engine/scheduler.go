package engine

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// InitializeSchedules starts the job reaper when a max age is configured.
// Without one, job directories live until the caller deletes them.
func (serverHandler *ServerHandler) InitializeSchedules() {
	maxAge := serverHandler.ServerConfig.JobMaxAge
	if maxAge <= 0 {
		Logger.Info("Job reaper disabled, jobs persist until deleted by the caller")
		return
	}

	intervalMinutes := int(serverHandler.ServerConfig.ReapInterval.Minutes())
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}

	c := cron.New()
	var reapJob cron.Job
	reapJob = cron.FuncJob(func() { serverHandler.reapJobFunc() })
	reapJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(reapJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", intervalMinutes), reapJob)
	Logger.Info("Adding job reaper schedule", "interval_minutes", intervalMinutes, "max_age", maxAge)
	c.Start()
}

// reapJobFunc removes job directories older than the configured max age
func (serverHandler *ServerHandler) reapJobFunc() {
	reaped, err := serverHandler.Store.ReapOlderThan(serverHandler.ServerConfig.JobMaxAge)
	if err != nil {
		Logger.Error("Job reaper failed", "error", err)
		return
	}
	if reaped > 0 {
		Logger.Info("Job reaper removed expired jobs", "count", reaped)
	}
}
