package channels

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// schedulerLogger routes gocron's logging through slog.
type schedulerLogger struct{}

func (schedulerLogger) Debug(msg string, args ...any) { slog.Debug("scheduler: "+msg, args...) }
func (schedulerLogger) Info(msg string, args ...any)  { slog.Info("scheduler: "+msg, args...) }
func (schedulerLogger) Warn(msg string, args ...any)  { slog.Warn("scheduler: "+msg, args...) }
func (schedulerLogger) Error(msg string, args ...any) { slog.Error("scheduler: "+msg, args...) }

func newScheduler() (gocron.Scheduler, error) {
	return gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(schedulerLogger{}),
	)
}
