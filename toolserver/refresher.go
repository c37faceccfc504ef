package toolserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Schedule yields successive wake times for the refresher.
type Schedule interface {
	Next(time.Time) time.Time
}

type cronSchedule struct {
	schedule cron.Schedule
}

func (cs *cronSchedule) Next(t time.Time) time.Time {
	return cs.schedule.Next(t)
}

// ParseSchedule parses a refresh schedule string.
// Supports:
//   - Cron expressions: "0 */15 * * * *" (6-field) or "*/15 * * * *" (5-field)
//   - Go duration strings: "15m", "2h", "1h30m"
func ParseSchedule(schedule string) (Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("schedule string is empty")
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronSched, err := parser.Parse(schedule)
	if err == nil {
		return &cronSchedule{schedule: cronSched}, nil
	}

	duration, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule as cron expression or duration: %w", err)
	}
	return &cronSchedule{schedule: cron.ConstantDelaySchedule{Delay: duration}}, nil
}

// Refresher periodically re-runs RefreshTools for every enabled server
// so the registry's tool metadata tracks what the servers actually
// expose. Refresh failures are logged and skipped; a stale list beats
// an unavailable registry.
type Refresher struct {
	registry *Registry
	schedule Schedule
	logger   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRefresher creates a refresher on the given schedule.
func NewRefresher(registry *Registry, schedule string, logger zerolog.Logger) (*Refresher, error) {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule: %w", err)
	}
	return &Refresher{
		registry: registry,
		schedule: sched,
		logger:   logger.With().Str("component", "toolserver_refresher").Logger(),
	}, nil
}

// Start launches the refresh loop. An immediate refresh runs first so
// freshly-configured servers advertise tools without waiting a cycle.
func (f *Refresher) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})

	go func() {
		defer close(f.done)

		f.refreshAll(ctx)
		for {
			wake := f.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(wake))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				f.refreshAll(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for any in-flight refresh to finish.
func (f *Refresher) Stop() {
	f.once.Do(func() {
		if f.cancel != nil {
			f.cancel()
			<-f.done
		}
	})
}

func (f *Refresher) refreshAll(ctx context.Context) {
	for name := range f.registry.ListEnabledServers() {
		if ctx.Err() != nil {
			return
		}
		if err := f.registry.RefreshTools(ctx, name); err != nil {
			f.logger.Warn().Str("server", name).Err(err).Msg("Tool refresh failed; keeping previous tool list")
			continue
		}
	}
}
