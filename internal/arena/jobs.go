package arena

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/stats"
)

type JobOptions struct {
	Keepalive  time.Duration
	SweepEvery time.Duration
	Clock      clockwork.Clock
}

// StartJobs schedules the background work that must stay off the tick loop:
// connection keepalive, registry eviction and the daily record reset.
func StartJobs(a *Arena, h *Hub, records *stats.Records, o JobOptions) (gocron.Scheduler, error) {
	if o.Keepalive <= 0 {
		o.Keepalive = 30 * time.Second
	}
	if o.SweepEvery <= 0 {
		o.SweepEvery = time.Second
	}
	opts := []gocron.SchedulerOption{gocron.WithLocation(time.UTC)}
	if o.Clock != nil {
		opts = append(opts, gocron.WithClock(o.Clock))
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	single := gocron.WithSingletonMode(gocron.LimitModeReschedule)
	if _, err := sched.NewJob(gocron.DurationJob(o.Keepalive), gocron.NewTask(h.Probe), single,
		gocron.WithName("keepalive")); err != nil {
		return nil, fmt.Errorf("keepalive job: %w", err)
	}
	if _, err := sched.NewJob(gocron.DurationJob(o.SweepEvery), gocron.NewTask(func() {
		if !a.Post(Sweep{}) {
			log.Printf("jobs: sweep skipped, arena stopped")
		}
	}), single, gocron.WithName("sweep")); err != nil {
		return nil, fmt.Errorf("sweep job: %w", err)
	}
	if records != nil {
		if _, err := sched.NewJob(gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
			gocron.NewTask(records.ResetDaily), gocron.WithName("daily-reset")); err != nil {
			return nil, fmt.Errorf("daily reset job: %w", err)
		}
	}

	sched.Start()
	return sched, nil
}
