// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler drives the recurring challenge and streak passes.
type Scheduler struct {
	Lifecycle *LifecycleService
	Announcer *AnnouncementDispatcher
	Streaks   *StreakService
	Interval  time.Duration
	Now       func() time.Time

	sched  gocron.Scheduler
	cancel context.CancelFunc
}

func NewScheduler(lifecycle *LifecycleService, announcer *AnnouncementDispatcher, streaks *StreakService, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scheduler{
		Lifecycle: lifecycle,
		Announcer: announcer,
		Streaks:   streaks,
		Interval:  interval,
		Now:       time.Now,
	}
}

// TickReport sums one tick. Errors are per pass; a failed pass never stops the next one.
type TickReport struct {
	Lifecycle    LifecycleReport
	Dispatch     DispatchReport
	Streaks      StreakReport
	LifecycleErr error
	DispatchErr  error
	StreakErr    error
}

// Tick runs one pass in order: challenge transitions, winner dispatch, streaks.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickReport {
	var rep TickReport

	rep.Lifecycle, rep.LifecycleErr = s.Lifecycle.TransitionChallenges(ctx, now)
	if rep.LifecycleErr != nil {
		log.Printf("[Scheduler] ⚠️ challenge pass: %v", rep.LifecycleErr)
	}

	if s.Announcer != nil {
		rep.Dispatch, rep.DispatchErr = s.Announcer.DispatchPending(ctx)
		if rep.DispatchErr != nil {
			log.Printf("[Scheduler] ⚠️ announcement dispatch: %v", rep.DispatchErr)
		}
	}

	rep.Streaks, rep.StreakErr = s.Streaks.EvaluateStreaks(ctx, now)
	if rep.StreakErr != nil {
		log.Printf("[Scheduler] ⚠️ streak pass: %v", rep.StreakErr)
	}
	return rep
}

// Start schedules Tick every Interval. A tick still running when the next is due
// makes gocron skip that run instead of overlapping it.
func (s *Scheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)

	_, err = sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Scheduler] ❌ tick panicked: %v", r)
				}
			}()
			rep := s.Tick(ctx, s.Now())
			if rep.Lifecycle.Opened > 0 || rep.Lifecycle.ClosedID != "" || rep.Dispatch.Notified > 0 ||
				rep.Streaks.Reminded > 0 || rep.Streaks.Reset > 0 {
				log.Printf("[Scheduler] ✅ tick: opened=%d closed=%q notified=%d reminded=%d reset=%d failed=%d",
					rep.Lifecycle.Opened, rep.Lifecycle.ClosedID, rep.Dispatch.Notified,
					rep.Streaks.Reminded, rep.Streaks.Reset, rep.Streaks.Failed)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("challenge-and-streak-tick"),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("schedule tick: %w", err)
	}

	sched.Start()
	s.sched = sched
	s.cancel = cancel
	log.Printf("[Scheduler] ⏱️ running every %s", s.Interval)
	return nil
}

// Stop cancels the running tick's context and waits for it to return.
func (s *Scheduler) Stop() error {
	if s.sched == nil {
		return nil
	}
	s.cancel()
	return s.sched.Shutdown()
}
