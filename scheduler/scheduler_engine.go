package scheduler

import (
	"fmt"
	"time"

	"github.com/mordomohq/mordomo/action"
	"github.com/mordomohq/mordomo/logger"
)

// armLocked computes the job's next occurrence and registers a timer for
// it, replacing any previous timer. Disabled jobs and jobs that are mid
// firing are left alone; a firing job is re-armed by finishFiring.
func (s *Scheduler) armLocked(e *entry) {
	if e.state == stateFiring {
		return
	}
	s.disarmLocked(e)
	if s.closed || !e.job.Enabled {
		return
	}

	now := s.clock.Now()
	next := e.sched.Next(now)
	if next.IsZero() {
		logger.Warn("job has no future occurrence", "id", e.job.ID, "cron", e.job.CronExpression)
		return
	}

	nextRun := next
	e.job.NextRun = &nextRun
	e.state = stateArmed
	e.seq++

	id, seq := e.job.ID, e.seq
	e.timer = s.clock.AfterFunc(next.Sub(now), func() {
		s.fire(id, seq)
	})
	logger.Debug("job armed", "id", id, "nextRun", next.Format(time.RFC3339))
}

// disarmLocked cancels the job's pending timer, if any. Bumping seq also
// invalidates a timer callback that already fired but has not yet taken
// the lock, so a cancelled job can never be observed firing afterwards.
func (s *Scheduler) disarmLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.seq++
	e.job.NextRun = nil
	if e.state == stateArmed {
		e.state = stateUnscheduled
	}
}

// fire is the timer callback. It moves the job to Firing, records
// LastRun before anything executes, and starts the firing goroutine.
func (s *Scheduler) fire(id string, seq uint64) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok || e.seq != seq || e.state != stateArmed || s.closed {
		s.mu.Unlock()
		return
	}

	e.state = stateFiring
	e.timer = nil
	now := s.clock.Now()
	e.job.LastRun = &now
	e.job.NextRun = nil
	job := e.snapshot()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runFiring(job)
}

// runFiring executes the job's actions outside the lock, publishes the
// completion event, and performs the post-firing transition. Each firing
// runs on its own goroutine so one slow executor never delays other jobs.
func (s *Scheduler) runFiring(job Job) []action.Result {
	defer s.wg.Done()

	logger.Info("running job", "id", job.ID, "description", job.Description)
	results := s.execute(job)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	logger.Info("job finished", "id", job.ID, "results", len(results), "failed", failed)

	s.publishCompleted(job, results)
	s.finishFiring(job.ID)
	return results
}

// execute invokes the executor with the scheduler's context. A panicking
// executor is contained: every action gets an error result instead.
func (s *Scheduler) execute(job Job) (results []action.Result) {
	if s.executor == nil || len(job.Actions) == 0 {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("executor panic", "id", job.ID, "panic", r)
			results = results[:0]
			for _, a := range job.Actions {
				results = append(results, action.Result{
					Action: a.Kind(),
					Error:  fmt.Sprintf("executor panic: %v", r),
				})
			}
		}
	}()

	return s.executor.Execute(s.ctx, job.Actions)
}

// finishFiring moves a job out of Firing: one-shot jobs are removed,
// anything else is re-armed if still enabled. Concurrent mutation wins;
// a job removed or reloaded mid-firing is handled by whatever the live
// map holds now.
func (s *Scheduler) finishFiring(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		// Removed while firing; the removal already persisted.
		return
	}

	if e.job.OneShot {
		s.disarmLocked(e)
		delete(s.jobs, id)
		logger.Info("one-shot job removed after firing", "id", id)
	} else {
		if e.state == stateFiring {
			e.state = stateUnscheduled
		}
		s.armLocked(e)
	}

	if err := s.saveLocked(); err != nil {
		logger.Warn("failed to persist job store after firing", "id", id, "err", err)
	}
}
