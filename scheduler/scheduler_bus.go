package scheduler

import (
	"context"

	"github.com/mordomohq/mordomo/action"
	"github.com/mordomohq/mordomo/bus"
	"github.com/mordomohq/mordomo/logger"
)

// AttachBus subscribes the scheduler to schedule_job and remove_job
// intake events and makes it publish job_completed events there. Shutdown
// detaches the subscriptions again.
func (s *Scheduler) AttachBus(b *bus.Bus) {
	if b == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.busRef = b
	s.subIDs = append(s.subIDs,
		b.Subscribe(bus.EventScheduleJob, s.handleScheduleEvent),
		b.Subscribe(bus.EventRemoveJob, s.handleRemoveEvent),
	)
}

func (s *Scheduler) handleScheduleEvent(_ context.Context, evt *bus.Event) {
	var req bus.ScheduleJobRequest
	if err := evt.ParseData(&req); err != nil {
		logger.Warn("malformed schedule_job event", "event", evt.ID, "err", err)
		return
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = evt.Source
	}
	if _, err := s.AddJob(req.Cron, req.Description, req.Actions, createdBy, req.OneShot); err != nil {
		logger.Warn("rejected schedule_job event", "event", evt.ID, "cron", req.Cron, "err", err)
	}
}

func (s *Scheduler) handleRemoveEvent(_ context.Context, evt *bus.Event) {
	var req bus.RemoveJobRequest
	if err := evt.ParseData(&req); err != nil {
		logger.Warn("malformed remove_job event", "event", evt.ID, "err", err)
		return
	}
	if req.JobID == "" {
		return
	}
	if !s.RemoveJob(req.JobID) {
		logger.Warn("remove_job event for unknown job", "id", req.JobID)
	}
}

// publishCompleted announces a finished firing with its per-action
// results.
func (s *Scheduler) publishCompleted(job Job, results []action.Result) {
	s.mu.Lock()
	b := s.busRef
	s.mu.Unlock()
	if b == nil {
		return
	}

	evt, err := bus.NewEvent(bus.EventJobCompleted, "scheduler", bus.JobCompleted{
		JobID:       job.ID,
		Description: job.Description,
		Results:     results,
	})
	if err != nil {
		logger.Warn("failed to encode job_completed event", "id", job.ID, "err", err)
		return
	}
	b.Publish(evt)
}
