// Package scheduler persists, schedules, and fires recurring or one-shot
// cron jobs carrying ordered action lists.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	robfigcron "github.com/robfig/cron/v3"
	"github.com/tidwall/gjson"

	"github.com/mordomohq/mordomo/action"
	"github.com/mordomohq/mordomo/logger"
)

// New creates a scheduler. Call Load to populate it from the store and
// Shutdown to release its timers.
func New(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    cfg.Store,
		executor: cfg.Executor,
		clock:    clock,
		jobs:     make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddJob validates the cron expression, registers a new enabled job, arms
// its first occurrence, and persists the set before returning. The only
// error it surfaces is ErrInvalidCronExpression; a persistence failure is
// logged without rolling back the in-memory add.
func (s *Scheduler) AddJob(cronExpr, description string, actions action.List, createdBy string, oneShot bool) (*Job, error) {
	cronExpr = strings.TrimSpace(cronExpr)
	sched, err := parseSpec(cronExpr)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = action.List{}
	}

	s.mu.Lock()
	e := &entry{
		job: Job{
			ID:             s.newJobIDLocked(),
			CronExpression: cronExpr,
			Description:    strings.TrimSpace(description),
			Actions:        actions,
			CreatedBy:      strings.TrimSpace(createdBy),
			Enabled:        true,
			OneShot:        oneShot,
		},
		sched: sched,
	}
	s.jobs[e.job.ID] = e
	s.armLocked(e)
	if err := s.saveLocked(); err != nil {
		logger.Warn("failed to persist job store after add", "id", e.job.ID, "err", err)
	}
	job := e.snapshot()
	s.mu.Unlock()

	logger.Info("job added", "id", job.ID, "cron", job.CronExpression, "description", job.Description)
	return &job, nil
}

// RemoveJob cancels and deletes a job. It returns false when the ID is
// unknown.
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return false
	}

	s.disarmLocked(e)
	delete(s.jobs, id)
	if err := s.saveLocked(); err != nil {
		logger.Warn("failed to persist job store after remove", "id", id, "err", err)
	}
	logger.Info("job removed", "id", id)
	return true
}

// EnableJob arms a disabled job again. It returns false when the ID is
// unknown.
func (s *Scheduler) EnableJob(id string) bool {
	return s.setEnabled(id, true)
}

// DisableJob cancels a job's pending timer but keeps it persisted. It
// returns false when the ID is unknown.
func (s *Scheduler) DisableJob(id string) bool {
	return s.setEnabled(id, false)
}

func (s *Scheduler) setEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return false
	}
	if e.job.Enabled == enabled {
		return true
	}

	e.job.Enabled = enabled
	if enabled {
		s.armLocked(e)
	} else {
		s.disarmLocked(e)
	}
	if err := s.saveLocked(); err != nil {
		logger.Warn("failed to persist job store after enable change", "id", id, "err", err)
	}
	logger.Info("job enabled flag changed", "id", id, "enabled", enabled)
	return true
}

// Jobs returns value snapshots of every live job, sorted by ID.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Job returns a snapshot of one job.
func (s *Scheduler) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.snapshot(), true
}

// RunJob fires a job immediately, outside its schedule, and returns the
// per-action results. It refuses jobs that are unknown or already
// firing. The usual post-firing transition applies: one-shot jobs are
// removed, recurring jobs are re-armed.
func (s *Scheduler) RunJob(id string) ([]action.Result, bool) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok || e.state == stateFiring {
		s.mu.Unlock()
		return nil, false
	}

	s.disarmLocked(e)
	e.state = stateFiring
	now := s.clock.Now()
	e.job.LastRun = &now
	job := e.snapshot()
	s.wg.Add(1)
	s.mu.Unlock()

	return s.runFiring(job), true
}

// Load replaces the live job set with the store's contents. Malformed
// records are skipped individually so one bad entry never blocks the
// rest; a store-level failure leaves the previous set untouched.
func (s *Scheduler) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	st, err := s.store.Load()
	if err != nil {
		return err
	}

	// Safe swap: only reset live schedules once the new store is read.
	next := make(map[string]*entry)
	if st != nil {
		for _, raw := range st.Jobs {
			job, sched, err := decodeStoredRecord(raw)
			if err != nil {
				logger.Warn("skipping malformed job record", "err", err)
				continue
			}
			if _, dup := next[job.ID]; dup {
				logger.Warn("skipping duplicate job id in store", "id", job.ID)
				continue
			}

			if old, ok := s.jobs[job.ID]; ok && old.state == stateFiring {
				// A firing is in flight for this job: adopt the stored
				// record, keep the LastRun set when the firing started,
				// and let finishFiring re-arm it.
				job.LastRun = old.job.LastRun
				old.job = job
				old.sched = sched
				next[job.ID] = old
				continue
			}
			next[job.ID] = &entry{job: job, sched: sched}
		}
	}

	for id, e := range s.jobs {
		if next[id] == e {
			continue
		}
		s.disarmLocked(e)
	}
	s.jobs = next
	for _, e := range next {
		s.armLocked(e)
	}

	logger.Info("loaded scheduled jobs", "count", len(next))
	return nil
}

// Save persists the full live set as-is.
func (s *Scheduler) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Shutdown cancels every pending timer, detaches bus subscriptions, and
// cancels the executor context, then waits for in-flight firings to
// drain. It is idempotent. The job set itself is kept so a final Save
// still sees it.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, e := range s.jobs {
		s.disarmLocked(e)
	}
	subIDs := s.subIDs
	s.subIDs = nil
	b := s.busRef
	s.mu.Unlock()

	if b != nil {
		for _, subID := range subIDs {
			b.Unsubscribe(subID)
		}
	}
	s.cancel()
	s.wg.Wait()
	logger.Info("scheduler stopped")
}

// newJobIDLocked returns a fresh 8-character job ID, re-rolling on the
// unlikely collision with a live job.
func (s *Scheduler) newJobIDLocked() string {
	for {
		id := uuid.NewString()[:8]
		if _, exists := s.jobs[id]; !exists {
			return id
		}
	}
}

func (s *Scheduler) saveLocked() error {
	if s.store == nil {
		return nil
	}

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		raw, err := json.Marshal(s.jobs[id].job)
		if err != nil {
			return err
		}
		records = append(records, raw)
	}
	return s.store.Save(State{Version: storageVersion, Jobs: records})
}

func decodeStoredRecord(raw json.RawMessage) (Job, robfigcron.Schedule, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, nil, err
	}

	job.ID = strings.TrimSpace(job.ID)
	job.CronExpression = strings.TrimSpace(job.CronExpression)
	if job.ID == "" {
		return Job{}, nil, errors.New("job_id is required")
	}
	// Records written before the enabled flag existed stay enabled.
	if !gjson.GetBytes(raw, "enabled").Exists() {
		job.Enabled = true
	}
	if job.Actions == nil {
		job.Actions = action.List{}
	}
	job.NextRun = nil

	sched, err := parseSpec(job.CronExpression)
	if err != nil {
		return Job{}, nil, err
	}
	return job, sched, nil
}
