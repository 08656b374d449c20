package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/mordomohq/mordomo/action"
	"github.com/mordomohq/mordomo/bus"
)

// Job is one scheduled unit of work: a cron expression plus the ordered
// actions to run whenever it is due.
type Job struct {
	ID             string      `json:"job_id"`
	CronExpression string      `json:"cron_expression"`
	Description    string      `json:"description"`
	Actions        action.List `json:"actions"`
	CreatedBy      string      `json:"created_by,omitempty"`
	Enabled        bool        `json:"enabled"`
	OneShot        bool        `json:"one_shot,omitempty"`

	// LastRun is set immediately before the job's actions execute.
	LastRun *time.Time `json:"last_run,omitempty"`

	// NextRun is derived from the cron expression at every (re)arm and is
	// never persisted. Nil while the job is disabled, firing, or has no
	// future occurrence.
	NextRun *time.Time `json:"-"`
}

// jobState tracks the timer lifecycle of one job.
type jobState int

const (
	stateUnscheduled jobState = iota
	stateArmed
	stateFiring
)

// entry is the scheduler's live record for a job. All fields are guarded
// by the scheduler mutex.
type entry struct {
	job   Job
	sched robfigcron.Schedule
	state jobState

	// seq is bumped on every arm and disarm; a pending timer callback
	// whose seq no longer matches is stale and returns without firing.
	seq   uint64
	timer clockwork.Timer
}

// snapshot returns a copy of the job safe to hand outside the lock.
func (e *entry) snapshot() Job {
	job := e.job
	if job.LastRun != nil {
		t := *job.LastRun
		job.LastRun = &t
	}
	if job.NextRun != nil {
		t := *job.NextRun
		job.NextRun = &t
	}
	if job.Actions != nil {
		job.Actions = append(action.List(nil), job.Actions...)
	}
	return job
}

// Config wires the scheduler's collaborators. Store and Executor may be
// nil, which disables persistence and action execution respectively.
// A nil Clock means the real clock.
type Config struct {
	Store    Store
	Executor action.Executor
	Clock    clockwork.Clock
}

// Scheduler owns the job set: it persists jobs, arms one timer per
// enabled job, and runs each firing on its own goroutine.
type Scheduler struct {
	store    Store
	executor action.Executor
	clock    clockwork.Clock

	mu     sync.Mutex
	jobs   map[string]*entry
	closed bool

	busRef *bus.Bus
	subIDs []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
