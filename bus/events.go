// Package bus provides the in-process event bus used for scheduler intake
// and job completion notifications.
package bus

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mordomohq/mordomo/action"
)

// EventType represents the type of event.
type EventType string

const (
	// Scheduler events
	EventScheduleJob  EventType = "scheduler.schedule_job"
	EventRemoveJob    EventType = "scheduler.remove_job"
	EventJobCompleted EventType = "scheduler.job_completed"
)

// Event represents a bus event.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent creates a new event.
func NewEvent(eventType EventType, source string, data any) (*Event, error) {
	var dataBytes json.RawMessage
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      dataBytes,
	}, nil
}

// ParseData unmarshals the event data into the given struct.
func (e *Event) ParseData(v any) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// ScheduleJobRequest asks the scheduler to create a job.
type ScheduleJobRequest struct {
	Cron        string      `json:"cron"`
	Description string      `json:"description"`
	Actions     action.List `json:"actions,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty"`
	OneShot     bool        `json:"one_shot,omitempty"`
}

// RemoveJobRequest asks the scheduler to delete a job.
type RemoveJobRequest struct {
	JobID string `json:"job_id"`
}

// JobCompleted reports the per-action results of a firing.
type JobCompleted struct {
	JobID       string          `json:"job_id"`
	Description string          `json:"description"`
	Results     []action.Result `json:"results"`
}

var eventCounter atomic.Int64

func generateEventID() string {
	n := eventCounter.Add(1)
	return fmt.Sprintf("evt-%d-%d", time.Now().UnixMilli(), n)
}
