package action

import "context"

// Result is the outcome of one executed action.
type Result struct {
	Action string `json:"action"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the action produced an error.
func (r Result) Failed() bool { return r.Error != "" }

// Executor runs a job's actions in order and returns one Result per
// action, in the same order. Implementations must contain failures: an
// action that cannot be executed contributes an error Result instead of
// aborting the remaining actions.
type Executor interface {
	Execute(ctx context.Context, actions List) []Result
}

// ErrorResult builds a failure Result for the given action.
func ErrorResult(a Action, err error) Result {
	return Result{Action: a.Kind(), Error: err.Error()}
}
