package common

import (
	"context"
	"time"
)

// Give the timed executor a task and a timeout.
// Call the execute function from time to time.
// If the function gets called when the timeout has been reached,
// the provided task will execute. If not, the call will do nothing.
// The first call always executes the task
type TimedExecutor struct {
	Name      string
	stopwatch Stopwatch
	task      func(ctx context.Context)
}

// Create a timed executor provided a timeout and a task
func NewTimedExecutor(name string, timeout time.Duration, task func(ctx context.Context)) TimedExecutor {
	return TimedExecutor{Name: name, stopwatch: NewStopwatch(timeout), task: task}
}

// Execute the task if the timeout has been reached, else do nothing.
// Returns true if the task ran
func (te *TimedExecutor) Execute(ctx context.Context) bool {
	if stopped, _ := te.stopwatch.Stopped(); stopped {
		te.stopwatch.Start()
		te.task(ctx)
		return true
	}
	return false
}
