package common

import (
	"time"
)

// This stopwatch keeps track of time. You can set a timeout for it,
// make it start counting time, and ask it if the timeout has been reached
type Stopwatch struct {
	Timeout   time.Duration
	startTime time.Time
	Running   bool
	now       func() time.Time
}

func NewStopwatch(timeout time.Duration) Stopwatch {
	return Stopwatch{Timeout: timeout, now: time.Now}
}

func (s *Stopwatch) Start() {
	s.Running = true
	s.startTime = s.clock()
}

func (s *Stopwatch) Stop() {
	s.Running = false
}

// Report if the timeout has been reached, together with the time
// left until it is. A stopwatch that is not running is always stopped
func (s *Stopwatch) Stopped() (bool, time.Duration) {
	if !s.Running {
		return true, 0
	}
	stopped := s.TimeStopped()
	if stopped >= 0 {
		return true, 0
	}
	return false, -stopped
}

// Return the time elapsed since this stopwatch
// stopped (reached its timeout).
// Note that if the number is negative, the timeout still
// has not been reached
func (s *Stopwatch) TimeStopped() time.Duration {
	return s.clock().Sub(s.startTime.Add(s.Timeout))
}

func (s *Stopwatch) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
