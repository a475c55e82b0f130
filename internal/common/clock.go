package common

import "time"

// Clock provides the current time so it can be replaced in tests
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock only moves when told to
type ManualClock struct {
	CurrentTime time.Time
}

func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{CurrentTime: t}
}

func (c *ManualClock) Now() time.Time {
	return c.CurrentTime
}

func (c *ManualClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
