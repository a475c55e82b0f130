package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrRateLimited = errors.New("rate limiter is not allowing the request")

const minimumWait = 10 * time.Millisecond

type Analysis struct {
	allowed bool          // If the request is allowed
	wait    time.Duration // The minimal time to wait before the request is allowed
}

type RateLimiter struct {
	mu                   sync.Mutex
	restrictions         []Restriction          // Restrictions to consider
	history              []time.Time            // History of requests
	duration             time.Duration          // Min duration to wait for all restrictions to be lifted
	pendingVitalRequests map[uuid.UUID]struct{} // Set of pending vital requests
	stopwatch            Stopwatch              // Running while the server asked us to back off
	now                  func() time.Time
}

func NewRateLimiter(restrictions []Restriction, backoff time.Duration) *RateLimiter {
	rl := &RateLimiter{now: time.Now}
	rl.restrictions = append(rl.restrictions, restrictions...)
	for _, restriction := range restrictions {
		if restriction.Duration > rl.duration {
			rl.duration = restriction.Duration
		}
	}
	rl.pendingVitalRequests = make(map[uuid.UUID]struct{})
	rl.stopwatch = NewStopwatch(backoff)
	return rl
}

// Decide if a request is allowed.
// If the request is not allowed but vital, execution
// blocks here until it is allowed or the context is done
func (rl *RateLimiter) Allow(ctx context.Context, vital bool) error {

	// Give this request a unique identifier
	thisuuid := uuid.New()
	defer rl.forget(thisuuid)

	for {
		analysis := rl.tryAcquire(thisuuid, vital)
		if analysis.allowed {
			return nil
		}
		if !vital {
			log.Warn().Msg("Rejecting a non vital request because restrictions do not allow it")
			return ErrRateLimited
		}
		wait := analysis.wait
		if wait < minimumWait {
			wait = minimumWait
		}
		log.Warn().Str("request", thisuuid.String()).Dur("wait", wait).Msg("Vital request delayed")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// The server answered with a rate limit, so nothing goes out
// until the backoff is over
func (rl *RateLimiter) ReceivedRateLimit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.stopwatch.Start()
}

func (rl *RateLimiter) tryAcquire(id uuid.UUID, vital bool) Analysis {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	currentTime := rl.now()
	rl.trim(currentTime)

	if stopped, left := rl.stopwatch.Stopped(); !stopped {
		if vital {
			rl.pendingVitalRequests[id] = struct{}{}
		}
		return Analysis{false, left}
	}

	analysis := rl.analyse(currentTime)
	if !analysis.allowed {
		if vital {
			rl.pendingVitalRequests[id] = struct{}{}
		}
		return analysis
	}

	// Restrictions allow it, but vital requests waiting go first
	if !vital && len(rl.pendingVitalRequests) > 0 {
		log.Warn().Msg("Rejecting non vital request because vital queue is not empty")
		return Analysis{false, 0}
	}

	delete(rl.pendingVitalRequests, id)
	rl.history = append(rl.history, currentTime)
	return Analysis{true, 0}
}

func (rl *RateLimiter) forget(id uuid.UUID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.pendingVitalRequests, id)
}

// Trim the current history, leaving only the requests
// that are young enough to be affected by at least one restriction.
// Times are stored in chronological order
func (rl *RateLimiter) trim(currentTime time.Time) {
	index := 0
	for i := len(rl.history) - 1; i >= 0; i-- {
		if currentTime.Sub(rl.history[i]) > rl.duration {
			index = i + 1
			break
		}
	}
	rl.history = rl.history[index:]
}

func (rl *RateLimiter) analyse(currentTime time.Time) Analysis {

	// Merge the analyses of every restriction
	var wait time.Duration = 0
	allowed := true
	for _, restriction := range rl.restrictions {
		analysis := restriction.Analyse(rl.history, currentTime)
		allowed = allowed && analysis.allowed
		if analysis.wait > wait {
			wait = analysis.wait
		}
	}
	return Analysis{allowed, wait}
}
