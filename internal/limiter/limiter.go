// Package limiter bounds how many expensive jobs (model calls, ffmpeg runs)
// the process runs at once.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// ErrOverloaded is returned when no slot frees up before the caller gives up.
var ErrOverloaded = errors.New("server is busy, try again later")

// Limiter is a process-wide admission gate. A nil *Limiter admits everything.
type Limiter struct {
	sem      *semaphore.Weighted
	size     int64
	wait     time.Duration
	inFlight atomic.Int64
}

// New returns a Limiter with maxJobs slots. A caller waits at most wait for
// a slot (zero means until its context ends). maxJobs <= 0 returns nil,
// which never blocks.
func New(maxJobs int, wait time.Duration) *Limiter {
	if maxJobs <= 0 {
		return nil
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(maxJobs)),
		size: int64(maxJobs),
		wait: wait,
	}
}

// Acquire blocks until a slot is free and returns the function that gives it
// back. The release function is safe to call more than once.
func (l *Limiter) Acquire(ctx context.Context, job string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	start := time.Now()
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		log.Warn().
			Str("job", job).
			Int64("inFlight", l.inFlight.Load()).
			Int64("capacity", l.size).
			Dur("waited", time.Since(start)).
			Msg("Admission refused, all job slots busy")
		return nil, fmt.Errorf("%w (%s): %v", ErrOverloaded, job, err)
	}

	n := l.inFlight.Add(1)
	if waited := time.Since(start); waited > 100*time.Millisecond {
		log.Debug().Str("job", job).Dur("waited", waited).Int64("inFlight", n).Msg("Job slot acquired after queueing")
	}

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			l.inFlight.Add(-1)
			l.sem.Release(1)
		}
	}, nil
}

// InFlight reports how many slots are currently held.
func (l *Limiter) InFlight() int64 {
	if l == nil {
		return 0
	}
	return l.inFlight.Load()
}

// Capacity reports the slot count, 0 for an unbounded limiter.
func (l *Limiter) Capacity() int64 {
	if l == nil {
		return 0
	}
	return l.size
}
