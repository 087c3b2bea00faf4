// Package wait implements a bounded polling loop shared by the
// lifecycle and SSH reachability waiters.
package wait

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a polling loop: one condition check every Interval,
// giving up once MaxWait has elapsed. A Policy is immutable after
// construction.
type Policy struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// NewPolicy builds a Policy from second counts, validating them up
// front so bad values surface as configuration errors rather than
// surprising waits.
func NewPolicy(intervalSeconds, maxWaitSeconds int) (Policy, error) {
	if intervalSeconds <= 0 {
		return Policy{}, fmt.Errorf("poll interval must be positive, got %d", intervalSeconds)
	}
	if maxWaitSeconds < 0 {
		return Policy{}, fmt.Errorf("max wait must not be negative, got %d", maxWaitSeconds)
	}
	return Policy{
		Interval: time.Duration(intervalSeconds) * time.Second,
		MaxWait:  time.Duration(maxWaitSeconds) * time.Second,
	}, nil
}

// Result describes how a polling loop ended.
type Result struct {
	Succeeded bool
	Attempts  int
	Elapsed   time.Duration
}

// Progress receives one Tick per failed attempt and a single Done when
// the loop exits, whatever the outcome. It is purely observational.
type Progress interface {
	Tick(attempt int)
	Done(r Result)
}

type discard struct{}

func (discard) Tick(int)    {}
func (discard) Done(Result) {}

// Discard is a Progress that reports nothing.
var Discard Progress = discard{}

// Until evaluates cond until it returns true or pol.MaxWait elapses.
// The deadline is fixed once at entry, so a slow cond cannot stretch
// the overall wait. cond is always evaluated at least once, even with
// a zero MaxWait. There is no sleep after a successful attempt.
//
// Cancelling ctx ends the loop early and counts as a failure.
func Until(ctx context.Context, pol Policy, prog Progress, cond func() bool) (res Result) {
	if prog == nil {
		prog = Discard
	}
	start := time.Now()
	deadline := start.Add(pol.MaxWait)
	defer func() {
		res.Elapsed = time.Since(start)
		prog.Done(res)
	}()

	for {
		res.Attempts++
		if cond() {
			res.Succeeded = true
			return res
		}
		prog.Tick(res.Attempts)

		if !time.Now().Before(deadline) {
			return res
		}
		select {
		case <-ctx.Done():
			return res
		case <-time.After(pol.Interval):
		}
		if !time.Now().Before(deadline) {
			return res
		}
	}
}
