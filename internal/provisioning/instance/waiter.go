package instance

import (
	"context"
	"fmt"
	"time"

	"cloudboot/internal/util/wait"
	"cloudboot/pkg/cloud"
)

// stepResult classifies one lifecycle poll attempt.
type stepResult int

const (
	stepContinue stepResult = iota
	stepSucceeded
	stepAborted
)

func classify(state, target cloud.State) stepResult {
	switch {
	case state == target:
		return stepSucceeded
	case state.TerminalFailure():
		return stepAborted
	default:
		return stepContinue
	}
}

// awaitState polls the backend until the instance reaches the target
// state. A terminal-failure state aborts immediately; that is a fatal
// provisioning outcome, not a timeout. Transient fetch errors keep the
// loop polling. There is no wall-clock cap at this layer; ctx bounds
// the wait.
//
// Whatever ends the loop, the final fetched state is checked against
// the target before the instance is handed back.
func awaitState(ctx context.Context, backend cloud.Backend, id string, target cloud.State, interval time.Duration, prog wait.Progress) (cloud.State, error) {
	if prog == nil {
		prog = wait.Discard
	}

	var (
		last     cloud.State = cloud.StateUnknown
		attempts int
		start    = time.Now()
	)
	defer func() {
		prog.Done(wait.Result{
			Succeeded: last == target,
			Attempts:  attempts,
			Elapsed:   time.Since(start),
		})
	}()

	for {
		attempts++
		state, err := backend.GetInstanceState(ctx, id)
		if err == nil {
			last = state
			switch classify(state, target) {
			case stepSucceeded:
				return last, nil
			case stepAborted:
				return last, fmt.Errorf("instance %s entered state %q while waiting for %q", id, state, target)
			}
		}
		prog.Tick(attempts)

		select {
		case <-ctx.Done():
			if last != target {
				return last, fmt.Errorf("instance %s is %q, not %q: %w", id, last, target, ctx.Err())
			}
			return last, nil
		case <-time.After(interval):
		}
	}
}
