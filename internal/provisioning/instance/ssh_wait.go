package instance

import (
	"context"

	"cloudboot/internal/probe"
	"cloudboot/internal/util/wait"
)

// awaitReachable polls the prober until the endpoint answers or the
// policy's deadline passes. Every unreachable outcome, whatever its
// cause, just means "try again"; only the deadline ends the wait. A
// timeout is reported as false rather than an error, and the caller
// decides whether that is fatal.
func awaitReachable(ctx context.Context, p probe.Prober, pol wait.Policy, prog wait.Progress) bool {
	res := wait.Until(ctx, pol, prog, func() bool {
		return p.Probe(ctx).Reachable
	})
	return res.Succeeded
}
