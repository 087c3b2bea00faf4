// Package bootstrap hands a reachable host off to a configuration
// management run. The orchestrator only depends on the Agent contract;
// the default implementation runs the configuration client over SSH
// on the target itself, and a knife implementation shells out to the
// local knife CLI for workstations already set up for it.
package bootstrap

import (
	"context"

	"cloudboot/internal/probe"
)

// Target is everything the agent needs to configure one host.
type Target struct {
	Address      string
	Port         int
	Gateway      *probe.Gateway
	NodeName     string
	User         string
	Password     string
	IdentityFile string
	RunList      []string
	UseSudo      bool
}

// Agent installs and configures software on a newly reachable host.
// Failures are fatal to the launch; there is no retry at this layer.
type Agent interface {
	Bootstrap(ctx context.Context, t Target) error
}
