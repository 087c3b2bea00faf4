// Package instance sequences a single-instance launch: create the
// instance, wait for it to run, resolve its address, wait for SSH to
// answer, let the host settle, then hand off to the bootstrap agent.
package instance

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloudboot/internal/bootstrap"
	"cloudboot/internal/probe"
	"cloudboot/internal/util/wait"
	"cloudboot/pkg/cloud"
)

// LaunchSpec is everything a launch needs, assembled and validated by
// the config layer before any provisioning call is made.
type LaunchSpec struct {
	Instance cloud.InstanceSpec

	// UsePrivateIP selects the private address of the instance's first
	// network attachment instead of the public one.
	UsePrivateIP bool

	SSHPort      int
	SSHUser      string
	SSHPassword  string
	IdentityFile string
	Gateway      *probe.Gateway

	NodeName string
	RunList  []string
	UseSudo  bool

	// LifecycleInterval is the delay between lifecycle state polls.
	LifecycleInterval time.Duration

	// WaitForSSH bounds the SSH reachability poll.
	WaitForSSH wait.Policy

	// StabilizeFor is slept unconditionally between reachability and
	// bootstrap. Fresh instances accept TCP connections before the
	// system is actually ready for a configuration run.
	StabilizeFor time.Duration
}

// LaunchResult reports the launched instance and the address the
// bootstrap agent was given.
type LaunchResult struct {
	Instance cloud.Instance
	Address  string
}

// Orchestrator drives launches against a provisioning backend and a
// bootstrap agent.
type Orchestrator struct {
	backend  cloud.Backend
	agent    bootstrap.Agent
	logger   *log.Logger
	progress wait.Progress

	// test seams
	sleep     func(time.Duration)
	proberFor func(host string, port int, gw *probe.Gateway) probe.Prober
}

// NewOrchestrator builds an Orchestrator. logger and progress may be
// nil for silent operation.
func NewOrchestrator(backend cloud.Backend, agent bootstrap.Agent, logger *log.Logger, progress wait.Progress) *Orchestrator {
	if progress == nil {
		progress = wait.Discard
	}
	return &Orchestrator{
		backend:  backend,
		agent:    agent,
		logger:   logger,
		progress: progress,
		sleep:    time.Sleep,
		proberFor: func(host string, port int, gw *probe.Gateway) probe.Prober {
			return &probe.Endpoint{Host: host, Port: port, Gateway: gw}
		},
	}
}

// Launch runs the whole sequence. Any error aborts the launch; nothing
// is retried beyond what the individual waiters already absorb.
func (o *Orchestrator) Launch(ctx context.Context, spec LaunchSpec) (*LaunchResult, error) {
	inst, err := o.backend.CreateInstance(ctx, spec.Instance)
	if err != nil {
		return nil, fmt.Errorf("provisioning failed: %w", err)
	}
	o.logf("[Launch] Created instance %s (%s)", inst.DisplayName, inst.ID)

	o.logf("[Launch] Waiting for instance %s to reach %s...", inst.ID, cloud.StateRunning)
	state, err := awaitState(ctx, o.backend, inst.ID, cloud.StateRunning, spec.LifecycleInterval, o.progress)
	if err != nil {
		return nil, fmt.Errorf("provisioning failed: %w", err)
	}
	inst.State = state

	addr, err := o.resolveAddress(ctx, inst.ID, spec.UsePrivateIP)
	if err != nil {
		return nil, err
	}
	o.logf("[Launch] Instance address: %s", addr)

	o.logf("[Launch] Waiting for SSH on %s:%d...", addr, spec.SSHPort)
	prober := o.proberFor(addr, spec.SSHPort, spec.Gateway)
	if !awaitReachable(ctx, prober, spec.WaitForSSH, o.progress) {
		return nil, fmt.Errorf("timed out waiting for SSH on %s:%d", addr, spec.SSHPort)
	}

	if spec.StabilizeFor > 0 {
		o.logf("[Launch] Waiting %s for the instance to stabilize...", spec.StabilizeFor)
		o.sleep(spec.StabilizeFor)
	}

	nodeName := spec.NodeName
	if nodeName == "" {
		nodeName = inst.DisplayName
	}

	o.logf("[Launch] Bootstrapping %s as node %s...", addr, nodeName)
	err = o.agent.Bootstrap(ctx, bootstrap.Target{
		Address:      addr,
		Port:         spec.SSHPort,
		Gateway:      spec.Gateway,
		NodeName:     nodeName,
		User:         spec.SSHUser,
		Password:     spec.SSHPassword,
		IdentityFile: spec.IdentityFile,
		RunList:      spec.RunList,
		UseSudo:      spec.UseSudo,
	})
	if err != nil {
		return nil, err
	}

	o.logf("[Launch] Instance %s bootstrapped", inst.DisplayName)
	return &LaunchResult{Instance: inst, Address: addr}, nil
}

// resolveAddress looks up the instance's first network attachment and
// picks its address. Exactly one attachment is expected; the first is
// used.
func (o *Orchestrator) resolveAddress(ctx context.Context, id string, usePrivate bool) (string, error) {
	attachments, err := o.backend.ListNetworkAttachments(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to list network attachments: %w", err)
	}
	if len(attachments) == 0 {
		return "", fmt.Errorf("instance %s has no network attachments", id)
	}

	nic, err := o.backend.GetNetworkInterface(ctx, attachments[0].ID)
	if err != nil {
		return "", fmt.Errorf("failed to get network interface: %w", err)
	}

	addr := nic.PublicAddress
	if usePrivate {
		addr = nic.PrivateAddress
	}
	if addr == "" {
		kind := "public"
		if usePrivate {
			kind = "private"
		}
		return "", fmt.Errorf("instance %s has no %s address", id, kind)
	}
	return addr, nil
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
