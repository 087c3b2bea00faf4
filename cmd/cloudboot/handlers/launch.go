// Package handlers contains the execution logic behind the CLI
// commands: wiring configuration to the backend, the orchestrator and
// the bootstrap agent.
package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"cloudboot/internal/bootstrap"
	"cloudboot/internal/config"
	hcloudplatform "cloudboot/internal/platform/hcloud"
	"cloudboot/internal/probe"
	"cloudboot/internal/provisioning/instance"
	"cloudboot/internal/util/wait"
)

// lifecyclePollInterval is the delay between lifecycle state polls.
// The lifecycle wait has no cap of its own; the backend either moves
// the server on or reports a terminal state.
const lifecyclePollInterval = 3 * time.Second

// Launch handles the launch command: validates the configuration,
// builds the launch spec and drives the orchestrator against the real
// backend and the configured bootstrap agent.
func Launch(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	spec, err := BuildLaunchSpec(cfg)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	progress := wait.Discard
	if isatty.IsTerminal(os.Stderr.Fd()) {
		progress = wait.Marks(os.Stderr)
	}

	orch := instance.NewOrchestrator(
		hcloudplatform.New(cfg.Token),
		agentFor(cfg),
		log.New(os.Stderr, "", log.LstdFlags),
		progress,
	)

	result, err := orch.Launch(ctx, *spec)
	if err != nil {
		return err
	}

	fmt.Printf("Instance %s (%s) bootstrapped at %s\n",
		result.Instance.DisplayName, result.Instance.ID, result.Address)
	return nil
}

// agentFor picks the bootstrap agent: the built-in SSH runner by
// default, the local knife CLI when asked for.
func agentFor(cfg *config.Config) bootstrap.Agent {
	if cfg.KnifeBootstrap {
		return &bootstrap.KnifeAgent{}
	}
	return &bootstrap.SSHAgent{}
}

// BuildLaunchSpec turns a validated configuration into the
// orchestrator's launch spec. All remaining file reads and parsing
// happen here, so every configuration error surfaces before the first
// provisioning call.
func BuildLaunchSpec(cfg *config.Config) (*instance.LaunchSpec, error) {
	waits, err := cfg.WaitOptions()
	if err != nil {
		return nil, err
	}

	policy, err := wait.NewPolicy(waits.ForSSHIntervalSeconds, waits.ForSSHMaxSeconds)
	if err != nil {
		return nil, err
	}

	gateway, err := probe.ParseGateway(cfg.SSHGateway, cfg.GatewayKeys)
	if err != nil {
		return nil, err
	}

	metadata, err := cfg.MergedMetadata()
	if err != nil {
		return nil, err
	}

	userData, err := config.ReadFileOption(cfg.UserDataFile)
	if err != nil {
		return nil, err
	}
	authKeys, err := config.ReadFileOption(cfg.SSHAuthorizedKeysFile)
	if err != nil {
		return nil, err
	}
	if authKeys != "" {
		if userData != "" {
			return nil, fmt.Errorf("ssh_authorized_keys_file cannot be combined with user_data_file")
		}
		userData = authorizedKeysUserData(authKeys)
	}

	sshPort := cfg.SSHPort
	if sshPort == 0 {
		sshPort = config.DefaultSSHPort
	}

	name := cfg.DisplayName
	if name == "" {
		name = cfg.HostnameLabel
	}

	return &instance.LaunchSpec{
		Instance: instanceSpec(cfg, name, metadata, userData),

		UsePrivateIP: cfg.UsePrivateIP,

		SSHPort:      sshPort,
		SSHUser:      cfg.SSHUser,
		SSHPassword:  cfg.SSHPassword,
		IdentityFile: cfg.IdentityFile,
		Gateway:      gateway,

		NodeName: cfg.NodeName,
		RunList:  cfg.RunList,
		UseSudo:  !cfg.NoSudo,

		LifecycleInterval: lifecyclePollInterval,
		WaitForSSH:        policy,
		StabilizeFor:      time.Duration(waits.ToStabilizeSeconds) * time.Second,
	}, nil
}
