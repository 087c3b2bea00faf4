// Package config holds the launch configuration surface: the YAML
// file format, flag-overridable fields, and all validation that must
// happen before any provisioning call is made.
package config

import (
	"fmt"
	"os"
)

// Defaults for the wait options, in seconds.
const (
	DefaultWaitToStabilize    = 40
	DefaultWaitForSSHMax      = 180
	DefaultWaitForSSHInterval = 2
	DefaultSSHPort            = 22
)

// Config is the full configuration surface of a launch. Wait options
// are kept as strings so that blank, non-numeric and negative inputs
// can be told apart during validation.
type Config struct {
	// Instance placement and shape.
	Location   string `yaml:"location"`
	Image      string `yaml:"image"`
	ServerType string `yaml:"server_type"`
	Network    string `yaml:"network"`

	DisplayName   string            `yaml:"display_name"`
	HostnameLabel string            `yaml:"hostname_label"`
	Metadata      map[string]string `yaml:"metadata"`
	MetadataJSON  string            `yaml:"metadata_json"`

	SSHAuthorizedKeysFile string   `yaml:"ssh_authorized_keys_file"`
	UserDataFile          string   `yaml:"user_data_file"`
	SSHKeys               []string `yaml:"ssh_keys"`

	UsePrivateIP bool `yaml:"use_private_ip"`

	// SSH access for the bootstrap step.
	SSHUser      string   `yaml:"ssh_user"`
	SSHPassword  string   `yaml:"ssh_password"`
	IdentityFile string   `yaml:"identity_file"`
	SSHPort      int      `yaml:"ssh_port"`
	SSHGateway   string   `yaml:"ssh_gateway"`
	GatewayKeys  []string `yaml:"gateway_keys"`

	// Bootstrap handoff. KnifeBootstrap selects the local knife CLI
	// instead of the built-in SSH runner.
	NodeName       string   `yaml:"node_name"`
	RunList        []string `yaml:"run_list"`
	NoSudo         bool     `yaml:"no_sudo"`
	KnifeBootstrap bool     `yaml:"knife_bootstrap"`

	// Wait options, in whole seconds. Blank means default.
	WaitToStabilize    string `yaml:"wait_to_stabilize"`
	WaitForSSHMax      string `yaml:"wait_for_ssh_max"`
	WaitForSSHInterval string `yaml:"wait_for_ssh_interval"`

	// Token is the backend API token, taken from the environment, never
	// from the file.
	Token string `yaml:"-"`
}

// Validate checks for configuration errors. It must pass before any
// provisioning begins; nothing here is retryable.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("HCLOUD_TOKEN is required")
	}
	if c.Location == "" {
		return fmt.Errorf("location is required")
	}
	if c.Image == "" {
		return fmt.Errorf("image is required")
	}
	if c.ServerType == "" {
		return fmt.Errorf("server_type is required")
	}
	if c.DisplayName == "" && c.HostnameLabel == "" {
		return fmt.Errorf("one of display_name or hostname_label is required")
	}
	if c.SSHUser == "" {
		return fmt.Errorf("ssh_user is required")
	}
	if c.SSHPassword == "" && c.IdentityFile == "" {
		return fmt.Errorf("one of ssh_password or identity_file is required")
	}
	if c.SSHPort < 0 || c.SSHPort > 65535 {
		return fmt.Errorf("invalid ssh_port %d", c.SSHPort)
	}

	if _, err := c.WaitOptions(); err != nil {
		return err
	}
	if _, err := c.MergedMetadata(); err != nil {
		return err
	}
	return nil
}

// WaitValues holds the parsed wait options.
type WaitValues struct {
	ToStabilizeSeconds    int
	ForSSHMaxSeconds      int
	ForSSHIntervalSeconds int
}

// WaitOptions parses the string-typed wait options. Blank values take
// the defaults; non-numeric or negative values are configuration
// errors.
func (c *Config) WaitOptions() (WaitValues, error) {
	stabilize, err := parseWaitSeconds("wait_to_stabilize", c.WaitToStabilize, DefaultWaitToStabilize)
	if err != nil {
		return WaitValues{}, err
	}
	sshMax, err := parseWaitSeconds("wait_for_ssh_max", c.WaitForSSHMax, DefaultWaitForSSHMax)
	if err != nil {
		return WaitValues{}, err
	}
	sshInterval, err := parseWaitSeconds("wait_for_ssh_interval", c.WaitForSSHInterval, DefaultWaitForSSHInterval)
	if err != nil {
		return WaitValues{}, err
	}
	if sshInterval == 0 {
		return WaitValues{}, fmt.Errorf("wait_for_ssh_interval must be positive")
	}
	return WaitValues{
		ToStabilizeSeconds:    stabilize,
		ForSSHMaxSeconds:      sshMax,
		ForSSHIntervalSeconds: sshInterval,
	}, nil
}

// ReadFileOption reads an optional file-valued option, returning ""
// for an unset path.
func ReadFileOption(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied config path
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
