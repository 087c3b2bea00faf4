package commands

import (
	"github.com/spf13/cobra"

	"cloudboot/cmd/cloudboot/handlers"
	"cloudboot/internal/config"
)

// Launch returns the command that provisions a server and bootstraps
// it.
//
// Environment variables:
//
//	HCLOUD_TOKEN: Hetzner Cloud API token (required)
func Launch() *cobra.Command {
	var configPath string
	flags := &launchFlags{}

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Provision a server and bootstrap it over SSH",
		Long: `Provision a single server and hand it to a configuration run.

The launch proceeds through fixed stages: the server is created, the
command waits for it to reach the running state, resolves its address,
waits for the SSH service to answer (optionally probing through an SSH
gateway), sleeps a stabilization period, and finally invokes the
bootstrap agent with the resolved address and credentials.

Defaults come from cloudboot.yaml in the working directory when it
exists; flags override file values.

Examples:
  # Launch using cloudboot.yaml
  cloudboot launch

  # Launch with explicit placement and image
  cloudboot launch --location fsn1 --image ubuntu-24.04 --server-type cx22 \
    --ssh-user root --identity-file ~/.ssh/id_ed25519 --run-list 'role[base]'

  # Reach a private-only server through a gateway
  cloudboot launch --use-private-ip --ssh-gateway jump@bastion.example.com`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			return handlers.Launch(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: cloudboot.yaml)")
	flags.register(cmd)

	return cmd
}

// launchFlags mirrors the flag-overridable part of the config surface.
type launchFlags struct {
	location      string
	image         string
	serverType    string
	network       string
	displayName   string
	hostnameLabel string
	metadataJSON  string
	userDataFile  string
	sshAuthKeys   string
	sshKeys       []string

	usePrivateIP bool
	sshUser      string
	sshPassword  string
	identityFile string
	sshPort      int
	sshGateway   string
	gatewayKeys  []string

	nodeName       string
	runList        []string
	noSudo         bool
	knifeBootstrap bool

	waitToStabilize    string
	waitForSSHMax      string
	waitForSSHInterval string
}

func (f *launchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.location, "location", "", "Location to place the server in")
	cmd.Flags().StringVar(&f.image, "image", "", "Image to boot")
	cmd.Flags().StringVar(&f.serverType, "server-type", "", "Server type (shape) to launch")
	cmd.Flags().StringVar(&f.network, "network", "", "Private network to attach")
	cmd.Flags().StringVar(&f.displayName, "display-name", "", "Display name for the server")
	cmd.Flags().StringVar(&f.hostnameLabel, "hostname-label", "", "Hostname label for the server")
	cmd.Flags().StringVar(&f.metadataJSON, "metadata-json", "", "Extra metadata as a JSON object of strings")
	cmd.Flags().StringVar(&f.userDataFile, "user-data-file", "", "File with cloud-init user data")
	cmd.Flags().StringVar(&f.sshAuthKeys, "ssh-authorized-keys-file", "", "File with SSH authorized keys content")
	cmd.Flags().StringSliceVar(&f.sshKeys, "ssh-key", nil, "Registered SSH key to install (repeatable)")

	cmd.Flags().BoolVar(&f.usePrivateIP, "use-private-ip", false, "Connect to the private address instead of the public one")
	cmd.Flags().StringVar(&f.sshUser, "ssh-user", "", "SSH user for the bootstrap connection")
	cmd.Flags().StringVar(&f.sshPassword, "ssh-password", "", "SSH password for the bootstrap connection")
	cmd.Flags().StringVar(&f.identityFile, "identity-file", "", "SSH private key for the bootstrap connection")
	cmd.Flags().IntVar(&f.sshPort, "ssh-port", 0, "SSH port on the new server")
	cmd.Flags().StringVar(&f.sshGateway, "ssh-gateway", "", "SSH gateway as user@host:port")
	cmd.Flags().StringSliceVar(&f.gatewayKeys, "gateway-key", nil, "Private key for the gateway connection (repeatable)")

	cmd.Flags().StringVar(&f.nodeName, "node-name", "", "Node name for the bootstrap run (default: server display name)")
	cmd.Flags().StringSliceVarP(&f.runList, "run-list", "r", nil, "Run list entries for the bootstrap run")
	cmd.Flags().BoolVar(&f.noSudo, "no-sudo", false, "Run the bootstrap without sudo")
	cmd.Flags().BoolVar(&f.knifeBootstrap, "knife-bootstrap", false, "Bootstrap with the local knife CLI instead of the built-in SSH runner")

	cmd.Flags().StringVar(&f.waitToStabilize, "wait-to-stabilize", "", "Seconds to sleep between SSH reachability and bootstrap")
	cmd.Flags().StringVar(&f.waitForSSHMax, "wait-for-ssh-max", "", "Maximum seconds to wait for SSH")
	cmd.Flags().StringVar(&f.waitForSSHInterval, "wait-for-ssh-interval", "", "Seconds between SSH reachability probes")
}

// apply copies changed flag values onto the loaded configuration.
func (f *launchFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string, src string) {
		if cmd.Flags().Changed(name) {
			*dst = src
		}
	}
	set("location", &cfg.Location, f.location)
	set("image", &cfg.Image, f.image)
	set("server-type", &cfg.ServerType, f.serverType)
	set("network", &cfg.Network, f.network)
	set("display-name", &cfg.DisplayName, f.displayName)
	set("hostname-label", &cfg.HostnameLabel, f.hostnameLabel)
	set("metadata-json", &cfg.MetadataJSON, f.metadataJSON)
	set("user-data-file", &cfg.UserDataFile, f.userDataFile)
	set("ssh-authorized-keys-file", &cfg.SSHAuthorizedKeysFile, f.sshAuthKeys)
	set("ssh-user", &cfg.SSHUser, f.sshUser)
	set("ssh-password", &cfg.SSHPassword, f.sshPassword)
	set("identity-file", &cfg.IdentityFile, f.identityFile)
	set("ssh-gateway", &cfg.SSHGateway, f.sshGateway)
	set("node-name", &cfg.NodeName, f.nodeName)
	set("wait-to-stabilize", &cfg.WaitToStabilize, f.waitToStabilize)
	set("wait-for-ssh-max", &cfg.WaitForSSHMax, f.waitForSSHMax)
	set("wait-for-ssh-interval", &cfg.WaitForSSHInterval, f.waitForSSHInterval)

	if cmd.Flags().Changed("ssh-key") {
		cfg.SSHKeys = f.sshKeys
	}
	if cmd.Flags().Changed("gateway-key") {
		cfg.GatewayKeys = f.gatewayKeys
	}
	if cmd.Flags().Changed("run-list") {
		cfg.RunList = f.runList
	}
	if cmd.Flags().Changed("use-private-ip") {
		cfg.UsePrivateIP = f.usePrivateIP
	}
	if cmd.Flags().Changed("no-sudo") {
		cfg.NoSudo = f.noSudo
	}
	if cmd.Flags().Changed("knife-bootstrap") {
		cfg.KnifeBootstrap = f.knifeBootstrap
	}
	if cmd.Flags().Changed("ssh-port") {
		cfg.SSHPort = f.sshPort
	}
}
