package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"cloudboot/internal/probe"
	"cloudboot/internal/util/retry"
)

const (
	defaultCommand     = "chef-client"
	defaultDialTimeout = 10 * time.Second

	// The reachability wait has already seen the SSH banner by the
	// time the agent runs, so only a few dial attempts are needed to
	// ride out a service restart between probe and bootstrap.
	dialAttempts = 3
	dialDelay    = 2 * time.Second
)

// SSHAgent bootstraps hosts by running the configuration client over
// an SSH session on the target itself. The connection goes through
// Target.Gateway when one is set, the same path the reachability
// probes took.
type SSHAgent struct {
	// Command overrides the remote bootstrap command. Defaults to
	// chef-client.
	Command string

	// Output receives the combined remote output. Defaults to
	// os.Stdout.
	Output io.Writer

	// HostKeyCallback handles host key verification. Nil means
	// ssh.InsecureIgnoreHostKey: a freshly provisioned server has no
	// recorded host key yet.
	HostKeyCallback ssh.HostKeyCallback
}

// Bootstrap connects to the target and runs the bootstrap command in
// one SSH session. Credentials are validated before the first dial so
// configuration mistakes fail fast.
func (a *SSHAgent) Bootstrap(ctx context.Context, t Target) error {
	cfg, err := a.clientConfig(t)
	if err != nil {
		return err
	}

	client, closeAll, err := a.connect(ctx, t, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap of %s failed: %w", t.Address, err)
	}
	defer closeAll()

	if err := a.run(client, bootstrapCommand(a.command(), t), t.Address); err != nil {
		return fmt.Errorf("bootstrap of %s failed: %w", t.Address, err)
	}
	return nil
}

func (a *SSHAgent) command() string {
	if a.Command != "" {
		return a.Command
	}
	return defaultCommand
}

func (a *SSHAgent) output() io.Writer {
	if a.Output != nil {
		return a.Output
	}
	return os.Stdout
}

// clientConfig parses the target's credentials once, before any dial.
func (a *SSHAgent) clientConfig(t Target) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod
	if t.IdentityFile != "" {
		pem, err := os.ReadFile(t.IdentityFile) // #nosec G304 -- user-supplied key path
		if err != nil {
			return nil, fmt.Errorf("failed to read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", t.IdentityFile, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if t.Password != "" {
		methods = append(methods, ssh.Password(t.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH credentials for %s", t.Address)
	}

	callback := a.HostKeyCallback
	if callback == nil {
		callback = ssh.InsecureIgnoreHostKey() //nolint:gosec // freshly provisioned servers have no known host key
	}

	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            methods,
		HostKeyCallback: callback,
		Timeout:         defaultDialTimeout,
	}, nil
}

// connect establishes the SSH connection with a short retry, directly
// or through the gateway. closeAll tears down the target client and,
// when present, the gateway client.
func (a *SSHAgent) connect(ctx context.Context, t Target, cfg *ssh.ClientConfig) (client *ssh.Client, closeAll func(), err error) {
	addr := net.JoinHostPort(t.Address, strconv.Itoa(t.port()))

	err = retry.Do(ctx, func() error {
		var dialErr error
		client, closeAll, dialErr = dialTarget(t.Gateway, addr, cfg)
		return dialErr
	}, retry.WithAttempts(dialAttempts), retry.WithDelay(dialDelay))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}
	return client, closeAll, nil
}

func dialTarget(g *probe.Gateway, addr string, cfg *ssh.ClientConfig) (*ssh.Client, func(), error) {
	if g == nil {
		client, err := ssh.Dial("tcp", addr, cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	}

	gw, err := ssh.Dial("tcp", g.Addr(), g.ClientConfig())
	if err != nil {
		return nil, nil, err
	}
	conn, err := gw.Dial("tcp", addr)
	if err != nil {
		_ = gw.Close()
		return nil, nil, err
	}
	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		_ = gw.Close()
		return nil, nil, err
	}
	client := ssh.NewClient(ncc, chans, reqs)
	return client, func() {
		_ = client.Close()
		_ = gw.Close()
	}, nil
}

// run executes the bootstrap command in one session and relays its
// combined output.
func (a *SSHAgent) run(client *ssh.Client, command, host string) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open session on %s: %w", host, err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if len(output) > 0 {
		_, _ = a.output().Write(output)
	}
	if err != nil {
		return fmt.Errorf("command %q failed on %s: %w", command, host, err)
	}
	return nil
}

func (t Target) port() int {
	if t.Port != 0 {
		return t.Port
	}
	return 22
}

// bootstrapCommand builds the remote command line for a target.
func bootstrapCommand(base string, t Target) string {
	parts := make([]string, 0, 8)
	if t.UseSudo {
		parts = append(parts, "sudo")
	}
	parts = append(parts, base)
	if t.NodeName != "" {
		parts = append(parts, "--node-name", shellQuote(t.NodeName))
	}
	if len(t.RunList) > 0 {
		parts = append(parts, "--runlist", shellQuote(strings.Join(t.RunList, ",")))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
