package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// KnifeAgent bootstraps hosts by invoking `knife bootstrap`. Output is
// streamed through so the user sees the run as it happens.
type KnifeAgent struct {
	// Binary overrides the knife executable name, mainly for tests.
	Binary string
}

func (a *KnifeAgent) binary() string {
	if a.Binary != "" {
		return a.Binary
	}
	return "knife"
}

// Bootstrap runs knife bootstrap against the target. A non-zero exit
// status is returned as-is; the caller treats it as fatal.
func (a *KnifeAgent) Bootstrap(ctx context.Context, t Target) error {
	args := knifeArgs(t)

	cmd := exec.CommandContext(ctx, a.binary(), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("bootstrap of %s failed: %w", t.Address, err)
	}
	return nil
}

// knifeArgs builds the knife bootstrap argument list for a target.
func knifeArgs(t Target) []string {
	args := []string{"bootstrap", t.Address}

	if t.NodeName != "" {
		args = append(args, "--node-name", t.NodeName)
	}
	if t.Port != 0 && t.Port != 22 {
		args = append(args, "--ssh-port", strconv.Itoa(t.Port))
	}
	if t.User != "" {
		args = append(args, "--ssh-user", t.User)
	}
	if t.Password != "" {
		args = append(args, "--ssh-password", t.Password)
	}
	if t.IdentityFile != "" {
		args = append(args, "--ssh-identity-file", t.IdentityFile)
	}
	if g := t.Gateway; g != nil {
		addr := g.Host
		if g.Port != 0 && g.Port != 22 {
			addr = net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
		}
		if g.User != "" {
			addr = g.User + "@" + addr
		}
		args = append(args, "--ssh-gateway", addr)
	}
	if len(t.RunList) > 0 {
		args = append(args, "--run-list", strings.Join(t.RunList, ","))
	}
	if t.UseSudo {
		args = append(args, "--sudo")
	}

	return args
}
