package probe

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	sshconfig "github.com/kevinburke/ssh_config"
)

// Gateway identifies an intermediate SSH host used to reach targets
// that are not directly routable. A nil *Gateway means direct
// connectivity.
type Gateway struct {
	Host string
	User string
	Port int
	// Keys are private key file paths tried for gateway auth.
	Keys []string
}

// ParseGateway interprets the user@host:port address form. Fields left
// out of the address come from the local SSH client configuration for
// that host, then from plain defaults (current user, port 22). An
// empty address means no gateway.
func ParseGateway(addr string, keys []string) (*Gateway, error) {
	if addr == "" {
		return nil, nil
	}

	g := &Gateway{Keys: keys}
	rest := addr
	if i := strings.Index(rest, "@"); i >= 0 {
		g.User = rest[:i]
		rest = rest[i+1:]
	}
	if host, portStr, err := net.SplitHostPort(rest); err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid gateway port %q in %q", portStr, addr)
		}
		g.Port = port
		rest = host
	}
	if rest == "" {
		return nil, fmt.Errorf("gateway address %q has no host", addr)
	}
	g.Host = rest

	g.applyClientConfig()
	return g, nil
}

// applyClientConfig fills unset fields from ~/.ssh/config for the
// gateway host alias, mirroring what an ssh command line would do.
func (g *Gateway) applyClientConfig() {
	if g.User == "" {
		g.User = sshconfig.Get(g.Host, "User")
	}
	if g.User == "" {
		if u, err := user.Current(); err == nil {
			g.User = u.Username
		}
	}

	if g.Port == 0 {
		if port, err := strconv.Atoi(sshconfig.Get(g.Host, "Port")); err == nil && port > 0 {
			g.Port = port
		} else {
			g.Port = 22
		}
	}

	if len(g.Keys) == 0 {
		for _, path := range sshconfig.GetAll(g.Host, "IdentityFile") {
			path = expandHome(path)
			if _, err := os.Stat(path); err == nil {
				g.Keys = append(g.Keys, path)
			}
		}
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
