package handlers

import (
	"fmt"
	"strings"

	"cloudboot/internal/config"
	"cloudboot/pkg/cloud"
)

func instanceSpec(cfg *config.Config, name string, metadata map[string]string, userData string) cloud.InstanceSpec {
	return cloud.InstanceSpec{
		Name:       name,
		Hostname:   cfg.HostnameLabel,
		Location:   cfg.Location,
		Image:      cfg.Image,
		ServerType: cfg.ServerType,
		Network:    cfg.Network,
		Labels:     metadata,
		SSHKeys:    cfg.SSHKeys,
		UserData:   userData,
	}
}

// authorizedKeysUserData renders authorized keys as a minimal
// cloud-config. It only applies when no explicit user data was given;
// merging keys into arbitrary user data is not attempted.
func authorizedKeysUserData(keys string) string {
	var b strings.Builder
	b.WriteString("#cloud-config\nssh_authorized_keys:\n")
	for _, line := range strings.Split(keys, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Fprintf(&b, "  - %s\n", line)
	}
	return b.String()
}
