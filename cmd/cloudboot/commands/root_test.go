package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot_HasCommands(t *testing.T) {
	t.Parallel()
	root := Root()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["launch"])
	assert.True(t, names["version"])
}

func TestVersion_Output(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	cmd := Version()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "1.2.3")
	assert.Contains(t, buf.String(), "abc123")
}

func TestLaunch_MissingTokenIsConfigurationError(t *testing.T) {
	t.Setenv("HCLOUD_TOKEN", "")

	cmd := Launch()
	cmd.SetArgs([]string{
		"--location", "fsn1",
		"--image", "ubuntu-24.04",
		"--server-type", "cx22",
		"--display-name", "web-1",
		"--ssh-user", "root",
		"--ssh-password", "hunter2",
	})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error")
	assert.Contains(t, err.Error(), "HCLOUD_TOKEN")
}

func TestLaunch_MissingNameIsConfigurationError(t *testing.T) {
	t.Setenv("HCLOUD_TOKEN", "test-token")

	cmd := Launch()
	cmd.SetArgs([]string{
		"--location", "fsn1",
		"--image", "ubuntu-24.04",
		"--server-type", "cx22",
		"--ssh-user", "root",
		"--ssh-password", "hunter2",
	})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error")
	assert.Contains(t, err.Error(), "display_name")
}

func TestLaunch_InvalidWaitFlagIsConfigurationError(t *testing.T) {
	t.Setenv("HCLOUD_TOKEN", "test-token")

	cmd := Launch()
	cmd.SetArgs([]string{
		"--location", "fsn1",
		"--image", "ubuntu-24.04",
		"--server-type", "cx22",
		"--display-name", "web-1",
		"--ssh-user", "root",
		"--ssh-password", "hunter2",
		"--wait-for-ssh-max", "-1",
	})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait_for_ssh_max")
}
