package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Token:        "test-token",
		Location:     "fsn1",
		Image:        "ubuntu-24.04",
		ServerType:   "cx22",
		DisplayName:  "web-1",
		SSHUser:      "root",
		IdentityFile: "/home/me/.ssh/id_ed25519",
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	t.Parallel()
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Token = "" }},
		{"missing location", func(c *Config) { c.Location = "" }},
		{"missing image", func(c *Config) { c.Image = "" }},
		{"missing server type", func(c *Config) { c.ServerType = "" }},
		{"missing name", func(c *Config) { c.DisplayName = ""; c.HostnameLabel = "" }},
		{"missing ssh user", func(c *Config) { c.SSHUser = "" }},
		{"missing credentials", func(c *Config) { c.IdentityFile = ""; c.SSHPassword = "" }},
		{"bad ssh port", func(c *Config) { c.SSHPort = 70000 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_PasswordInsteadOfIdentityFile(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.IdentityFile = ""
	cfg.SSHPassword = "hunter2"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_HostnameLabelAsName(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.DisplayName = ""
	cfg.HostnameLabel = "web-1-host"
	assert.NoError(t, cfg.Validate())
}

func TestWaitOptions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		raw       string
		want      int
		expectErr bool
	}{
		{"blank uses default", "", DefaultWaitToStabilize, false},
		{"zero accepted", "0", 0, false},
		{"positive accepted", "120", 120, false},
		{"whitespace trimmed", " 15 ", 15, false},
		{"negative rejected", "-1", 0, true},
		{"non-numeric rejected", "abc", 0, true},
		{"fractional rejected", "1.5", 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.WaitToStabilize = tc.raw
			vals, err := cfg.WaitOptions()
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, vals.ToStabilizeSeconds)
		})
	}
}

func TestWaitOptions_Defaults(t *testing.T) {
	t.Parallel()
	vals, err := validConfig().WaitOptions()
	require.NoError(t, err)
	assert.Equal(t, DefaultWaitToStabilize, vals.ToStabilizeSeconds)
	assert.Equal(t, DefaultWaitForSSHMax, vals.ForSSHMaxSeconds)
	assert.Equal(t, DefaultWaitForSSHInterval, vals.ForSSHIntervalSeconds)
}

func TestWaitOptions_ZeroIntervalRejected(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.WaitForSSHInterval = "0"
	_, err := cfg.WaitOptions()
	assert.Error(t, err)
}

func TestMergedMetadata(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Metadata = map[string]string{"team": "infra"}
	cfg.MetadataJSON = `{"env": "prod"}`

	merged, err := cfg.MergedMetadata()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "infra", "env": "prod"}, merged)
}

func TestMergedMetadata_ConflictingKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Metadata = map[string]string{"env": "staging"}
	cfg.MetadataJSON = `{"env": "prod"}`

	_, err := cfg.MergedMetadata()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"env"`)
}

func TestMergedMetadata_MalformedJSON(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.MetadataJSON = `{"env": }`

	_, err := cfg.MergedMetadata()
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launch.yaml")
	content := `
location: fsn1
image: ubuntu-24.04
server_type: cx22
ssh_user: root
identity_file: /home/me/.ssh/id_ed25519
wait_for_ssh_max: "300"
run_list:
  - role[base]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HCLOUD_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "fsn1", cfg.Location)
	assert.Equal(t, "300", cfg.WaitForSSHMax)
	assert.Equal(t, []string{"role[base]"}, cfg.RunList)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()
	_, err := Load("/nonexistent/launch.yaml")
	assert.Error(t, err)
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	t.Setenv("HCLOUD_TOKEN", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
}

func TestReadFileOption(t *testing.T) {
	t.Parallel()
	got, err := ReadFileOption("")
	require.NoError(t, err)
	assert.Empty(t, got)

	dir := t.TempDir()
	path := filepath.Join(dir, "user-data")
	require.NoError(t, os.WriteFile(path, []byte("#cloud-config\n"), 0o600))
	got, err = ReadFileOption(path)
	require.NoError(t, err)
	assert.Equal(t, "#cloud-config\n", got)

	_, err = ReadFileOption(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
