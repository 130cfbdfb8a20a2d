package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, s.Checkpoints.Interval)
	assert.Equal(t, 50*time.Millisecond, s.Checkpoints.PollInterval)
	assert.Equal(t, "per-job", s.Layout().String())
	assert.Equal(t, "retain", string(s.Retention()))
	assert.Equal(t, "full", s.SnapshotMode().String())
	assert.Equal(t, "localhost", s.Server.Host)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Empty(t, s.HA.Endpoint)
	assert.Empty(t, s.Registry.Dir)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resumer.yaml")
	doc := `checkpoints:
  base: /var/checkpoints
  interval: 250ms
  layout: flat
  retention: delete
ha:
  endpoint: localhost:6379
server:
  port: 9090
registry:
  dir: /var/jobs
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/checkpoints", s.Checkpoints.Base)
	assert.Equal(t, 250*time.Millisecond, s.Checkpoints.Interval)
	assert.Equal(t, "flat", s.Layout().String())
	assert.Equal(t, "delete", string(s.Retention()))
	assert.Equal(t, "localhost:6379", s.HA.Endpoint)
	assert.Equal(t, 9090, s.Server.Port)
	assert.Equal(t, "/var/jobs", s.Registry.Dir)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("RESUMER_CHECKPOINTS_LAYOUT", "flat")
	t.Setenv("RESUMER_SERVER_PORT", "7070")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "flat", s.Layout().String())
	assert.Equal(t, 7070, s.Server.Port)
}

func TestLoad_InvalidEnumFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resumer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checkpoints:\n  layout: nested\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingConfigFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
