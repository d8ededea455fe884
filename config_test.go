package dispatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.Equal(t, DefaultHostPort, cfg.HostPort)
	require.Equal(t, DefaultNamespace, cfg.Namespace)
	require.Equal(t, DefaultTaskQueue, cfg.TaskQueue)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("DISPATCH_HOST_PORT", "temporal.internal:7233")
	t.Setenv("DISPATCH_NAMESPACE", "staging")
	t.Setenv("DISPATCH_TIMEOUT", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "temporal.internal:7233", cfg.HostPort)
	require.Equal(t, "staging", cfg.Namespace)
	require.Equal(t, DefaultTaskQueue, cfg.TaskQueue)
	require.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host_port: file.example:7233\ntask_queue: file-queue\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "file.example:7233", cfg.HostPort)
	require.Equal(t, "file-queue", cfg.TaskQueue)
	require.Equal(t, DefaultNamespace, cfg.Namespace)
}

func TestLoadConfigFileEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("task_queue: file-queue\n"), 0o600))
	t.Setenv("DISPATCH_TASK_QUEUE", "env-queue")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "env-queue", cfg.TaskQueue)
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "missing host port", mutate: func(c *Config) { c.HostPort = "" }, wantErr: "host_port"},
		{name: "missing namespace", mutate: func(c *Config) { c.Namespace = "" }, wantErr: "namespace"},
		{name: "missing task queue", mutate: func(c *Config) { c.TaskQueue = "" }, wantErr: "task_queue"},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: "timeout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tc.wantErr)
		})
	}
}
