package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		prev, had := os.LookupEnv(k)
		if v == "" {
			os.Unsetenv(k) // nolint: errcheck
		} else {
			os.Setenv(k, v) // nolint: errcheck
		}
		t.Cleanup(func() {
			if had {
				os.Setenv(k, prev) // nolint: errcheck
			} else {
				os.Unsetenv(k) // nolint: errcheck
			}
		})
	}
}

func TestFromEnvironmentMissingVariable(t *testing.T) {
	withEnv(t, map[string]string{
		"MESOS_FRAMEWORK_ID": "",
		"MESOS_EXECUTOR_ID":  "",
		"MESOS_SLAVE_PID":    "",
		"MESOS_SANDBOX":      "",
	})

	_, err := FromEnvironment("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MESOS_FRAMEWORK_ID")
}

func TestFromEnvironmentDefaultsLauncherDir(t *testing.T) {
	withEnv(t, map[string]string{
		"MESOS_FRAMEWORK_ID":                   "fw1",
		"MESOS_EXECUTOR_ID":                    "exec1",
		"MESOS_SLAVE_PID":                      "slave(1)@10.0.0.1:5051",
		"MESOS_SANDBOX":                        "/mnt/mesos/sandbox",
		"SSL_ENABLED":                          "",
		"LIBPROCESS_SSL_ENABLED":               "",
		"MESOS_EXECUTOR_AUTHENTICATION_TOKEN":  "",
	})

	cfg, err := FromEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, "fw1", cfg.FrameworkID)
	assert.Equal(t, "exec1", cfg.ExecutorID)
	assert.Equal(t, defaultLauncherDir, cfg.LauncherDirectory)
	assert.Equal(t, "/mnt/mesos/sandbox", cfg.SandboxDirectory)
	assert.Equal(t, "http", cfg.AgentURL.Scheme)
	assert.Equal(t, "10.0.0.1:5051", cfg.AgentURL.Host)
	assert.Equal(t, "/slave(1)/api/v1", cfg.AgentURL.Path)
	assert.Empty(t, cfg.AuthorizationHeader)
}

func TestFromEnvironmentHonorsLauncherDirFlag(t *testing.T) {
	withEnv(t, map[string]string{
		"MESOS_FRAMEWORK_ID": "fw1",
		"MESOS_EXECUTOR_ID":  "exec1",
		"MESOS_SLAVE_PID":    "slave(1)@10.0.0.1:5051",
		"MESOS_SANDBOX":      "/mnt/mesos/sandbox",
	})

	cfg, err := FromEnvironment("/opt/mesos/libexec")
	require.NoError(t, err)
	assert.Equal(t, "/opt/mesos/libexec", cfg.LauncherDirectory)
}

func TestFromEnvironmentUsesHTTPSWhenSSLEnabled(t *testing.T) {
	withEnv(t, map[string]string{
		"MESOS_FRAMEWORK_ID": "fw1",
		"MESOS_EXECUTOR_ID":  "exec1",
		"MESOS_SLAVE_PID":    "slave(1)@10.0.0.1:5051",
		"MESOS_SANDBOX":      "/mnt/mesos/sandbox",
		"SSL_ENABLED":        "true",
	})

	cfg, err := FromEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, "https", cfg.AgentURL.Scheme)
}

func TestFromEnvironmentSetsBearerAuthorizationHeader(t *testing.T) {
	withEnv(t, map[string]string{
		"MESOS_FRAMEWORK_ID":                  "fw1",
		"MESOS_EXECUTOR_ID":                   "exec1",
		"MESOS_SLAVE_PID":                     "slave(1)@10.0.0.1:5051",
		"MESOS_SANDBOX":                       "/mnt/mesos/sandbox",
		"MESOS_EXECUTOR_AUTHENTICATION_TOKEN": "secret-token",
	})

	cfg, err := FromEnvironment("")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", cfg.AuthorizationHeader)
}

func TestFromEnvironmentRejectsUnparseableSlavePID(t *testing.T) {
	withEnv(t, map[string]string{
		"MESOS_FRAMEWORK_ID": "fw1",
		"MESOS_EXECUTOR_ID":  "exec1",
		"MESOS_SLAVE_PID":    "not-a-pid",
		"MESOS_SANDBOX":      "/mnt/mesos/sandbox",
	})

	_, err := FromEnvironment("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MESOS_SLAVE_PID")
}

func TestSSLEnabled(t *testing.T) {
	assert.True(t, sslEnabled("true"))
	assert.True(t, sslEnabled("1"))
	assert.False(t, sslEnabled("false"))
	assert.False(t, sslEnabled(""))
	assert.False(t, sslEnabled("not-a-bool"))
}
