// Package config collects the executor's immutable startup
// configuration: the required MESOS_* environment variables, the
// optional authentication token, and the --launcher_dir flag. See
// spec.md §6.
package config

import (
	"net/url"
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// Config is the executor's immutable configuration, assembled once at
// startup from the process environment and CLI flags.
type Config struct {
	FrameworkID         string
	ExecutorID          string
	AgentURL            *url.URL
	SandboxDirectory    string
	LauncherDirectory   string
	AuthorizationHeader string
}

const defaultLauncherDir = "/usr/libexec/mesos"

var slavePIDPattern = regexp.MustCompile(`^([^@]+)@([^:]+):(\d+)$`)

// FromEnvironment builds a Config from the process environment and the
// --launcher_dir flag value. It returns a descriptive error rather than
// exiting directly, so callers can translate missing/unparseable input
// into the required non-zero exit code (spec.md §6 "Exit codes").
func FromEnvironment(launcherDir string) (*Config, error) {
	frameworkID, err := requireEnv("MESOS_FRAMEWORK_ID")
	if err != nil {
		return nil, err
	}
	executorID, err := requireEnv("MESOS_EXECUTOR_ID")
	if err != nil {
		return nil, err
	}
	slavePID, err := requireEnv("MESOS_SLAVE_PID")
	if err != nil {
		return nil, err
	}
	sandbox, err := requireEnv("MESOS_SANDBOX")
	if err != nil {
		return nil, err
	}

	agentURL, err := agentURLFromSlavePID(slavePID)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FrameworkID:       frameworkID,
		ExecutorID:        executorID,
		AgentURL:          agentURL,
		SandboxDirectory:  sandbox,
		LauncherDirectory: launcherDir,
	}
	if cfg.LauncherDirectory == "" {
		cfg.LauncherDirectory = defaultLauncherDir
	}

	if token := os.Getenv("MESOS_EXECUTOR_AUTHENTICATION_TOKEN"); token != "" {
		cfg.AuthorizationHeader = "Bearer " + token
	}

	return cfg, nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", errors.Errorf("missing required environment variable %s", name)
	}
	return v, nil
}

// agentURLFromSlavePID derives the agent's HTTP API endpoint from the
// MESOS_SLAVE_PID actor address (id@ip:port), choosing https when either
// SSL_ENABLED or LIBPROCESS_SSL_ENABLED is set to "1" or "true".
func agentURLFromSlavePID(slavePID string) (*url.URL, error) {
	m := slavePIDPattern.FindStringSubmatch(slavePID)
	if m == nil {
		return nil, errors.Errorf("unparseable MESOS_SLAVE_PID %q, expected id@ip:port", slavePID)
	}
	id, ip, port := m[1], m[2], m[3]

	scheme := "http"
	if sslEnabled(os.Getenv("SSL_ENABLED")) || sslEnabled(os.Getenv("LIBPROCESS_SSL_ENABLED")) {
		scheme = "https"
	}

	return &url.URL{
		Scheme: scheme,
		Host:   ip + ":" + port,
		Path:   "/" + id + "/api/v1",
	}, nil
}

func sslEnabled(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
