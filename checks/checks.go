// Package checks implements the check/health-check probe engines the
// lifecycle engine consumes as opaque collaborators: each exposes
// Pause/Resume and delivers results through a callback, never by holding
// a reference back into the executor's container state (see the executor
// package's taskCheckUpdated/taskHealthUpdated, which re-look up the task
// by ID instead).
package checks

import (
	"context"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
)

// Checker probes a task's configured check on an interval and reports
// results through its callback until dropped.
type Checker interface {
	Pause()
	Resume()
	Stop()
}

// HealthChecker probes a task's configured health check on an interval
// and reports results, including whether a failure should kill the task.
type HealthChecker interface {
	Pause()
	Resume()
	Stop()
}

// CheckCallback is invoked with the latest CheckStatus for a task.
type CheckCallback func(taskID string, status api.CheckStatus)

// HealthCallback is invoked with the latest HealthStatus for a task.
type HealthCallback func(taskID string, status api.HealthStatus)

const defaultInterval = 10 * time.Second

type ticker struct {
	mu       sync.Mutex
	taskID   string
	interval time.Duration
	paused   bool
	stopped  bool
	probe    func(ctx context.Context) (interface{}, error)
	deliver  func(interface{})

	cancel context.CancelFunc
}

func newTicker(taskID string, interval time.Duration, probe func(context.Context) (interface{}, error), deliver func(interface{})) *ticker {
	if interval <= 0 {
		interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &ticker{
		taskID:   taskID,
		interval: interval,
		probe:    probe,
		deliver:  deliver,
		cancel:   cancel,
	}
	go t.run(ctx)
	return t
}

func (t *ticker) run(ctx context.Context) {
	timer := time.NewTicker(t.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.mu.Lock()
			paused := t.paused
			t.mu.Unlock()
			if paused {
				continue
			}
			result, err := t.probe(ctx)
			if err != nil {
				logger.G(ctx).WithField("taskID", t.taskID).WithError(err).Debug("check probe failed")
				continue
			}
			t.mu.Lock()
			stopped := t.stopped
			t.mu.Unlock()
			if !stopped {
				t.deliver(result)
			}
		}
	}
}

func (t *ticker) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *ticker) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

func (t *ticker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.cancel()
}

// checker wraps a ticker, translating raw probe results into CheckStatus
// callbacks.
type checker struct {
	*ticker
}

// NewChecker builds a Checker for the given CheckInfo. Supported types
// are COMMAND, HTTP, and TCP; an unsupported type returns an error so the
// launch orchestrator can treat it as a construction failure (spec
// §4.D step 6).
func NewChecker(taskID string, info api.CheckInfo, cb CheckCallback) (Checker, error) {
	probe, err := buildCheckProbe(info)
	if err != nil {
		return nil, err
	}
	deliver := func(result interface{}) {
		cb(taskID, result.(api.CheckStatus))
	}
	return &checker{newTicker(taskID, defaultInterval, probe, deliver)}, nil
}

func buildCheckProbe(info api.CheckInfo) (func(context.Context) (interface{}, error), error) {
	switch info.Type {
	case "COMMAND":
		cmdInfo := info.Command
		return func(ctx context.Context) (interface{}, error) {
			code := runCommand(ctx, cmdInfo)
			return api.CheckStatus{Type: info.Type, Command: &api.CommandCheckStatus{ExitCode: &code}}, nil
		}, nil
	case "HTTP":
		httpInfo := info.HTTP
		return func(ctx context.Context) (interface{}, error) {
			code := probeHTTP(ctx, httpInfo)
			return api.CheckStatus{Type: info.Type, HTTP: &api.HTTPCheckStatus{StatusCode: &code}}, nil
		}, nil
	case "TCP":
		tcpInfo := info.TCP
		return func(ctx context.Context) (interface{}, error) {
			ok := probeTCP(ctx, tcpInfo)
			return api.CheckStatus{Type: info.Type, TCP: &api.TCPCheckStatus{Succeeded: &ok}}, nil
		}, nil
	default:
		return nil, &UnsupportedCheckTypeError{Type: info.Type}
	}
}

// healthChecker wraps a ticker, translating raw probe results into
// HealthStatus callbacks and honoring KillTask semantics.
type healthChecker struct {
	*ticker
}

// NewHealthChecker builds a HealthChecker for the given HealthCheckInfo.
func NewHealthChecker(taskID string, info api.HealthCheckInfo, cb HealthCallback) (HealthChecker, error) {
	probe, err := buildHealthProbe(info)
	if err != nil {
		return nil, err
	}
	deliver := func(result interface{}) {
		cb(taskID, result.(api.HealthStatus))
	}
	return &healthChecker{newTicker(taskID, defaultInterval, probe, deliver)}, nil
}

func buildHealthProbe(info api.HealthCheckInfo) (func(context.Context) (interface{}, error), error) {
	switch info.Type {
	case "COMMAND":
		cmdInfo := info.Command
		return func(ctx context.Context) (interface{}, error) {
			code := runCommand(ctx, cmdInfo)
			healthy := code == 0
			return api.HealthStatus{Healthy: healthy, KillTask: !healthy}, nil
		}, nil
	case "HTTP":
		httpInfo := info.HTTP
		return func(ctx context.Context) (interface{}, error) {
			code := probeHTTP(ctx, httpInfo)
			healthy := code >= 200 && code < 300
			return api.HealthStatus{Healthy: healthy, KillTask: !healthy}, nil
		}, nil
	case "TCP":
		tcpInfo := info.TCP
		return func(ctx context.Context) (interface{}, error) {
			ok := probeTCP(ctx, tcpInfo)
			return api.HealthStatus{Healthy: ok, KillTask: !ok}, nil
		}, nil
	default:
		return nil, &UnsupportedCheckTypeError{Type: info.Type}
	}
}

// UnsupportedCheckTypeError is returned by NewChecker/NewHealthChecker for
// an unrecognized CheckInfo/HealthCheckInfo type.
type UnsupportedCheckTypeError struct {
	Type string
}

func (e *UnsupportedCheckTypeError) Error() string {
	return "unsupported check type: " + e.Type
}

func runCommand(ctx context.Context, info *api.CommandInfo) int {
	if info == nil {
		return -1
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", info.Value) // nolint: gosec
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		return -1
	}
	return 0
}

func probeHTTP(ctx context.Context, info *api.HTTPCheckInfo) int {
	if info == nil {
		return -1
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpCheckURL(info), nil)
	if err != nil {
		return -1
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close() // nolint: errcheck
	return resp.StatusCode
}

func httpCheckURL(info *api.HTTPCheckInfo) string {
	path := info.Path
	if path == "" {
		path = "/"
	}
	return "http://127.0.0.1:" + portString(info.Port) + path
}

func probeTCP(ctx context.Context, info *api.TCPCheckInfo) bool {
	if info == nil {
		return false
	}
	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", "127.0.0.1:"+portString(info.Port))
	if err != nil {
		return false
	}
	conn.Close() // nolint: errcheck, gosec
	return true
}

func portString(p int) string {
	return strconv.Itoa(p)
}
