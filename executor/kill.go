package executor

import (
	"context"
	"time"

	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
	"go.opencensus.io/trace"
)

const defaultGracePeriod = 3 * time.Second

// killTask implements the KILL branch of §4.C / the Kill Controller
// entry point of §4.F: look up the task, and if it's still live, kill
// it with the override policy carried on the event, if any.
func (e *Executor) killTask(ctx context.Context, taskID string, killPolicy *api.KillPolicy) {
	c, ok := e.containers.get(taskID)
	if !ok {
		logger.G(ctx).WithField("taskID", taskID).Warn("KILL for unknown or already-terminated task")
		return
	}
	e.kill(ctx, c, killPolicy)
}

// kill implements §4.F: pause and drop the checker/health-checker (no
// further updates, invariant 3), send SIGTERM immediately, announce
// TASK_KILLING when the framework advertised the capability, and arm an
// escalation timer that sends SIGKILL after the grace period unless the
// container is reaped first. Calling kill on an already-killing
// container is a no-op beyond re-arming nothing.
func (e *Executor) kill(ctx context.Context, c *Container, killPolicy *api.KillPolicy) {
	log := logger.G(ctx).WithField("taskID", c.TaskID)
	if c.Killing {
		return
	}
	c.Killing = true

	if c.Checker != nil {
		c.Checker.Pause()
		c.Checker = nil
	}
	if c.HealthChecker != nil {
		c.HealthChecker.Pause()
		c.HealthChecker = nil
	}

	grace := gracePeriod(killPolicy, c.TaskInfo.KillPolicy)
	log.WithField("gracePeriod", grace).Info("Killing task")

	if e.frameworkInfo.HasCapability("TASK_KILLING_STATE") {
		e.forwardStatus(ctx, c, api.TaskKilling, "", "")
	}

	conn := e.client.NewConnection()
	epoch := e.connectionID
	go func() {
		err := conn.KillNestedContainer(ctx, api.KillNestedContainerRequest{
			ContainerID: c.ContainerID,
			Signal:      api.SignalTerm,
		})
		conn.Close() // nolint: errcheck
		if err != nil {
			logger.G(ctx).WithField("taskID", c.TaskID).WithError(err).Warn("KILL_NESTED_CONTAINER(SIGTERM) failed")
		}
	}()

	taskID := c.TaskID
	c.escalateTimer = time.AfterFunc(grace, func() {
		e.post(func() {
			if e.connectionID != epoch {
				return
			}
			e.escalate(ctx, taskID)
		})
	})
}

// escalate implements §4.F's grace-period expiry: send SIGKILL unless
// the container was already reaped by the wait loop (its entry in
// containers is gone; the race is resolved by re-checking membership
// here on the actor goroutine).
func (e *Executor) escalate(ctx context.Context, taskID string) {
	c, ok := e.containers.get(taskID)
	if !ok {
		return
	}
	logger.G(ctx).WithField("taskID", taskID).Warn("Grace period expired, escalating to SIGKILL")

	conn := e.client.NewConnection()
	go func() {
		defer conn.Close() // nolint: errcheck
		if err := conn.KillNestedContainer(ctx, api.KillNestedContainerRequest{
			ContainerID: c.ContainerID,
			Signal:      api.SignalKill,
		}); err != nil {
			logger.G(ctx).WithField("taskID", taskID).WithError(err).Warn("KILL_NESTED_CONTAINER(SIGKILL) failed")
		}
	}()
}

// gracePeriod resolves the grace period to use, per precedence in §4.F:
// the KILL event's override, then the task's own kill policy, then the
// default.
func gracePeriod(override, taskPolicy *api.KillPolicy) time.Duration {
	switch {
	case override != nil:
		return durationFromSeconds(override.GracePeriod)
	case taskPolicy != nil:
		return durationFromSeconds(taskPolicy.GracePeriod)
	default:
		return defaultGracePeriod
	}
}

func durationFromSeconds(s api.DurationSeconds) time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// shutdown implements §4.F's group-wide shutdown: kill every live task
// (marking the group as shutting down so the fate-sharing cascade in
// wait.go doesn't re-trigger), then terminate the actor once every
// container has been reaped. If no containers remain, terminate
// immediately.
func (e *Executor) shutdown(ctx context.Context) {
	if e.shuttingDown {
		return
	}
	_, span := trace.StartSpan(ctx, "shutdown")
	defer span.End()
	span.AddAttributes(trace.Int64Attribute("liveTasks", int64(e.containers.len())))

	e.shuttingDown = true
	logger.G(ctx).Info("Shutting down")

	if e.containers.len() == 0 {
		e._shutdown(ctx)
		return
	}

	for _, c := range e.containers.all() {
		c.KillingTaskGroup = true
		e.kill(ctx, c, c.TaskInfo.KillPolicy)
	}
}

// _shutdown terminates the actor loop. Mirrors the teacher's own
// shutdown sequencing: a short delay gives the final UPDATE call's
// goroutine a chance to actually hit the wire before the process exits.
func (e *Executor) _shutdown(ctx context.Context) {
	time.AfterFunc(time.Second, func() {
		e.post(func() {
			select {
			case <-e.stopped:
			default:
				close(e.stopped)
			}
		})
	})
}
