package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
	"github.com/hectorj2f/mesos-group-executor/transport"
)

const (
	waitRetryInitialDelay = time.Second
	waitRetryMaxDelay     = 2 * time.Second
)

// startWait implements the Wait/Reaper, §4.E: open a dedicated connection
// for this task and long-poll WAIT_NESTED_CONTAINER until the child
// terminates or the connection is invalidated by a reconnect.
func (e *Executor) startWait(ctx context.Context, epoch uuid.UUID, c *Container) {
	if c.waitConn != nil {
		return
	}
	waitCtx, cancel := context.WithCancel(ctx)
	c.waitConn = e.client.NewConnection()
	c.waitCancel = cancel

	go e.waitLoop(waitCtx, epoch, c.TaskID, c.ContainerID, c.waitConn, waitRetryInitialDelay)
}

// waitLoop issues WAIT_NESTED_CONTAINER and retries transient failures
// (network errors and SERVICE_UNAVAILABLE) with a doubling delay (1s,
// then 2s, capped), per §4.E; any other non-200 status is treated as
// fatal and triggers shutdown. Every delivery back to the actor is
// fenced on epoch.
func (e *Executor) waitLoop(ctx context.Context, epoch uuid.UUID, taskID string, containerID api.ContainerID, conn transport.Connection, delay time.Duration) {
	exitStatus, err := conn.WaitNestedContainer(ctx, api.WaitNestedContainerRequest{ContainerID: containerID})

	e.post(func() {
		if e.connectionID != epoch {
			return
		}
		c, ok := e.containers.get(taskID)
		if !ok || c.waitConn != conn {
			// Superseded by a reconnect's fresh wait, or the container was
			// already reaped via another path.
			return
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if _, fatal := err.(*transport.StatusError); fatal && !transport.Unavailable(err) {
				logger.G(ctx).WithField("taskID", taskID).WithError(err).Error("WAIT_NESTED_CONTAINER returned a fatal status; shutting down")
				e.shutdown(ctx)
				return
			}
			logger.G(ctx).WithField("taskID", taskID).WithError(err).Warn("WAIT_NESTED_CONTAINER failed, retrying")
			next := delay * 2
			if next > waitRetryMaxDelay {
				next = waitRetryMaxDelay
			}
			time.AfterFunc(delay, func() {
				go e.waitLoop(ctx, epoch, taskID, containerID, conn, next)
			})
			return
		}

		if exitStatus == nil {
			logger.G(ctx).WithField("taskID", taskID).Error("WAIT_NESTED_CONTAINER returned no exit status; treating as protocol violation, retrying")
			time.AfterFunc(delay, func() {
				go e.waitLoop(ctx, epoch, taskID, containerID, conn, delay)
			})
			return
		}

		e.onTaskExited(ctx, c, *exitStatus)
	})
}

// onTaskExited implements §4.E steps 4-7: translate the exit status into
// a terminal TaskState, close the wait connection, forward the status
// update, cascade a fate-sharing kill to any still-live siblings, and
// remove the container. Shutdown is triggered once the group is empty.
func (e *Executor) onTaskExited(ctx context.Context, c *Container, exitStatus api.ExitStatus) {
	log := logger.G(ctx).WithField("taskID", c.TaskID)

	if c.waitCancel != nil {
		c.waitCancel()
	}
	if c.waitConn != nil {
		c.waitConn.Close() // nolint: errcheck
	}
	if c.Checker != nil {
		c.Checker.Stop()
	}
	if c.HealthChecker != nil {
		c.HealthChecker.Stop()
	}
	if c.escalateTimer != nil {
		c.escalateTimer.Stop()
	}

	state := exitState(c, exitStatus)
	log.WithField("state", state).WithField("exitStatus", exitStatus.String()).Info("Task exited")

	e.forwardStatus(ctx, c, state, exitStatus.String(), "")
	e.containers.delete(c.TaskID)

	if (state == api.TaskFailed || state == api.TaskKilled) && !e.shuttingDown && !c.KillingTaskGroup {
		e.cascadeKill(ctx, c.TaskGroup)
	}

	if e.containers.len() == 0 {
		if e.shuttingDown {
			e._shutdown(ctx)
		} else {
			e.shutdown(ctx)
		}
	}
}

// exitState translates an ExitStatus into a terminal TaskState, per
// §4.E step 4: a clean exit is always TASK_FINISHED, even for a task
// mid-kill that happened to exit 0 first; a non-clean exit is
// TASK_KILLED if the container was already marked Killing (it was
// signaled on purpose) and TASK_FAILED otherwise.
func exitState(c *Container, exitStatus api.ExitStatus) api.TaskState {
	if exitStatus.Successful() {
		return api.TaskFinished
	}
	if c.Killing {
		return api.TaskKilled
	}
	return api.TaskFailed
}

// cascadeKill implements fate sharing, §4.E step 6: every other live
// task in the group is marked KillingTaskGroup and killed with its own
// default kill policy.
func (e *Executor) cascadeKill(ctx context.Context, group api.TaskGroupInfo) {
	for _, t := range group.Tasks {
		sibling, ok := e.containers.get(t.TaskID)
		if !ok || sibling.KillingTaskGroup {
			continue
		}
		sibling.KillingTaskGroup = true
		e.kill(ctx, sibling, sibling.TaskInfo.KillPolicy)
	}
}
