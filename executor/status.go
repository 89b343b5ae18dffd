package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
)

// forwardStatus implements the Status Updater, §4.G: build a TaskStatus
// carrying a fresh UUID and timestamp, record it in
// unacknowledgedUpdates before it goes out (invariant 4), latch it as
// the container's LastTaskStatus, and send the UPDATE call.
func (e *Executor) forwardStatus(ctx context.Context, c *Container, state api.TaskState, message string, reason api.Reason) {
	status := api.TaskStatus{
		TaskID:          c.TaskID,
		State:           state,
		Message:         message,
		UUID:            uuid.New(),
		Timestamp:       monotonicTimestamp(),
		ExecutorID:      e.cfg.ExecutorID,
		Source:          api.SourceExecutor,
		Reason:          reason,
		ContainerStatus: api.ContainerStatus{ContainerID: c.ContainerID},
	}
	if c.TaskInfo.Check != nil {
		status.CheckStatus = &api.CheckStatus{Type: c.TaskInfo.Check.Type}
	}

	e.unacknowledgedUpdates.put(status)
	c.LastTaskStatus = status

	e.sendUpdate(ctx, status)
}

// sendUpdate issues the UPDATE call; failures are logged but not
// retried here — the status remains in unacknowledgedUpdates and is
// replayed on the next SUBSCRIBE, per §4.B.
func (e *Executor) sendUpdate(ctx context.Context, status api.TaskStatus) {
	call := api.Call{
		Type:        api.CallUpdate,
		FrameworkID: e.cfg.FrameworkID,
		ExecutorID:  e.cfg.ExecutorID,
		Update:      &api.Update{Status: status},
	}
	go func() {
		if err := e.client.Send(ctx, call); err != nil {
			logger.G(ctx).WithField("taskID", status.TaskID).WithError(err).Warn("UPDATE call failed")
		}
	}()
}

// monotonicTimestamp returns the current wall-clock time as fractional
// seconds, the wire format TaskStatus.Timestamp uses.
func monotonicTimestamp() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// taskCheckUpdated implements the Check Adapter's check-result branch,
// §4.H: look the task up fresh by ID (a checker never holds a direct
// container reference) and forward a layered status update carrying the
// latest CheckStatus. A task that has already exited, is being killed,
// or whose group is shutting down silently drops the result.
func (e *Executor) taskCheckUpdated(taskID string, status api.CheckStatus) {
	e.post(func() {
		c, ok := e.containers.get(taskID)
		if !ok || e.shuttingDown || c.Killing {
			return
		}
		ctx := context.Background()
		last := c.LastTaskStatus
		last.CheckStatus = &status
		last.UUID = uuid.New()
		last.Timestamp = monotonicTimestamp()
		last.Reason = api.ReasonTaskCheckStatusUpdated
		e.unacknowledgedUpdates.put(last)
		c.LastTaskStatus = last
		e.sendUpdate(ctx, last)
	})
}

// taskHealthUpdated implements the Check Adapter's health-result branch,
// §4.H: latch Healthy on the status, latch unhealthy once observed
// false (a health check that flaps back to healthy does not un-latch
// it), and kill the task when the probe requested it.
func (e *Executor) taskHealthUpdated(taskID string, status api.HealthStatus) {
	e.post(func() {
		c, ok := e.containers.get(taskID)
		if !ok || e.shuttingDown || c.Killing {
			return
		}
		ctx := context.Background()
		healthy := status.Healthy
		last := c.LastTaskStatus
		last.Healthy = &healthy
		last.UUID = uuid.New()
		last.Timestamp = monotonicTimestamp()
		last.Reason = api.ReasonTaskHealthCheckStatusUpdated
		e.unacknowledgedUpdates.put(last)
		c.LastTaskStatus = last
		e.sendUpdate(ctx, last)

		if !status.Healthy {
			e.unhealthy = true
		}
		if status.KillTask {
			logger.G(ctx).WithField("taskID", taskID).Warn("Health check requested task kill")
			e.killTask(ctx, taskID, nil)
		}
	})
}
