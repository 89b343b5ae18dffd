package executor

import (
	"context"

	"github.com/google/uuid"
	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
)

// dispatch routes one decoded Event to its handler, per the table in
// spec.md §4.C. It always runs on the actor goroutine.
func (e *Executor) dispatch(ctx context.Context, ev api.Event) { // nolint: gocyclo
	switch ev.Type {
	case api.EventSubscribed:
		if ev.Subscribed == nil {
			logger.G(ctx).Error("SUBSCRIBED event missing body")
			return
		}
		e.onSubscribed(ctx, ev.Subscribed)

	case api.EventLaunch:
		logger.G(ctx).Error("LAUNCH is unsupported by this executor (single-task launches are a non-goal); shutting down")
		e.shutdown(ctx)

	case api.EventLaunchGroup:
		if ev.LaunchGroup == nil {
			logger.G(ctx).Error("LAUNCH_GROUP event missing body")
			return
		}
		e.onLaunchGroup(ctx, ev.LaunchGroup.TaskGroup)

	case api.EventKill:
		if ev.Kill == nil {
			logger.G(ctx).Error("KILL event missing body")
			return
		}
		e.killTask(ctx, ev.Kill.TaskID, ev.Kill.KillPolicy)

	case api.EventAcknowledged:
		if ev.Acknowledged == nil {
			logger.G(ctx).Error("ACKNOWLEDGED event missing body")
			return
		}
		e.onAcknowledged(ctx, ev.Acknowledged.TaskID, ev.Acknowledged.UUID)

	case api.EventShutdown:
		e.shutdown(ctx)

	case api.EventMessage:
		// No-op, per spec.

	case api.EventError:
		msg := ""
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		logger.G(ctx).WithField("message", msg).Error("Received ERROR event from agent")

	default:
		logger.G(ctx).WithField("eventType", ev.Type).Warn("Received unknown event type")
	}
}

// onAcknowledged implements the ACKNOWLEDGED branch of §4.C: remove the
// UUID from unacknowledgedUpdates (warn if absent, per §7's
// "Unacknowledged-ack UUID" policy) and, if the task is still live, latch
// Acknowledged = true so future SUBSCRIBEs stop replaying it.
func (e *Executor) onAcknowledged(ctx context.Context, taskID string, id uuid.UUID) {
	if !e.unacknowledgedUpdates.delete(id) {
		logger.G(ctx).WithField("taskID", taskID).WithField("uuid", id).Warn("Received ACKNOWLEDGED for unknown update UUID")
	}
	if c, ok := e.containers.get(taskID); ok {
		c.Acknowledged = true
	}
}
