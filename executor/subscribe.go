package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
)

// buildSubscribePayload implements §4.B: every unacknowledged update (so
// the agent can re-deliver acknowledgements) and every not-yet-known
// task's TaskInfo (tasks whose container has Acknowledged == false).
// Terminated-and-reaped tasks are never replayed: their absence from
// containers already told the agent everything it needs via the
// WAIT_NESTED_CONTAINER result.
func (e *Executor) buildSubscribePayload() *api.Subscribe {
	sub := &api.Subscribe{
		UnacknowledgedUpdates: e.unacknowledgedUpdates.all(),
	}
	for _, c := range e.containers.all() {
		if !c.Acknowledged {
			sub.UnacknowledgedTasks = append(sub.UnacknowledgedTasks, c.TaskInfo)
		}
	}
	return sub
}

// startSubscriptionLoop implements §4.B: while CONNECTED but not yet
// SUBSCRIBED, retry the subscribe attempt on a 1s timer carrying a fresh
// replay payload. The loop self-cancels the moment SUBSCRIBED arrives
// (onSubscribed stops e.subscribeTimer) or the connection drops.
func (e *Executor) startSubscriptionLoop(ctx context.Context, epoch uuid.UUID) {
	e.subscribeTimer = time.AfterFunc(subscribeRetryInterval, func() {
		e.post(func() {
			if e.connectionID != epoch || e.state != connected {
				return
			}
			logger.G(ctx).WithField("connectionId", epoch).Info("SUBSCRIBE not yet acknowledged, retrying with a fresh connection")
			if e.streamCancel != nil {
				e.streamCancel()
			}
			e.connect(ctx)
		})
	})
}

// onSubscribed implements the SUBSCRIBED branch of §4.C: populate
// frameworkInfo/executorContainerID, move to SUBSCRIBED, and — on a
// reconnect of an already-launched group — re-wait every live container
// and resume every checker (§4.B last paragraph).
func (e *Executor) onSubscribed(ctx context.Context, sub *api.Subscribed) {
	if e.subscribeTimer != nil {
		e.subscribeTimer.Stop()
		e.subscribeTimer = nil
	}
	e.state = subscribed
	e.frameworkInfo = sub.FrameworkInfo
	e.executorContainerID = sub.ExecutorContainerID

	logger.G(ctx).WithField("connectionId", e.connectionID).Info("Subscribed")

	if !e.launched {
		return
	}

	epoch := e.connectionID
	for _, c := range e.containers.all() {
		if c.Checker != nil {
			c.Checker.Resume()
		}
		if c.HealthChecker != nil {
			c.HealthChecker.Resume()
		}
		e.startWait(ctx, epoch, c)
	}
}
