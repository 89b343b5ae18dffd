package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/logger"
	"github.com/hectorj2f/mesos-group-executor/transport"
)

const subscribeRetryInterval = time.Second

// Run is the executor's single actor loop. It drains the mailbox until
// _shutdown closes e.stopped, or ctx is canceled. See spec.md §5.
func (e *Executor) Run(ctx context.Context) error {
	e.connect(ctx)

	for {
		select {
		case fn := <-e.mailbox:
			fn()
		case <-e.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// connect implements the Connection Manager's stream-up transition
// (§4.A): open a fresh subscription stream, assign a new connectionId,
// and start the subscription loop.
func (e *Executor) connect(ctx context.Context) {
	streamCtx, cancel := context.WithCancel(ctx)
	e.streamCancel = cancel

	e.connectionID = uuid.New()
	epoch := e.connectionID
	log := logger.G(ctx).WithField("connectionId", epoch)

	stream, err := e.client.Subscribe(streamCtx, api.Call{
		Type:        api.CallSubscribe,
		FrameworkID: e.cfg.FrameworkID,
		ExecutorID:  e.cfg.ExecutorID,
		Subscribe:   e.buildSubscribePayload(),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to open subscription stream, retrying")
		e.scheduleReconnect(ctx)
		return
	}

	e.state = connected
	log.Info("Subscription stream connected")
	e.startSubscriptionLoop(ctx, epoch)
	go e.pumpEvents(ctx, epoch, stream)
}

func (e *Executor) scheduleReconnect(ctx context.Context) {
	time.AfterFunc(subscribeRetryInterval, func() {
		e.post(func() {
			if e.shuttingDown {
				return
			}
			e.connect(ctx)
		})
	})
}

// pumpEvents decodes Events off stream and posts them to the mailbox as
// they arrive, fencing every delivery on the captured connection epoch
// (spec invariant 4). It runs on its own goroutine, since Stream.Events
// blocks.
func (e *Executor) pumpEvents(ctx context.Context, epoch uuid.UUID, stream transport.Stream) {
	for ev := range stream.Events() {
		event := ev
		e.post(func() {
			if e.connectionID != epoch {
				return
			}
			e.dispatch(ctx, event)
		})
	}
	e.post(func() {
		if e.connectionID != epoch {
			return
		}
		e.onDisconnect(ctx)
	})
}

// onDisconnect implements the Connection Manager's stream-down
// transition (§4.A): drop to DISCONNECTED, clear connectionId, close
// every waiting connection, pause every live checker, and schedule a
// reconnect. Container membership is untouched (invariant 2).
func (e *Executor) onDisconnect(ctx context.Context) {
	log := logger.G(ctx).WithField("connectionId", e.connectionID)
	log.Warn("Subscription stream disconnected")

	if e.streamCancel != nil {
		e.streamCancel()
	}
	e.state = disconnected
	e.connectionID = uuid.Nil
	if e.subscribeTimer != nil {
		e.subscribeTimer.Stop()
		e.subscribeTimer = nil
	}

	for _, c := range e.containers.all() {
		if c.waitConn != nil {
			if c.waitCancel != nil {
				c.waitCancel()
			}
			c.waitConn.Close() // nolint: errcheck
			c.waitConn = nil
		}
		if c.Checker != nil {
			c.Checker.Pause()
		}
		if c.HealthChecker != nil {
			c.HealthChecker.Pause()
		}
	}

	if e.shuttingDown {
		return
	}
	e.scheduleReconnect(ctx)
}
