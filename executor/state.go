// Package executor implements the event-driven lifecycle engine: the
// state machine that subscribes to the agent, launches a task group as
// nested containers, waits on each child's exit, forwards status
// updates, enforces task-group fate sharing, and drives graceful kill
// and shutdown. See spec.md §§2-5.
package executor

import (
	"context"
	"time"

	"github.com/Netflix/metrics-client-go/metrics"
	"github.com/google/uuid"
	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/checks"
	"github.com/hectorj2f/mesos-group-executor/config"
	"github.com/hectorj2f/mesos-group-executor/transport"
)

// connState is the executor's connection state, §3.
type connState int

const (
	disconnected connState = iota
	connected
	subscribed
)

func (s connState) String() string {
	switch s {
	case disconnected:
		return "DISCONNECTED"
	case connected:
		return "CONNECTED"
	case subscribed:
		return "SUBSCRIBED"
	default:
		return "UNKNOWN"
	}
}

// Container is the in-memory record for one launched task, §3.
type Container struct {
	TaskID      string
	ContainerID api.ContainerID
	TaskInfo    api.TaskInfo
	TaskGroup   api.TaskGroupInfo

	LastTaskStatus api.TaskStatus

	Checker       checks.Checker
	HealthChecker checks.HealthChecker

	waitConn   transport.Connection
	waitCancel context.CancelFunc

	Acknowledged     bool
	Killing          bool
	KillingTaskGroup bool

	escalateTimer *time.Timer
}

// orderedContainers is an insertion-ordered map from task ID to
// *Container (invariant 1: membership tracks liveness).
type orderedContainers struct {
	order []string
	byID  map[string]*Container
}

func newOrderedContainers() *orderedContainers {
	return &orderedContainers{byID: make(map[string]*Container)}
}

func (o *orderedContainers) put(c *Container) {
	if _, exists := o.byID[c.TaskID]; !exists {
		o.order = append(o.order, c.TaskID)
	}
	o.byID[c.TaskID] = c
}

func (o *orderedContainers) get(taskID string) (*Container, bool) {
	c, ok := o.byID[taskID]
	return c, ok
}

func (o *orderedContainers) delete(taskID string) {
	if _, ok := o.byID[taskID]; !ok {
		return
	}
	delete(o.byID, taskID)
	for i, id := range o.order {
		if id == taskID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *orderedContainers) len() int { return len(o.order) }

func (o *orderedContainers) all() []*Container {
	out := make([]*Container, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.byID[id])
	}
	return out
}

// orderedUpdates is an insertion-ordered map from update UUID to the
// TaskStatus sent under it (invariant 4: present until acknowledged).
type orderedUpdates struct {
	order []uuid.UUID
	byID  map[uuid.UUID]api.TaskStatus
}

func newOrderedUpdates() *orderedUpdates {
	return &orderedUpdates{byID: make(map[uuid.UUID]api.TaskStatus)}
}

func (o *orderedUpdates) put(status api.TaskStatus) {
	if _, exists := o.byID[status.UUID]; !exists {
		o.order = append(o.order, status.UUID)
	}
	o.byID[status.UUID] = status
}

func (o *orderedUpdates) delete(id uuid.UUID) bool {
	if _, ok := o.byID[id]; !ok {
		return false
	}
	delete(o.byID, id)
	for i, existing := range o.order {
		if existing == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

func (o *orderedUpdates) all() []api.TaskStatus {
	out := make([]api.TaskStatus, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.byID[id])
	}
	return out
}

// Executor owns all mutable lifecycle state. Every field is touched only
// from the single mailbox-draining goroutine started by Run; see
// actor.go.
type Executor struct {
	cfg     config.Config
	client  transport.AgentClient
	metrics metrics.Reporter

	newChecker       func(taskID string, info api.CheckInfo, cb checks.CheckCallback) (checks.Checker, error)
	newHealthChecker func(taskID string, info api.HealthCheckInfo, cb checks.HealthCallback) (checks.HealthChecker, error)

	state        connState
	connectionID uuid.UUID
	streamCancel context.CancelFunc

	frameworkInfo       api.FrameworkInfo
	executorContainerID api.ContainerID

	launched     bool
	shuttingDown bool
	unhealthy    bool

	unacknowledgedUpdates *orderedUpdates
	containers            *orderedContainers

	subscribeTimer *time.Timer

	mailbox chan func()
	stopped chan struct{}
}

// New constructs an Executor ready to Run.
func New(cfg config.Config, client transport.AgentClient, m metrics.Reporter) *Executor {
	if m == nil {
		m = metrics.Discard
	}
	return &Executor{
		cfg:                   cfg,
		client:                client,
		metrics:               m,
		newChecker:            checks.NewChecker,
		newHealthChecker:      checks.NewHealthChecker,
		state:                 disconnected,
		unacknowledgedUpdates: newOrderedUpdates(),
		containers:            newOrderedContainers(),
		mailbox:               make(chan func(), 64),
		stopped:               make(chan struct{}),
	}
}

// post enqueues fn to run on the actor goroutine. Safe to call from any
// goroutine (timers, HTTP completions, check callbacks).
func (e *Executor) post(fn func()) {
	select {
	case e.mailbox <- fn:
	case <-e.stopped:
	}
}
