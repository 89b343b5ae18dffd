package executor

import "context"

// TaskSnapshot is a point-in-time, read-only view of one live task,
// safe to hand to the admin HTTP surface outside the actor goroutine.
type TaskSnapshot struct {
	TaskID      string `json:"task_id"`
	ContainerID string `json:"container_id"`
	State       string `json:"state"`
	Killing     bool   `json:"killing"`
	Acknowledged bool  `json:"acknowledged"`
}

// Snapshot is a point-in-time view of the whole executor, returned by
// Snapshot for the debug/admin surface, §4.I / §6.
type Snapshot struct {
	ConnState string         `json:"conn_state"`
	Launched  bool           `json:"launched"`
	ShuttingDown bool        `json:"shutting_down"`
	Unhealthy bool           `json:"unhealthy"`
	Tasks     []TaskSnapshot `json:"tasks"`
}

// Snapshot round-trips through the actor's mailbox to read a consistent
// view of its state from any goroutine (e.g. the admin HTTP server).
func (e *Executor) Snapshot(ctx context.Context) (Snapshot, error) {
	result := make(chan Snapshot, 1)
	e.post(func() {
		snap := Snapshot{
			ConnState:    e.state.String(),
			Launched:     e.launched,
			ShuttingDown: e.shuttingDown,
			Unhealthy:    e.unhealthy,
		}
		for _, c := range e.containers.all() {
			snap.Tasks = append(snap.Tasks, TaskSnapshot{
				TaskID:       c.TaskID,
				ContainerID:  c.ContainerID.Value,
				State:        string(c.LastTaskStatus.State),
				Killing:      c.Killing,
				Acknowledged: c.Acknowledged,
			})
		}
		result <- snap
	})

	select {
	case snap := <-result:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-e.stopped:
		return Snapshot{}, context.Canceled
	}
}
