// Package api defines the wire-level message types exchanged between the
// executor and the agent: the subscription stream's Event/Call envelope,
// and the side-channel nested-container calls (LAUNCH_NESTED_CONTAINER,
// WAIT_NESTED_CONTAINER, KILL_NESTED_CONTAINER). Encoding is pluggable
// behind the Codec interface (see codec.go); these types only describe
// shape, not wire format.
package api

import (
	"strconv"

	"github.com/google/uuid"
)

// EventType identifies the kind of Event sent by the agent on the
// subscription stream.
type EventType string

const (
	EventSubscribed   EventType = "SUBSCRIBED"
	EventLaunch       EventType = "LAUNCH"
	EventLaunchGroup  EventType = "LAUNCH_GROUP"
	EventKill         EventType = "KILL"
	EventAcknowledged EventType = "ACKNOWLEDGED"
	EventShutdown     EventType = "SHUTDOWN"
	EventMessage      EventType = "MESSAGE"
	EventError        EventType = "ERROR"
	EventUnknown      EventType = "UNKNOWN"
)

// CallType identifies the kind of Call sent by the executor to the
// agent's API endpoint.
type CallType string

const (
	CallSubscribe CallType = "SUBSCRIBE"
	CallUpdate    CallType = "UPDATE"
)

// Event is a decoded message received from the agent on the subscription
// stream.
type Event struct {
	Type          EventType      `json:"type"`
	Subscribed    *Subscribed    `json:"subscribed,omitempty"`
	LaunchGroup   *LaunchGroup   `json:"launch_group,omitempty"`
	Kill          *Kill          `json:"kill,omitempty"`
	Acknowledged  *Acknowledged  `json:"acknowledged,omitempty"`
	Message       *Message       `json:"message,omitempty"`
	Error         *Error         `json:"error,omitempty"`
}

// Subscribed carries the information the agent assigns once a
// subscription is accepted.
type Subscribed struct {
	FrameworkInfo       FrameworkInfo `json:"framework_info"`
	ExecutorContainerID ContainerID   `json:"executor_container_id"`
}

// FrameworkInfo describes scheduler-advertised capabilities relevant to
// the executor.
type FrameworkInfo struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the framework advertised the named
// capability (e.g. "TASK_KILLING_STATE").
func (f FrameworkInfo) HasCapability(name string) bool {
	for _, c := range f.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// LaunchGroup carries a task group to launch as nested containers.
type LaunchGroup struct {
	TaskGroup TaskGroupInfo `json:"task_group"`
}

// Kill requests termination of a single task, optionally overriding its
// kill policy.
type Kill struct {
	TaskID     string      `json:"task_id"`
	KillPolicy *KillPolicy `json:"kill_policy,omitempty"`
}

// Acknowledged confirms the agent received and durably recorded a status
// update identified by UUID.
type Acknowledged struct {
	TaskID string    `json:"task_id"`
	UUID   uuid.UUID `json:"uuid"`
}

// Message is an opaque framework message; the executor ignores it.
type Message struct {
	Data []byte `json:"data"`
}

// Error carries an error description pushed by the agent.
type Error struct {
	Message string `json:"message"`
}

// Call is a message sent by the executor to the agent's API endpoint:
// SUBSCRIBE opens the subscription stream, and later calls such as
// UPDATE are posted separately.
type Call struct {
	Type       CallType    `json:"type"`
	FrameworkID string     `json:"framework_id"`
	ExecutorID string      `json:"executor_id"`
	Subscribe  *Subscribe  `json:"subscribe,omitempty"`
	Update     *Update     `json:"update,omitempty"`
}

// Subscribe is the payload of a SUBSCRIBE call: every unacknowledged
// update (for replay of acknowledgements) and every not-yet-acknowledged
// task's TaskInfo (for replay of tasks the agent may not know about).
type Subscribe struct {
	UnacknowledgedUpdates []TaskStatus `json:"unacknowledged_updates"`
	UnacknowledgedTasks   []TaskInfo   `json:"unacknowledged_tasks"`
}

// Update is the payload of an UPDATE call.
type Update struct {
	Status TaskStatus `json:"status"`
}

// TaskGroupInfo is the full set of tasks launched atomically together.
type TaskGroupInfo struct {
	Tasks []TaskInfo `json:"tasks"`
}

// TaskInfo is the task specification as launched; fields mirror the
// subset of the nested-container launch contract the executor acts on.
type TaskInfo struct {
	TaskID       string        `json:"task_id"`
	Command      *CommandInfo  `json:"command,omitempty"`
	Container    *ContainerInfo `json:"container,omitempty"`
	Resources    []Resource    `json:"resources,omitempty"`
	Check        *CheckInfo    `json:"check,omitempty"`
	HealthCheck  *HealthCheckInfo `json:"health_check,omitempty"`
	KillPolicy   *KillPolicy   `json:"kill_policy,omitempty"`
}

// CommandInfo is the process to run inside the nested container.
type CommandInfo struct {
	Value       string            `json:"value"`
	Arguments   []string          `json:"arguments,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// ContainerInfo is the container-level spec (image, volumes, type) a
// task may carry.
type ContainerInfo struct {
	Type    string   `json:"type"`
	Volumes []Volume `json:"volumes,omitempty"`
	Image   string   `json:"image,omitempty"`
}

// Volume is a single mount inside a nested container.
type Volume struct {
	ContainerPath string `json:"container_path"`
	Mode          string `json:"mode,omitempty"`
	Source        *VolumeSource `json:"source,omitempty"`
}

// VolumeSource identifies where a volume's backing storage comes from.
type VolumeSource struct {
	Type        string `json:"type"`
	SandboxPath *SandboxPathSource `json:"sandbox_path,omitempty"`
}

// SandboxPathSource shares a path from an ancestor container's sandbox.
type SandboxPathSource struct {
	Type string `json:"type"` // "PARENT"
	Path string `json:"path"`
}

// Resource is a single scalar/disk resource allocation on a task.
type Resource struct {
	Name string     `json:"name"`
	Disk *DiskInfo  `json:"disk,omitempty"`
}

// DiskInfo describes a disk resource; Volume is set when the disk backs
// a container volume (triggers the SANDBOX_PATH volume sharing in the
// launch orchestrator).
type DiskInfo struct {
	Volume *Volume `json:"volume,omitempty"`
}

// KillPolicy governs the grace period between TERM and KILL.
type KillPolicy struct {
	GracePeriod DurationSeconds `json:"grace_period"`
}

// DurationSeconds is a wire duration expressed in fractional seconds,
// with explicit presence tracked by the embedding *KillPolicy pointer
// rather than a magic zero value.
type DurationSeconds float64

// CheckInfo describes a configured liveness/readiness check.
type CheckInfo struct {
	Type    string       `json:"type"` // COMMAND, HTTP, TCP
	Command *CommandInfo `json:"command,omitempty"`
	HTTP    *HTTPCheckInfo `json:"http,omitempty"`
	TCP     *TCPCheckInfo  `json:"tcp,omitempty"`
}

// HTTPCheckInfo is an HTTP-based check target.
type HTTPCheckInfo struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

// TCPCheckInfo is a TCP-connect check target.
type TCPCheckInfo struct {
	Port int `json:"port"`
}

// HealthCheckInfo describes a configured health check, distinct from
// Check in that its failures can request the task be killed.
type HealthCheckInfo struct {
	Type    string       `json:"type"`
	Command *CommandInfo `json:"command,omitempty"`
	HTTP    *HTTPCheckInfo `json:"http,omitempty"`
	TCP     *TCPCheckInfo  `json:"tcp,omitempty"`
}

// ContainerID identifies a nested container; Parent is set for every
// container except the executor's own top-level container.
type ContainerID struct {
	Value  string       `json:"value"`
	Parent *ContainerID `json:"parent,omitempty"`
}

// TaskState is the lifecycle state carried on a TaskStatus.
type TaskState string

const (
	TaskStarting  TaskState = "TASK_STARTING"
	TaskRunning   TaskState = "TASK_RUNNING"
	TaskFinished  TaskState = "TASK_FINISHED"
	TaskFailed    TaskState = "TASK_FAILED"
	TaskKilled    TaskState = "TASK_KILLED"
	TaskKilling   TaskState = "TASK_KILLING"
	TaskLost      TaskState = "TASK_LOST"
)

// IsTerminal reports whether s ends a task's update sequence.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskFinished, TaskFailed, TaskKilled, TaskLost:
		return true
	default:
		return false
	}
}

// Reason annotates why a status update was produced.
type Reason string

const (
	ReasonTaskCheckStatusUpdated       Reason = "REASON_TASK_CHECK_STATUS_UPDATED"
	ReasonTaskHealthCheckStatusUpdated Reason = "REASON_TASK_HEALTH_CHECK_STATUS_UPDATED"
)

// Source identifies who produced a status update.
const SourceExecutor = "SOURCE_EXECUTOR"

// TaskStatus is a single lifecycle transition forwarded to the agent.
type TaskStatus struct {
	TaskID           string      `json:"task_id"`
	State            TaskState   `json:"state"`
	Message          string      `json:"message,omitempty"`
	UUID             uuid.UUID   `json:"uuid"`
	Timestamp        float64     `json:"timestamp"`
	ExecutorID       string      `json:"executor_id"`
	Source           string      `json:"source"`
	Reason           Reason      `json:"reason,omitempty"`
	ContainerStatus  ContainerStatus `json:"container_status"`
	CheckStatus      *CheckStatus    `json:"check_status,omitempty"`
	Healthy          *bool           `json:"healthy,omitempty"`
}

// ContainerStatus pins a status update to the container it describes.
type ContainerStatus struct {
	ContainerID ContainerID `json:"container_id"`
}

// CheckStatus carries the latest result of a task's configured check;
// Command/HTTP/TCP bodies are populated only once the check has run at
// least once, but the correctly-typed empty body is sent as a
// placeholder from the moment a task is launched.
type CheckStatus struct {
	Type    string           `json:"type"`
	Command *CommandCheckStatus `json:"command,omitempty"`
	HTTP    *HTTPCheckStatus    `json:"http,omitempty"`
	TCP     *TCPCheckStatus     `json:"tcp,omitempty"`
}

// CommandCheckStatus is the result of a COMMAND check.
type CommandCheckStatus struct {
	ExitCode *int `json:"exit_code,omitempty"`
}

// HTTPCheckStatus is the result of an HTTP check.
type HTTPCheckStatus struct {
	StatusCode *int `json:"status_code,omitempty"`
}

// TCPCheckStatus is the result of a TCP check.
type TCPCheckStatus struct {
	Succeeded *bool `json:"succeeded,omitempty"`
}

// HealthStatus is delivered by a HealthChecker callback.
type HealthStatus struct {
	Healthy  bool `json:"healthy"`
	KillTask bool `json:"kill_task"`
}

// Signal names used with KillNestedContainer.
type Signal string

const (
	SignalTerm Signal = "SIGTERM"
	SignalKill Signal = "SIGKILL"
)

// LaunchNestedContainerRequest launches one nested container.
type LaunchNestedContainerRequest struct {
	ContainerID ContainerID    `json:"container_id"`
	Command     *CommandInfo   `json:"command,omitempty"`
	Container   *ContainerInfo `json:"container,omitempty"`
}

// WaitNestedContainerRequest long-polls for a nested container's exit.
type WaitNestedContainerRequest struct {
	ContainerID ContainerID `json:"container_id"`
}

// WaitNestedContainerResponse carries the exit status once the child
// has terminated.
type WaitNestedContainerResponse struct {
	WaitNestedContainer struct {
		ExitStatus *ExitStatus `json:"exit_status,omitempty"`
	} `json:"wait_nested_container"`
}

// ExitStatus represents either a normal exit code or termination by
// signal; exactly one of ExitCode/Signal must be set. Any other shape
// is a protocol violation (spec §4.E final bullet).
type ExitStatus struct {
	ExitCode *int    `json:"exit_code,omitempty"`
	Signal   *string `json:"signal,omitempty"`
}

// Successful reports whether this exit status represents a clean exit,
// per the platform's exit-code predicate: code zero, no signal.
func (e ExitStatus) Successful() bool {
	return e.ExitCode != nil && *e.ExitCode == 0
}

// String renders the exit status the way it would be reported in a
// human-readable task message.
func (e ExitStatus) String() string {
	switch {
	case e.ExitCode != nil:
		return "exited with status " + strconv.Itoa(*e.ExitCode)
	case e.Signal != nil:
		return "terminated by signal " + *e.Signal
	default:
		return "unknown exit status"
	}
}

// KillNestedContainerRequest sends a signal to a nested container.
type KillNestedContainerRequest struct {
	ContainerID ContainerID `json:"container_id"`
	Signal      Signal      `json:"signal"`
}
