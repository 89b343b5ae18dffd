package executor

import (
	"context"
	"sync"

	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/hectorj2f/mesos-group-executor/transport"
)

// fakeStream is a controllable transport.Stream: the test pushes Events
// onto it directly and closes it to simulate a disconnect.
type fakeStream struct {
	events chan api.Event
	err    error
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan api.Event, 16)}
}

func (s *fakeStream) Events() <-chan api.Event { return s.events }
func (s *fakeStream) Err() error               { return s.err }
func (s *fakeStream) Close() error             { return nil }

// waitResult is the scripted response for one WAIT_NESTED_CONTAINER call.
type waitResult struct {
	exitStatus *api.ExitStatus
	err        error
}

// fakeClient is a scriptable transport.AgentClient: Subscribe always
// hands back the single stream the test controls, and each Connection
// it mints resolves WaitNestedContainer from a per-containerID channel
// the test populates, so the wait/reaper's long-poll can be driven
// deterministically instead of racing real HTTP.
type fakeClient struct {
	mu sync.Mutex

	stream *fakeStream

	waitResults map[string]chan waitResult

	launchCalls []api.LaunchNestedContainerRequest
	killCalls   []api.KillNestedContainerRequest
	updateCalls []api.TaskStatus
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		stream:      newFakeStream(),
		waitResults: make(map[string]chan waitResult),
	}
}

func (c *fakeClient) waitChan(containerID string) chan waitResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.waitResults[containerID]
	if !ok {
		ch = make(chan waitResult, 1)
		c.waitResults[containerID] = ch
	}
	return ch
}

func (c *fakeClient) Subscribe(ctx context.Context, call api.Call) (transport.Stream, error) {
	return c.stream, nil
}

func (c *fakeClient) NewConnection() transport.Connection {
	return &fakeConnection{client: c}
}

func (c *fakeClient) Send(ctx context.Context, call api.Call) error {
	if call.Update != nil {
		c.mu.Lock()
		c.updateCalls = append(c.updateCalls, call.Update.Status)
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeClient) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updateCalls)
}

func (c *fakeClient) lastUpdate() api.TaskStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateCalls[len(c.updateCalls)-1]
}

func (c *fakeClient) killCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.killCalls)
}

type fakeConnection struct {
	client *fakeClient
}

func (conn *fakeConnection) LaunchNestedContainer(ctx context.Context, req api.LaunchNestedContainerRequest) error {
	conn.client.mu.Lock()
	conn.client.launchCalls = append(conn.client.launchCalls, req)
	conn.client.mu.Unlock()
	return nil
}

func (conn *fakeConnection) WaitNestedContainer(ctx context.Context, req api.WaitNestedContainerRequest) (*api.ExitStatus, error) {
	ch := conn.client.waitChan(req.ContainerID.Value)
	select {
	case result := <-ch:
		return result.exitStatus, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (conn *fakeConnection) KillNestedContainer(ctx context.Context, req api.KillNestedContainerRequest) error {
	conn.client.mu.Lock()
	conn.client.killCalls = append(conn.client.killCalls, req)
	conn.client.mu.Unlock()
	return nil
}

func (conn *fakeConnection) Close() error { return nil }
