package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSubscribeDecodesEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)
		require.NoError(t, enc.Encode(api.Event{Type: api.EventSubscribed, Subscribed: &api.Subscribed{
			ExecutorContainerID: api.ContainerID{Value: "exec-container"},
		}}))
		if flusher != nil {
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := New(mustParseURL(t, server.URL), "")

	stream, err := client.Subscribe(context.Background(), api.Call{Type: api.CallSubscribe})
	require.NoError(t, err)
	defer stream.Close() // nolint: errcheck

	select {
	case ev := <-stream.Events():
		assert.Equal(t, api.EventSubscribed, ev.Type)
		require.NotNil(t, ev.Subscribed)
		assert.Equal(t, "exec-container", ev.Subscribed.ExecutorContainerID.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SUBSCRIBED event")
	}
}

func TestConnectionLaunchWaitKillNestedContainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "LAUNCH_NESTED_CONTAINER"):
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "WAIT_NESTED_CONTAINER"):
			code := 0
			resp := api.WaitNestedContainerResponse{}
			resp.WaitNestedContainer.ExitStatus = &api.ExitStatus{ExitCode: &code}
			w.Header().Set("Content-Type", api.ContentType)
			_ = json.NewEncoder(w).Encode(resp) // nolint: errcheck
		case strings.HasSuffix(r.URL.Path, "KILL_NESTED_CONTAINER"):
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(mustParseURL(t, server.URL), "")
	conn := client.NewConnection()
	defer conn.Close() // nolint: errcheck

	ctx := context.Background()
	containerID := api.ContainerID{Value: "c1"}

	require.NoError(t, conn.LaunchNestedContainer(ctx, api.LaunchNestedContainerRequest{ContainerID: containerID}))

	exitStatus, err := conn.WaitNestedContainer(ctx, api.WaitNestedContainerRequest{ContainerID: containerID})
	require.NoError(t, err)
	require.NotNil(t, exitStatus)
	assert.True(t, exitStatus.Successful())

	require.NoError(t, conn.KillNestedContainer(ctx, api.KillNestedContainerRequest{ContainerID: containerID, Signal: api.SignalTerm}))
}

func TestUnavailableClassifiesServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(mustParseURL(t, server.URL), "")
	conn := client.NewConnection()
	defer conn.Close() // nolint: errcheck

	_, err := conn.WaitNestedContainer(context.Background(), api.WaitNestedContainerRequest{})
	require.Error(t, err)
	assert.True(t, Unavailable(err))
}

func TestSendPostsUpdateCall(t *testing.T) {
	received := make(chan api.Call, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call api.Call
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		received <- call
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(mustParseURL(t, server.URL), "")
	err := client.Send(context.Background(), api.Call{
		Type:   api.CallUpdate,
		Update: &api.Update{Status: api.TaskStatus{TaskID: "task-1", State: api.TaskRunning}},
	})
	require.NoError(t, err)

	select {
	case call := <-received:
		assert.Equal(t, api.CallUpdate, call.Type)
		require.NotNil(t, call.Update)
		assert.Equal(t, "task-1", call.Update.Status.TaskID)
	case <-time.After(time.Second):
		t.Fatal("server never received the UPDATE call")
	}
}
