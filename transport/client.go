// Package transport implements the HTTP client and event-stream decoder
// the executor's lifecycle engine treats as an external collaborator: a
// long-lived subscription stream decoded into api.Event values, and a
// small set of nested-container side-API calls (LAUNCH_NESTED_CONTAINER,
// WAIT_NESTED_CONTAINER, KILL_NESTED_CONTAINER) issued over independently
// managed HTTP connections.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hectorj2f/mesos-group-executor/api"
	"github.com/pkg/errors"
)

// AgentClient is the executor's view of the agent: it can open the
// subscription stream and mint independent side-channel connections.
type AgentClient interface {
	Subscribe(ctx context.Context, call api.Call) (Stream, error)
	NewConnection() Connection
	Send(ctx context.Context, call api.Call) error
}

// Stream is a decoded subscription stream. Events is closed when the
// underlying HTTP connection is lost or Close is called; a closed
// channel with no error pending means a clean disconnect.
type Stream interface {
	Events() <-chan api.Event
	Err() error
	Close() error
}

// Connection is one independent HTTP connection used for nested-container
// side-API calls. The wait/reaper opens one per task; the launch
// orchestrator opens a single one shared (pipelined) across every task in
// a group.
type Connection interface {
	LaunchNestedContainer(ctx context.Context, req api.LaunchNestedContainerRequest) error
	WaitNestedContainer(ctx context.Context, req api.WaitNestedContainerRequest) (*api.ExitStatus, error)
	KillNestedContainer(ctx context.Context, req api.KillNestedContainerRequest) error
	Close() error
}

// StatusError is returned when the agent responds to a call with an
// unexpected status. A side-API call's 503 is also reported as a
// StatusError; Unavailable tells that case apart.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent returned status %d: %s", e.StatusCode, e.Body)
}

// Unavailable reports whether err represents a transient
// SERVICE_UNAVAILABLE response, which the wait/reaper retries identically
// to a network failure.
func Unavailable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
}

// Client is the default AgentClient, speaking HTTP against a Mesos-v1
// style agent API endpoint.
type Client struct {
	AgentURL            *url.URL
	AuthorizationHeader string
	Codec               api.Codec
}

// New constructs a Client against the given agent API endpoint.
func New(agentURL *url.URL, authorizationHeader string) *Client {
	return &Client{
		AgentURL:            agentURL,
		AuthorizationHeader: authorizationHeader,
		Codec:               api.JSONCodec{},
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", api.ContentType)
	req.Header.Set("Accept", api.ContentType)
	if c.AuthorizationHeader != "" {
		req.Header.Set("Authorization", c.AuthorizationHeader)
	}
}

// Subscribe opens the subscription stream and starts decoding Events off
// it in a background goroutine.
func (c *Client) Subscribe(ctx context.Context, call api.Call) (Stream, error) {
	var body bytes.Buffer
	if err := c.Codec.Encode(&body, call); err != nil {
		return nil, errors.Wrap(err, "encoding subscribe call")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AgentURL.String(), &body)
	if err != nil {
		return nil, errors.Wrap(err, "building subscribe request")
	}
	c.setHeaders(req)

	httpClient := &http.Client{Timeout: 0}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "connecting subscription stream")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close() // nolint: errcheck
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	s := &stream{
		resp:   resp,
		events: make(chan api.Event, 16),
		codec:  c.Codec,
	}
	go s.run()
	return s, nil
}

// Send posts a standalone Call (e.g. UPDATE) to the agent's main API
// endpoint, outside the subscription stream itself: the real platform's
// long-poll response body is unidirectional, so calls made after
// SUBSCRIBE go out as independent POSTs against the same URL.
func (c *Client) Send(ctx context.Context, call api.Call) error {
	var body bytes.Buffer
	if err := c.Codec.Encode(&body, call); err != nil {
		return errors.Wrap(err, "encoding call")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AgentURL.String(), &body)
	if err != nil {
		return errors.Wrap(err, "building call request")
	}
	c.setHeaders(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint: errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}

type stream struct {
	resp   *http.Response
	events chan api.Event
	codec  api.Codec
	err    error
}

// run decodes newline-delimited Event records off the response body
// until it is closed or an error occurs.
func (s *stream) run() {
	defer close(s.events)
	scanner := bufio.NewScanner(s.resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev api.Event
		if err := s.codec.Decode(bytes.NewReader(line), &ev); err != nil {
			s.err = errors.Wrap(err, "decoding event")
			return
		}
		s.events <- ev
	}
	if err := scanner.Err(); err != nil {
		s.err = err
	}
}

func (s *stream) Events() <-chan api.Event { return s.events }
func (s *stream) Err() error               { return s.err }
func (s *stream) Close() error             { return s.resp.Body.Close() }

// NewConnection opens a fresh HTTP connection for nested-container
// side-API calls. Each Connection owns its own Transport with a single
// host connection slot so that, per spec, a group's LAUNCH_NESTED_CONTAINER
// calls are pipelined over one connection. Close releases only idle
// connections; a request still in flight ends when its context is canceled.
func (c *Client) NewConnection() Connection {
	return &connection{
		client: c,
		httpClient: &http.Client{
			Transport: &http.Transport{MaxConnsPerHost: 1},
		},
	}
}

type connection struct {
	client     *Client
	httpClient *http.Client
}

func (conn *connection) do(ctx context.Context, path string, reqBody, respBody interface{}) error {
	var buf bytes.Buffer
	if err := conn.client.Codec.Encode(&buf, reqBody); err != nil {
		return errors.Wrap(err, "encoding request")
	}

	u := *conn.client.AgentURL
	u.Path = joinPath(u.Path, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	conn.client.setHeaders(req)

	resp, err := conn.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint: errcheck

	if resp.StatusCode == http.StatusServiceUnavailable {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if respBody == nil {
		return nil
	}
	return conn.client.Codec.Decode(resp.Body, respBody)
}

func (conn *connection) LaunchNestedContainer(ctx context.Context, req api.LaunchNestedContainerRequest) error {
	return conn.do(ctx, "LAUNCH_NESTED_CONTAINER", req, nil)
}

func (conn *connection) WaitNestedContainer(ctx context.Context, req api.WaitNestedContainerRequest) (*api.ExitStatus, error) {
	var resp api.WaitNestedContainerResponse
	if err := conn.do(ctx, "WAIT_NESTED_CONTAINER", req, &resp); err != nil {
		return nil, err
	}
	return resp.WaitNestedContainer.ExitStatus, nil
}

func (conn *connection) KillNestedContainer(ctx context.Context, req api.KillNestedContainerRequest) error {
	return conn.do(ctx, "KILL_NESTED_CONTAINER", req, nil)
}

func (conn *connection) Close() error {
	conn.httpClient.CloseIdleConnections()
	return nil
}

func joinPath(base, elem string) string {
	if base == "" {
		return "/" + elem
	}
	if base[len(base)-1] == '/' {
		return base + elem
	}
	return base + "/" + elem
}
