package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client talks to a running daemon over its unix socket. Calls are
// serialized on one connection; it is safe for concurrent use.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	nextID uint64
}

// Dial connects to the daemon socket
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Call performs one request/response round trip. result may be nil when
// the caller only cares about success.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := &Request{ID: c.nextID, Method: method, Params: payload}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := writeFrame(c.conn, req); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	var resp Response
	if err := readFrame(c.conn, &resp); err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("response id %d does not match request id %d", resp.ID, req.ID)
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// CreateContainer spawns a workload container and returns its id
func (c *Client) CreateContainer(ctx context.Context, params *CreateContainerParams) (string, error) {
	var result CreateContainerResult
	if err := c.Call(ctx, MethodCreateContainer, params, &result); err != nil {
		return "", err
	}
	return result.ContainerID, nil
}

// ListContainers lists containers, optionally filtered by player and status
func (c *Client) ListContainers(ctx context.Context, playerID *int, status string) ([]ContainerInfo, error) {
	var result ListContainersResult
	if err := c.Call(ctx, MethodListContainers, &ListContainersParams{PlayerID: playerID, Status: status}, &result); err != nil {
		return nil, err
	}
	return result.Containers, nil
}

// InspectContainer returns one container's info
func (c *Client) InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error) {
	var info ContainerInfo
	if err := c.Call(ctx, MethodInspectContainer, &ContainerIDParams{ContainerID: containerID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StopContainer signals a container to stop; it returns without waiting
// for the workload to unwind
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	return c.Call(ctx, MethodStopContainer, &ContainerIDParams{ContainerID: containerID}, nil)
}

// RemoveContainer deletes a terminal container's record and logs
func (c *Client) RemoveContainer(ctx context.Context, containerID string, playerID int) error {
	return c.Call(ctx, MethodRemoveContainer, &ContainerIDParams{ContainerID: containerID, PlayerID: playerID}, nil)
}

// ContainerLogs reads a container's log lines
func (c *Client) ContainerLogs(ctx context.Context, params *ContainerLogsParams) ([]LogLine, error) {
	var result ContainerLogsResult
	if err := c.Call(ctx, MethodContainerLogs, params, &result); err != nil {
		return nil, err
	}
	return result.Logs, nil
}

// SendCommand dispatches a one-shot command through the daemon's mediator
// and returns the raw result
func (c *Client) SendCommand(ctx context.Context, params *SendCommandParams) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.Call(ctx, MethodSendCommand, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Ping checks daemon liveness
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var result PingResult
	if err := c.Call(ctx, MethodPing, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
