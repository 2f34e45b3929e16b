package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/container"
)

const serverVersion = "0.1.0"

// Server answers IPC requests on a unix domain socket. Each connection is
// served by its own goroutine; workloads run in container goroutines, so
// the server stays responsive while every container is mid-sleep.
type Server struct {
	socketPath      string
	listener        net.Listener
	manager         *Manager
	sender          mediator.Sender
	registry        *CommandRegistry
	logger          *log.Logger
	shutdownTimeout time.Duration

	mu     sync.Mutex
	closed bool
	conns  sync.WaitGroup
}

func NewServer(
	socketPath string,
	manager *Manager,
	sender mediator.Sender,
	registry *CommandRegistry,
	logger *log.Logger,
	shutdownTimeout time.Duration,
) (*Server, error) {
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	// Owner-only: the socket grants full control over the fleet
	if err := os.Chmod(socketPath, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	return &Server{
		socketPath:      socketPath,
		listener:        listener,
		manager:         manager,
		sender:          sender,
		registry:        registry,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// SocketPath returns where the server listens
func (s *Server) SocketPath() string { return s.socketPath }

// Serve accepts connections until Shutdown closes the listener
func (s *Server) Serve() error {
	s.logger.Info().Str("socket", s.socketPath).Msg("daemon listening")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown stops every container, closes the listener, and waits for
// in-flight connections
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info().Msg("daemon shutting down")
	s.manager.StopAll(s.shutdownTimeout)
	s.listener.Close()
	s.conns.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug().Err(err).Msg("connection read failed")
			}
			return
		}

		resp := s.dispatch(context.Background(), &req)
		if err := writeFrame(conn, resp); err != nil {
			s.logger.Debug().Err(err).Msg("connection write failed")
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	result, err := s.call(ctx, req.Method, req.Params)
	if err != nil {
		return &Response{ID: req.ID, OK: false, Error: err.Error()}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return &Response{ID: req.ID, OK: false, Error: fmt.Sprintf("failed to encode result: %v", err)}
	}
	return &Response{ID: req.ID, OK: true, Result: payload}
}

func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case MethodCreateContainer:
		var p CreateContainerParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		containerID, err := s.manager.CreateContainer(ctx, &common.ContainerSpec{
			ContainerID:   p.ContainerID,
			PlayerID:      p.PlayerID,
			CommandType:   p.CommandType,
			Config:        p.Config,
			MaxIterations: p.MaxIterations,
			RestartPolicy: p.RestartPolicy,
		})
		if err != nil {
			return nil, err
		}
		return &CreateContainerResult{ContainerID: containerID}, nil

	case MethodListContainers:
		var p ListContainersParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		var status *container.ContainerStatus
		if p.Status != "" {
			st := container.ContainerStatus(p.Status)
			status = &st
		}
		containers, err := s.manager.List(ctx, p.PlayerID, status)
		if err != nil {
			return nil, err
		}
		infos := make([]ContainerInfo, 0, len(containers))
		for _, c := range containers {
			infos = append(infos, infoFromContainer(c))
		}
		return &ListContainersResult{Containers: infos}, nil

	case MethodInspectContainer:
		var p ContainerIDParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		c, err := s.manager.Get(ctx, p.ContainerID)
		if err != nil {
			return nil, err
		}
		info := infoFromContainer(c)
		return &info, nil

	case MethodStopContainer:
		var p ContainerIDParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		if err := s.manager.Stop(p.ContainerID); err != nil {
			return nil, err
		}
		return &StopContainerResult{ContainerID: p.ContainerID, Status: string(container.ContainerStatusStopped)}, nil

	case MethodRemoveContainer:
		var p ContainerIDParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		if err := s.manager.Remove(ctx, p.ContainerID, p.PlayerID); err != nil {
			return nil, err
		}
		return &StopContainerResult{ContainerID: p.ContainerID, Status: "removed"}, nil

	case MethodContainerLogs:
		var p ContainerLogsParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		entries, err := s.manager.Logs(ctx, p.ContainerID, container.LogFilter{
			Since: p.Since,
			Until: p.Until,
			Level: p.Level,
			Limit: p.Limit,
		})
		if err != nil {
			return nil, err
		}
		lines := make([]LogLine, 0, len(entries))
		for _, entry := range entries {
			lines = append(lines, LogLine{Timestamp: entry.Timestamp, Level: entry.Level, Message: entry.Message})
		}
		return &ContainerLogsResult{Logs: lines}, nil

	case MethodSendCommand:
		var p SendCommandParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		command, err := s.registry.Build(p.CommandType, p.Config, "", p.PlayerID)
		if err != nil {
			return nil, err
		}
		response, err := s.sender.Send(ctx, command)
		if err != nil {
			return nil, err
		}
		return &SendCommandResult{Result: response}, nil

	case MethodPing:
		return &PingResult{
			Status:           "ok",
			Version:          serverVersion,
			ActiveContainers: s.manager.ActiveCount(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func unmarshalParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func infoFromContainer(c *container.Container) ContainerInfo {
	commandType, _ := c.Config()["command_type"].(string)
	return ContainerInfo{
		ContainerID:      c.ID(),
		ContainerType:    string(c.Type()),
		PlayerID:         c.PlayerID(),
		Status:           string(c.Status()),
		CommandType:      commandType,
		CurrentIteration: c.CurrentIteration(),
		MaxIterations:    c.MaxIterations(),
		RestartCount:     c.RestartCount(),
		ExitCode:         c.ExitCode(),
		ExitReason:       c.ExitReason(),
		CreatedAt:        c.CreatedAt(),
		StartedAt:        c.StartedAt(),
		StoppedAt:        c.StoppedAt(),
		Metadata:         c.Metadata(),
	}
}
