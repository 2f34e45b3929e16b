package daemon

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Wire framing: each message is a 4-byte big-endian length followed by a
// JSON payload. Requests and responses are correlated by id so a client
// can pipeline calls over one connection.

// maxFrameSize bounds a single message; anything larger is a protocol error
const maxFrameSize = 4 << 20

// IPC method names
const (
	MethodCreateContainer  = "create_container"
	MethodListContainers   = "list_containers"
	MethodInspectContainer = "inspect_container"
	MethodStopContainer    = "stop_container"
	MethodRemoveContainer  = "remove_container"
	MethodSendCommand      = "send_command"
	MethodContainerLogs    = "container_logs"
	MethodPing             = "ping"
)

// Request is one client call
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the request with the same id
type Response struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// CreateContainerParams spawns a new workload container. ContainerID is
// optional; the daemon generates one when empty.
type CreateContainerParams struct {
	ContainerID   string                 `json:"container_id,omitempty"`
	PlayerID      int                    `json:"player_id"`
	CommandType   string                 `json:"command_type"`
	Config        map[string]interface{} `json:"config"`
	MaxIterations int                    `json:"max_iterations"`
	RestartPolicy string                 `json:"restart_policy,omitempty"`
}

type CreateContainerResult struct {
	ContainerID string `json:"container_id"`
}

type ListContainersParams struct {
	PlayerID *int   `json:"player_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

type ListContainersResult struct {
	Containers []ContainerInfo `json:"containers"`
}

// ContainerInfo is the wire view of one container
type ContainerInfo struct {
	ContainerID      string                 `json:"container_id"`
	ContainerType    string                 `json:"container_type"`
	PlayerID         int                    `json:"player_id"`
	Status           string                 `json:"status"`
	CommandType      string                 `json:"command_type,omitempty"`
	CurrentIteration int                    `json:"current_iteration"`
	MaxIterations    int                    `json:"max_iterations"`
	RestartCount     int                    `json:"restart_count"`
	ExitCode         *int                   `json:"exit_code,omitempty"`
	ExitReason       string                 `json:"exit_reason,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	StartedAt        *time.Time             `json:"started_at,omitempty"`
	StoppedAt        *time.Time             `json:"stopped_at,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type ContainerIDParams struct {
	ContainerID string `json:"container_id"`
	PlayerID    int    `json:"player_id"`
}

type StopContainerResult struct {
	ContainerID string `json:"container_id"`
	Status      string `json:"status"`
}

type ContainerLogsParams struct {
	ContainerID string     `json:"container_id"`
	PlayerID    int        `json:"player_id"`
	Since       *time.Time `json:"since,omitempty"`
	Until       *time.Time `json:"until,omitempty"`
	Level       string     `json:"level,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

type ContainerLogsResult struct {
	Logs []LogLine `json:"logs"`
}

// SendCommandParams dispatches a one-shot command through the mediator
// without a supervising container. The config is interpreted by the same
// command registry that containers use.
type SendCommandParams struct {
	CommandType string                 `json:"command_type"`
	PlayerID    int                    `json:"player_id"`
	Config      map[string]interface{} `json:"config"`
}

type SendCommandResult struct {
	Result interface{} `json:"result"`
}

type PingResult struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	ActiveContainers int    `json:"active_containers"`
}

// writeFrame marshals v and writes it as one length-prefixed frame
func writeFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", len(payload))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// readFrame reads one length-prefixed frame and unmarshals it into v
func readFrame(r io.Reader, v interface{}) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}
