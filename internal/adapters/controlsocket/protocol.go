// Package controlsocket implements the daemon's local control surface: a
// hand-rolled JSON-RPC 2.0 server over a Unix domain socket, one request
// per connection, framed by closing the write half rather than by a length
// prefix. This replaces the teacher's gRPC daemon_server.go wiring — the
// teacher's protobuf-over-gRPC transport had no equivalent transport need
// here, since the control surface is a single local process boundary.
package controlsocket

import "encoding/json"

const jsonrpcVersion = "2.0"

// Request is a single JSON-RPC 2.0 call. ID is echoed verbatim in the
// response; notifications (no ID) are not used by this control surface.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is the full JSON-RPC 2.0 reply, written once and followed by
// closing the connection's write side.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// ResponseError mirrors the JSON-RPC 2.0 error object.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC 2.0 error codes, plus one daemon-specific code in the
// -32000..-32099 "server error" reserved band.
const (
	errCodeParseError     = -32700
	errCodeInvalidRequest = -32600
	errCodeMethodNotFound = -32601
	errCodeInvalidParams  = -32602
	errCodeInternalError  = -32603
	errCodeApplication    = -32000
)

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Error: &ResponseError{Code: code, Message: message}}
}

func resultResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

// Method names, exactly as named in the control socket method table.
const (
	MethodContainerCreate  = "container.create"
	MethodContainerStop    = "container.stop"
	MethodContainerInspect = "container.inspect"
	MethodContainerList    = "container.list"
	MethodContainerRemove  = "container.remove"
	MethodContainerLogs    = "container.logs"
	MethodDaemonHealth     = "daemon.health"
)

// HealthResult reports whether the daemon is accepting connections and how
// many containers are currently live in the supervisor.
type HealthResult struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	ActiveContainers int    `json:"active_containers"`
}

// CreateParams is the container.create request payload. ContainerType is
// the command_type tag (§9 tagged-variant convention); Config carries the
// workload-specific parameters, including an optional "ship_symbol" key
// that the server validates and assigns before the container is created.
type CreateParams struct {
	ContainerID   string                 `json:"container_id" validate:"required"`
	PlayerID      int                    `json:"player_id" validate:"required"`
	ContainerType string                 `json:"container_type" validate:"required"`
	Config        map[string]interface{} `json:"config"`
	RestartPolicy string                 `json:"restart_policy,omitempty"`
}

type CreateResult struct {
	ContainerID string `json:"container_id"`
	Status      string `json:"status"`
}

type StopParams struct {
	ContainerID string `json:"container_id" validate:"required"`
	PlayerID    int    `json:"player_id" validate:"required"`
}

type StopResult struct {
	ContainerID string `json:"container_id"`
	Status      string `json:"status"`
}

type InspectParams struct {
	ContainerID string `json:"container_id" validate:"required"`
	PlayerID    int    `json:"player_id" validate:"required"`
	LogLimit    int    `json:"log_limit,omitempty"`
}

type ContainerDescriptor struct {
	ID            string     `json:"id"`
	PlayerID      int        `json:"player_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	RestartPolicy string     `json:"restart_policy"`
	RestartCount  int        `json:"restart_count"`
	Config        string     `json:"config"`
	StartedAt     *string    `json:"started_at,omitempty"`
	StoppedAt     *string    `json:"stopped_at,omitempty"`
	ExitCode      *int       `json:"exit_code,omitempty"`
	ExitReason    string     `json:"exit_reason,omitempty"`
}

type LogLine struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

type InspectResult struct {
	ContainerDescriptor
	Logs []LogLine `json:"logs"`
}

type ListParams struct {
	PlayerID *int `json:"player_id,omitempty"`
}

type ListResult struct {
	Containers []ContainerDescriptor `json:"containers"`
}

type RemoveParams struct {
	ContainerID string `json:"container_id" validate:"required"`
	PlayerID    int    `json:"player_id" validate:"required"`
}

type RemoveResult struct {
	ContainerID string `json:"container_id"`
}

type LogsParams struct {
	ContainerID string  `json:"container_id" validate:"required"`
	PlayerID    int     `json:"player_id" validate:"required"`
	Limit       int     `json:"limit,omitempty"`
	Level       *string `json:"level,omitempty"`
	Since       *string `json:"since,omitempty"`
}

type LogsResult struct {
	Logs []LogLine `json:"logs"`
}
