package controlsocket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/internal/adapters/supervisor"
	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/internal/domain/navigation"
	"github.com/acdtunes/fleetd/internal/domain/shared"
)

const socketMode = 0660

// WorkFactory builds the work function a newly created container runs, from
// its declared container_type tag and caller-supplied config. Implemented by
// internal/application/workload, kept as an interface here so the control
// server does not import the workload package's full handler surface.
type WorkFactory interface {
	Build(containerType string, playerID int, config map[string]interface{}) (supervisor.Work, container.ContainerType, error)
}

// Server is the daemon's JSON-RPC 2.0 control surface: one request per
// connection, framed by the client closing its write half, matching
// spec.md §4.G/§6 exactly.
type Server struct {
	listener   net.Listener
	socketPath string

	supervisor  *supervisor.Supervisor
	workFactory WorkFactory
	containerRepo *persistence.ContainerRepositoryGORM
	logRepo       persistence.ContainerLogRepository
	shipRepo      navigation.ShipRepository

	validate *validator.Validate
	logger   zerolog.Logger

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer binds a Unix domain socket at socketPath, creating its parent
// directory if missing and unlinking any stale socket file left behind by a
// prior run.
func NewServer(
	socketPath string,
	sup *supervisor.Supervisor,
	workFactory WorkFactory,
	containerRepo *persistence.ContainerRepositoryGORM,
	logRepo persistence.ContainerLogRepository,
	shipRepo navigation.ShipRepository,
	logger zerolog.Logger,
) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0750); err != nil {
		return nil, fmt.Errorf("controlsocket: creating socket directory: %w", err)
	}
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("controlsocket: removing stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("controlsocket: listening on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, socketMode); err != nil {
		listener.Close()
		return nil, fmt.Errorf("controlsocket: setting socket permissions: %w", err)
	}

	return &Server{
		listener:      listener,
		socketPath:    socketPath,
		supervisor:    sup,
		workFactory:   workFactory,
		containerRepo: containerRepo,
		logRepo:       logRepo,
		shipRepo:      shipRepo,
		validate:      validator.New(),
		logger:        logger.With().Str("component", "controlsocket").Logger(),
	}, nil
}

// Serve accepts connections until the listener is closed by Shutdown.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			down := s.shutdown
			s.mu.Unlock()
			if down {
				return nil
			}
			return fmt.Errorf("controlsocket: accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Shutdown refuses new connections, waits for in-flight requests to finish,
// and unlinks the socket file.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.listener.Close()
	s.wg.Wait()
	os.RemoveAll(s.socketPath)
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	deadline := time.Now().Add(30 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	body, err := io.ReadAll(bufio.NewReader(conn))
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed reading request")
		return
	}

	var req Request
	var resp *Response
	if err := json.Unmarshal(body, &req); err != nil {
		resp = errorResponse(nil, errCodeParseError, "invalid JSON")
	} else if req.JSONRPC != jsonrpcVersion || req.Method == "" {
		resp = errorResponse(req.ID, errCodeInvalidRequest, "missing jsonrpc/method")
	} else {
		resp = s.dispatch(ctx, req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed marshaling response")
		return
	}
	if _, err := conn.Write(out); err != nil {
		s.logger.Warn().Err(err).Msg("failed writing response")
		return
	}

	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) *Response {
	switch req.Method {
	case MethodContainerCreate:
		return s.handleCreate(ctx, req)
	case MethodContainerStop:
		return s.handleStop(ctx, req)
	case MethodContainerInspect:
		return s.handleInspect(ctx, req)
	case MethodContainerList:
		return s.handleList(ctx, req)
	case MethodContainerRemove:
		return s.handleRemove(ctx, req)
	case MethodContainerLogs:
		return s.handleLogs(ctx, req)
	case MethodDaemonHealth:
		return s.handleHealth(req)
	default:
		return errorResponse(req.ID, errCodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func decodeParams[T any](req Request) (*T, error) {
	var p T
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (s *Server) validateParams(p interface{}) error {
	return s.validate.Struct(p)
}
