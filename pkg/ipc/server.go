package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ormasoftchile/scenex/pkg/config"
	"github.com/ormasoftchile/scenex/pkg/engine"
	"github.com/ormasoftchile/scenex/pkg/transport"
)

// Server is the JSON-RPC server wrapping one scenex Scenario: one
// scenario, and one execution engine, per process.
type Server struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	scenario *config.Scenario
}

// New creates a Server reading from stdin and writing to stdout.
func New() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{reader: bufio.NewReader(os.Stdin), writer: os.Stdout, ctx: ctx, cancel: cancel}
}

// NewWithIO creates a Server over arbitrary pipes, used by the desktop UI
// to talk to an in-process server without a real subprocess.
func NewWithIO(r io.Reader, w io.Writer) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{reader: bufio.NewReader(r), writer: w, ctx: ctx, cancel: cancel}
}

// Run reads newline-delimited JSON-RPC messages until the pipe closes or
// shutdown is requested.
func (s *Server) Run() error {
	defer s.cancel()
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.sendError(nil, CodeParseError, fmt.Sprintf("parse error: %v", err))
			continue
		}
		s.dispatch(&msg)
		if msg.Method == MethodShutdown {
			return nil
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(msg *Message) {
	switch msg.Method {
	case MethodLoadConfig:
		s.handleLoadConfig(msg)
	case MethodSetRequired:
		s.handleSetRequired(msg)
	case MethodRequiredView:
		s.handleRequiredView(msg)
	case MethodResolvedView:
		s.handleResolvedView(msg)
	case MethodTasksView:
		s.handleTasksView(msg)
	case MethodStepsView:
		s.handleStepsView(msg)
	case MethodExecute:
		s.handleExecute(msg)
	case MethodShutdown:
		s.cancel()
		s.sendResult(msg.ID, map[string]string{"status": "shutting down"})
	default:
		s.sendError(msg.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", msg.Method))
	}
}

func (s *Server) handleLoadConfig(msg *Message) {
	var params LoadConfigParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendError(msg.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		return
	}
	scenario, err := config.Resolve(params.Path)
	if err != nil {
		s.sendError(msg.ID, CodeExecutionError, err.Error())
		return
	}
	s.scenario = scenario
	s.sendResult(msg.ID, map[string]any{
		"tasks": scenario.TasksView(),
		"steps": scenario.StepsView(),
	})
}

func (s *Server) handleSetRequired(msg *Message) {
	if s.scenario == nil {
		s.sendError(msg.ID, CodeExecutionError, "no scenario loaded")
		return
	}
	var params SetRequiredParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendError(msg.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		return
	}
	if err := s.scenario.Variables.SetRequiredBatch(params.Values); err != nil {
		s.sendError(msg.ID, CodeExecutionError, err.Error())
		return
	}
	s.sendResult(msg.ID, map[string]string{"status": "ok"})
}

func (s *Server) handleRequiredView(msg *Message) {
	if s.scenario == nil {
		s.sendError(msg.ID, CodeExecutionError, "no scenario loaded")
		return
	}
	s.sendResult(msg.ID, s.scenario.Variables.RequiredView())
}

func (s *Server) handleResolvedView(msg *Message) {
	if s.scenario == nil {
		s.sendError(msg.ID, CodeExecutionError, "no scenario loaded")
		return
	}
	resolved, err := s.scenario.Variables.Resolve()
	if err != nil {
		s.sendError(msg.ID, CodeExecutionError, err.Error())
		return
	}
	s.sendResult(msg.ID, resolved)
}

func (s *Server) handleTasksView(msg *Message) {
	if s.scenario == nil {
		s.sendError(msg.ID, CodeExecutionError, "no scenario loaded")
		return
	}
	s.sendResult(msg.ID, s.scenario.TasksView())
}

func (s *Server) handleStepsView(msg *Message) {
	if s.scenario == nil {
		s.sendError(msg.ID, CodeExecutionError, "no scenario loaded")
		return
	}
	s.sendResult(msg.ID, s.scenario.StepsView())
}

// handleExecute dials the remote host, runs the engine to completion, and
// streams every Bus event as a JSON-RPC notification, blocking the
// request until the run finishes (success or failure).
func (s *Server) handleExecute(msg *Message) {
	if s.scenario == nil {
		s.sendError(msg.ID, CodeExecutionError, "no scenario loaded")
		return
	}

	t, err := transport.Dial(s.ctx, transport.DialOptions{
		Host:     s.scenario.Server.Host,
		Port:     s.scenario.Server.Port,
		Username: s.scenario.Credentials.Username,
		Password: s.scenario.Credentials.Password,
	})
	if err != nil {
		s.sendError(msg.ID, CodeExecutionError, err.Error())
		return
	}
	defer t.Close()

	bus := engine.NewBus(64)
	go s.forwardEvents(bus)

	eng := engine.New(s.scenario, t, bus)
	runErr := eng.Run(s.ctx, engine.RunOptions{})
	bus.Close()

	if runErr != nil {
		s.sendError(msg.ID, CodeExecutionError, runErr.Error())
		return
	}
	s.sendResult(msg.ID, map[string]string{"status": "success"})
}

func (s *Server) forwardEvents(bus *engine.Bus) {
	for evt := range bus.Events() {
		method := eventMethod(evt.Kind)
		if method == "" {
			continue
		}
		s.sendEvent(method, evt)
	}
}

func eventMethod(kind engine.EventKind) string {
	switch kind {
	case engine.EventStepState:
		return EventStepState
	case engine.EventOnFailStepState:
		return EventOnFailStepState
	case engine.EventExecutionStatus:
		return EventExecutionStatus
	case engine.EventLogMessage:
		return EventLogMessage
	default:
		return ""
	}
}

func (s *Server) sendResult(id *int, result any) {
	data, _ := json.Marshal(result)
	s.send(&Message{JSONRPC: "2.0", ID: id, Result: json.RawMessage(data)})
}

func (s *Server) sendError(id *int, code int, message string) {
	s.send(&Message{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}

func (s *Server) sendEvent(method string, params any) {
	data, _ := json.Marshal(params)
	s.send(&Message{JSONRPC: "2.0", Method: method, Params: json.RawMessage(data)})
}

func (s *Server) send(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	fmt.Fprintf(s.writer, "%s\n", data)
}
