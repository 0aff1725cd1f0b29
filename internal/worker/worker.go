// Package worker implements the sandboxed code-evaluation child process:
// a persistent JavaScript namespace driven over line-delimited JSON on
// stdin/stdout, with synchronous callbacks into a host process and a
// structured final-output register.
package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/BV-BRC/rlm-worker/internal/config"
	"github.com/BV-BRC/rlm-worker/pkg/protocol"
)

// Worker is one running instance of the stdio evaluation loop.
type Worker struct {
	io     *FrameIO
	ns     *Namespace
	eval   *Evaluator
	ch     *Channel
	final  *FinalOutput
	status *StatusReporter

	instanceID string
	logger     *log.Logger
}

// New builds a Worker from captured stdin/stdout streams and a loaded
// configuration. It does not start serving requests — call Run for that.
func New(in io.Reader, out io.Writer, cfg *config.Config, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}

	instanceID := uuid.NewString()

	frameIO := NewFrameIO(in, out)
	ch := NewChannel(frameIO)
	final := &FinalOutput{}

	helperCfg := HelperConfig{
		DisableCallbacks:    cfg.Helpers.DisableCallbacks,
		DisableMemory:       cfg.Helpers.DisableMemory,
		DisableVerification: cfg.Helpers.DisableVerification,
	}

	ns := NewNamespace(ch, helperCfg, final)

	if installed, err := applyCPULimit(ns.Runtime(), cfg.Resource.CPULimitSec); err != nil {
		logger.Printf("warning: could not apply cpu time limit: %v", err)
	} else if installed {
		logger.Printf("cpu time limit set to %ds", cfg.Resource.CPULimitSec)
	}

	return &Worker{
		io:         frameIO,
		ns:         ns,
		eval:       NewEvaluator(ns),
		ch:         ch,
		final:      final,
		status:     NewStatusReporter(instanceID),
		instanceID: instanceID,
		logger:     logger,
	}
}

// StatusReporter exposes the worker's status tracker, for an
// introspection server running alongside the stdio loop.
func (w *Worker) StatusReporter() *StatusReporter {
	return w.status
}

// Run emits the startup-ready frame, then dispatches requests until the
// host closes stdin or sends "shutdown". It returns nil on a clean exit.
func (w *Worker) Run() error {
	ready := protocol.Response{
		ID: 0,
		Result: protocol.ReadyResult{
			Ready:      true,
			Pydantic:   false,
			InstanceID: w.instanceID,
		},
	}
	if err := w.io.WriteJSON(ready); err != nil {
		return fmt.Errorf("writing ready frame: %w", err)
	}

	for {
		line, err := w.io.ReadLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading request: %w", err)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if shouldExit := w.handleLine(line); shouldExit {
			return nil
		}
	}
}

// handleLine decodes and dispatches a single request line, reporting
// shouldExit=true once a "shutdown" request has been answered.
func (w *Worker) handleLine(line string) (shouldExit bool) {
	var req protocol.Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		w.writeError(0, protocol.CodeParseError, "invalid JSON request", err.Error())
		return false
	}

	resp, exit := w.dispatch(req)
	resp.ID = req.ID
	if err := w.io.WriteJSON(resp); err != nil {
		w.logger.Printf("failed to write response: %v", err)
	}
	return exit
}

// dispatch runs one request's handler, converting any panic raised by
// the dispatcher itself (not by evaluated code, which goja contains) into
// an internal-error response so a single bad request cannot take the
// worker process down.
func (w *Worker) dispatch(req protocol.Request) (resp protocol.Response, exit bool) {
	defer func() {
		if r := recover(); r != nil {
			resp = protocol.Response{
				Error: &protocol.RPCError{
					Code:    protocol.CodeInternal,
					Message: fmt.Sprintf("internal error: %v", r),
					Data:    string(debug.Stack()),
				},
			}
		}
	}()

	switch req.Method {
	case "execute":
		return w.handleExecute(req), false
	case "set_var":
		return w.handleSetVar(req), false
	case "get_var":
		return w.handleGetVar(req), false
	case "list_vars":
		return w.handleListVars(req), false
	case "status":
		return w.handleStatus(req), false
	case "shutdown":
		return protocol.Response{Result: protocol.ShutdownResult{OK: true}}, true
	default:
		return protocol.Response{Error: &protocol.RPCError{
			Code:    protocol.CodeMethodNotFound,
			Message: fmt.Sprintf("unknown method: %s", req.Method),
		}}, false
	}
}

func (w *Worker) handleExecute(req protocol.Request) protocol.Response {
	var params protocol.ExecuteParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(protocol.CodeInternal, "invalid execute params", err)
	}

	result := w.eval.Execute(params.Code)
	w.status.RecordExec()
	return protocol.Response{Result: result}
}

func (w *Worker) handleSetVar(req protocol.Request) protocol.Response {
	var params protocol.SetVarParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(protocol.CodeInternal, "invalid set_var params", err)
	}
	if err := w.ns.SetVar(params.Name, params.Value); err != nil {
		return errorResponse(protocol.CodeInternal, "set_var failed", err)
	}
	return protocol.Response{Result: protocol.SetVarResult{OK: true}}
}

func (w *Worker) handleGetVar(req protocol.Request) protocol.Response {
	var params protocol.GetVarParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(protocol.CodeInternal, "invalid get_var params", err)
	}
	value, length, typeName, err := w.ns.GetVar(params.Name, params.Start, params.End, params.AsRepr)
	if err != nil {
		return errorResponse(protocol.CodeInternal, "get_var failed", err)
	}
	return protocol.Response{Result: protocol.GetVarResult{Value: value, Length: length, Type: typeName}}
}

func (w *Worker) handleListVars(req protocol.Request) protocol.Response {
	entries := w.ns.ListVars()
	vars := make([]protocol.VarInfo, 0, len(entries))
	for _, e := range entries {
		vars = append(vars, protocol.VarInfo{Name: e.Name, Type: e.Type, Length: e.Length, Size: e.Size})
	}
	return protocol.Response{Result: protocol.ListVarsResult{Variables: vars}}
}

func (w *Worker) handleStatus(req protocol.Request) protocol.Response {
	return protocol.Response{Result: w.status.Status()}
}

func (w *Worker) writeError(id int, code int, message, data string) {
	resp := protocol.Response{
		ID:    id,
		Error: &protocol.RPCError{Code: code, Message: message, Data: data},
	}
	if err := w.io.WriteJSON(resp); err != nil {
		w.logger.Printf("failed to write error response: %v", err)
	}
}

func errorResponse(code int, message string, err error) protocol.Response {
	return protocol.Response{
		Error: &protocol.RPCError{Code: code, Message: message, Data: err.Error()},
	}
}
