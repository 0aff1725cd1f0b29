// Package client provides a Go client for driving a single rlm-worker
// process over its stdio protocol: spawning the binary, issuing
// execute/set_var/get_var/list_vars/status/shutdown requests, and
// answering the worker's synchronous callbacks.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/BV-BRC/rlm-worker/pkg/protocol"
)

// CallbackHandler answers a single worker callback (llm_call,
// memory_query, verify_claim, ...). Implementations should not block
// indefinitely — the worker has no other work to do while waiting.
type CallbackHandler func(ctx context.Context, callbackType string, params json.RawMessage) (protocol.CallbackResponse, error)

// Config configures how a worker process is spawned and driven.
type Config struct {
	// Binary is the path to the rlm-worker executable.
	Binary string
	// Args are extra arguments passed to Binary (e.g. "serve").
	Args []string
	// RequestTimeout is carried in the configuration but Client does not
	// apply it: a request waits until the worker answers or its stdout
	// closes.
	RequestTimeout time.Duration
	// OnCallback answers worker callbacks. A nil handler causes every
	// callback to receive an error result, which is appropriate for a
	// worker configured to disable the corresponding helper category.
	OnCallback CallbackHandler
}

// Client drives one spawned worker process.
type Client struct {
	cfg Config
	cmd *exec.Cmd

	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex
	nextID int
	ready  protocol.ReadyResult
}

// Start spawns the worker process and reads its startup-ready frame.
func Start(ctx context.Context, cfg Config) (*Client, error) {
	cmd := exec.CommandContext(ctx, cfg.Binary, cfg.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 64*1024),
	}

	line, err := c.readLine()
	if err != nil {
		return nil, fmt.Errorf("reading ready frame: %w", err)
	}
	var resp protocol.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("decoding ready frame: %w", err)
	}
	readyBytes, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("re-encoding ready frame: %w", err)
	}
	if err := json.Unmarshal(readyBytes, &c.ready); err != nil {
		return nil, fmt.Errorf("decoding ready result: %w", err)
	}

	return c, nil
}

// Ready returns the startup handshake the worker sent before its first
// request was read.
func (c *Client) Ready() protocol.ReadyResult {
	return c.ready
}

// Execute evaluates code in the worker's persistent namespace, answering
// any callbacks the evaluation raises along the way.
func (c *Client) Execute(ctx context.Context, code string) (protocol.ExecuteResult, error) {
	var result protocol.ExecuteResult
	err := c.call(ctx, "execute", protocol.ExecuteParams{Code: code}, &result)
	return result, err
}

// SetVar stores a string value under name in the worker's namespace.
func (c *Client) SetVar(ctx context.Context, name, value string) error {
	var result protocol.SetVarResult
	return c.call(ctx, "set_var", protocol.SetVarParams{Name: name, Value: value}, &result)
}

// GetVar reads name from the worker's namespace, optionally sliced.
func (c *Client) GetVar(ctx context.Context, name string, start, end int, asRepr bool) (protocol.GetVarResult, error) {
	var result protocol.GetVarResult
	err := c.call(ctx, "get_var", protocol.GetVarParams{Name: name, Start: start, End: end, AsRepr: asRepr}, &result)
	return result, err
}

// ListVars lists every user-defined variable in the worker's namespace.
func (c *Client) ListVars(ctx context.Context) (protocol.ListVarsResult, error) {
	var result protocol.ListVarsResult
	err := c.call(ctx, "list_vars", struct{}{}, &result)
	return result, err
}

// Status polls the worker's resource usage and uptime.
func (c *Client) Status(ctx context.Context) (protocol.StatusResult, error) {
	var result protocol.StatusResult
	err := c.call(ctx, "status", struct{}{}, &result)
	return result, err
}

// Shutdown asks the worker to exit cleanly, then waits for the process.
func (c *Client) Shutdown(ctx context.Context) error {
	var result protocol.ShutdownResult
	if err := c.call(ctx, "shutdown", struct{}{}, &result); err != nil {
		return err
	}
	return c.cmd.Wait()
}

// call writes one request, then reads frames until the matching Response
// arrives, dispatching any Callback frames it sees in between to
// cfg.OnCallback.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramBytes, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req := protocol.Request{ID: id, Method: method, Params: paramBytes}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := c.stdin.Write(append(reqBytes, '\n')); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	for {
		line, err := c.readLine()
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		var envelope struct {
			Callback string `json:"callback"`
		}
		if err := json.Unmarshal([]byte(line), &envelope); err == nil && envelope.Callback != "" {
			if err := c.handleCallback(ctx, line); err != nil {
				return err
			}
			continue
		}

		var resp protocol.Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if resp.Error != nil {
			return resp.Error
		}

		resultBytes, err := json.Marshal(resp.Result)
		if err != nil {
			return err
		}
		return json.Unmarshal(resultBytes, out)
	}
}

func (c *Client) handleCallback(ctx context.Context, line string) error {
	var cb protocol.Callback
	if err := json.Unmarshal([]byte(line), &cb); err != nil {
		return fmt.Errorf("decoding callback: %w", err)
	}

	paramBytes, err := json.Marshal(cb.Params)
	if err != nil {
		return err
	}

	var resp protocol.CallbackResponse
	if c.cfg.OnCallback != nil {
		resp, err = c.cfg.OnCallback(ctx, cb.Callback, paramBytes)
		if err != nil {
			resp = protocol.CallbackResponse{Error: err.Error()}
		}
	} else {
		resp = protocol.CallbackResponse{Error: fmt.Sprintf("no callback handler registered for %s", cb.Callback)}
	}

	respBytes, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = c.stdin.Write(append(respBytes, '\n'))
	return err
}

func (c *Client) readLine() (string, error) {
	line, err := c.stdout.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return line, nil
		}
		return "", err
	}
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r') {
		n--
	}
	return line[:n], nil
}
