package worker

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/BV-BRC/rlm-worker/internal/config"
	"github.com/BV-BRC/rlm-worker/pkg/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		Resource: config.ResourceConfig{CPULimitSec: 0, MemoryLimitMB: 64},
		Helpers: config.HelpersConfig{
			DisableCallbacks:    true,
			DisableMemory:       true,
			DisableVerification: true,
		},
	}
}

func TestWorkerRunHandshakeExecuteShutdown(t *testing.T) {
	requests := strings.Join([]string{
		`{"id":1,"method":"execute","params":{"code":"1 + 2"}}`,
		`{"id":2,"method":"status","params":{}}`,
		`{"id":3,"method":"shutdown","params":{}}`,
	}, "\n") + "\n"

	in := strings.NewReader(requests)
	out := &bytes.Buffer{}
	logger := log.New(io.Discard, "", 0)

	w := New(in, out, testConfig(), logger)
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d frames, want 4 (ready + 3 responses): %v", len(lines), lines)
	}

	var ready protocol.Response
	if err := json.Unmarshal([]byte(lines[0]), &ready); err != nil {
		t.Fatalf("decoding ready frame: %v", err)
	}
	if ready.ID != 0 {
		t.Errorf("ready frame id = %d, want 0", ready.ID)
	}

	var execResp protocol.Response
	if err := json.Unmarshal([]byte(lines[1]), &execResp); err != nil {
		t.Fatalf("decoding execute response: %v", err)
	}
	if execResp.Error != nil {
		t.Fatalf("execute returned error: %+v", execResp.Error)
	}
	resultBytes, _ := json.Marshal(execResp.Result)
	var execResult protocol.ExecuteResult
	json.Unmarshal(resultBytes, &execResult)
	if execResult.ReturnValue != "3" {
		t.Errorf("return_value = %q, want %q", execResult.ReturnValue, "3")
	}

	var shutdownResp protocol.Response
	if err := json.Unmarshal([]byte(lines[3]), &shutdownResp); err != nil {
		t.Fatalf("decoding shutdown response: %v", err)
	}
	if shutdownResp.ID != 3 {
		t.Errorf("shutdown response id = %d, want 3", shutdownResp.ID)
	}
}

func TestWorkerUnknownMethod(t *testing.T) {
	requests := `{"id":1,"method":"bogus","params":{}}` + "\n" + `{"id":2,"method":"shutdown","params":{}}` + "\n"

	in := strings.NewReader(requests)
	out := &bytes.Buffer{}
	logger := log.New(io.Discard, "", 0)

	w := New(in, out, testConfig(), logger)
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	var resp protocol.Response
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
		t.Errorf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestWorkerMalformedRequest(t *testing.T) {
	requests := "not json\n" + `{"id":2,"method":"shutdown","params":{}}` + "\n"

	in := strings.NewReader(requests)
	out := &bytes.Buffer{}
	logger := log.New(io.Discard, "", 0)

	w := New(in, out, testConfig(), logger)
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	var resp protocol.Response
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeParseError {
		t.Errorf("expected CodeParseError, got %+v", resp.Error)
	}
}
