package worker

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/BV-BRC/rlm-worker/pkg/protocol"
)

// Channel is the worker's synchronous callback path into the host: while
// an "execute" request is being handled, evaluated code can block on a
// helper (llm_call, memory_query, verify_claim, ...) that needs the host
// to answer it. The worker has no goroutine scheduler for this — it
// writes one Callback frame and blocks the single evaluation thread on
// the matching CallbackResponse line, exactly mirroring how the rest of
// the stdio protocol is handled (spec.md §4.3, §6).
type Channel struct {
	io     *FrameIO
	nextID int64
}

// NewChannel wraps io for callback traffic. io is the same captured
// stdio pair the main dispatcher reads/writes.
func NewChannel(io *FrameIO) *Channel {
	return &Channel{io: io}
}

// Call sends a callback of the given type with params and blocks for the
// matching response line. A read error (including EOF) here means the
// host went away mid-callback, which is unrecoverable for this process
// (spec.md §7, class 5) — the caller should treat it as fatal.
func (c *Channel) Call(callbackType string, params any) (protocol.CallbackResponse, error) {
	id := atomic.AddInt64(&c.nextID, 1)

	frame := protocol.Callback{
		Callback:   callbackType,
		CallbackID: id,
		Params:     params,
	}
	if err := c.io.WriteJSON(frame); err != nil {
		return protocol.CallbackResponse{}, fmt.Errorf("writing callback frame: %w", err)
	}

	line, err := c.io.ReadLine()
	if err != nil {
		return protocol.CallbackResponse{}, fmt.Errorf("reading callback response: %w", err)
	}

	var resp protocol.CallbackResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return protocol.CallbackResponse{}, fmt.Errorf("decoding callback response: %w", err)
	}
	return resp, nil
}
