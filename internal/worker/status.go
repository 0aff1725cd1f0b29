package worker

import (
	"sync/atomic"
	"time"

	"github.com/BV-BRC/rlm-worker/pkg/protocol"
)

// StatusReporter tracks the counters spec.md §4.5 requires the "status"
// method to report: uptime, exec count, and CPU/memory usage pulled from
// the OS's resource-usage accounting for this process.
type StatusReporter struct {
	startedAt  time.Time
	execCount  int64
	instanceID string
}

// NewStatusReporter starts the uptime clock immediately.
func NewStatusReporter(instanceID string) *StatusReporter {
	return &StatusReporter{startedAt: time.Now(), instanceID: instanceID}
}

// RecordExec increments the exec counter after one "execute" request.
func (s *StatusReporter) RecordExec() {
	atomic.AddInt64(&s.execCount, 1)
}

// Status builds a StatusResult from the live process rusage.
func (s *StatusReporter) Status() protocol.StatusResult {
	usage := platformRusage()
	return protocol.StatusResult{
		Running:       true,
		MemoryUsedMB:  usage.MaxRSSBytes / (1024 * 1024),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		ExecCount:     atomic.LoadInt64(&s.execCount),
		UserCPUMs:     usage.UserTimeMs,
		SysCPUMs:      usage.SysTimeMs,
		TotalCPUMs:    usage.UserTimeMs + usage.SysTimeMs,
		InstanceID:    s.instanceID,
	}
}

// rusageSnapshot is the platform-independent shape platformRusage fills
// in; the unit-correction between Linux (kilobytes) and Darwin (bytes)
// for ru_maxrss lives entirely in the platform-specific files.
type rusageSnapshot struct {
	MaxRSSBytes float64
	UserTimeMs  int64
	SysTimeMs   int64
}
