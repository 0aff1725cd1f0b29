package worker

import "github.com/dop251/goja"

// ResourceLimits are the process-level limits to apply before serving any
// request (spec.md §4.7). MemoryLimitMB is accepted but neither reported
// by "status" nor enforced — this worker has no RLIMIT_AS equivalent
// wired up, since goja allocates Go heap memory that a hard address-space
// cap would not bound cleanly; only CPU time is enforced.
type ResourceLimits struct {
	CPUSeconds    int
	MemoryLimitMB int
}

// applyCPULimit sets the platform CPU-time limit and arranges for its
// signal to interrupt vm once delivered. It is a no-op, returning false,
// on platforms without RLIMIT_CPU.
func applyCPULimit(vm *goja.Runtime, seconds int) (installed bool, err error) {
	if seconds <= 0 {
		return false, nil
	}
	return platformApplyCPULimit(vm, seconds)
}
