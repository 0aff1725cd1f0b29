//go:build !linux

package worker

import "github.com/dop251/goja"

// platformApplyCPULimit is a no-op outside Linux: RLIMIT_CPU/SIGXCPU is a
// POSIX resource-limit mechanism this worker only wires up on the
// platform it actually ships on.
func platformApplyCPULimit(vm *goja.Runtime, seconds int) (bool, error) {
	return false, nil
}
