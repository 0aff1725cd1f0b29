//go:build linux

package worker

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dop251/goja"
)

// platformApplyCPULimit sets the soft RLIMIT_CPU to seconds, leaving the
// hard limit as it was (the kernel sends SIGKILL rather than SIGXCPU once
// the hard limit is reached), and installs a SIGXCPU handler that
// interrupts vm, translating the kernel's resource-limit signal into a
// goja interrupt the running script observes as a thrown error at its
// next bytecode tick (spec.md §4.7).
func platformApplyCPULimit(vm *goja.Runtime, seconds int) (bool, error) {
	limit := &syscall.Rlimit{}
	if err := syscall.Getrlimit(syscall.RLIMIT_CPU, limit); err != nil {
		return false, err
	}
	limit.Cur = uint64(seconds)
	if err := syscall.Setrlimit(syscall.RLIMIT_CPU, limit); err != nil {
		return false, err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGXCPU)
	go func() {
		for range sigCh {
			log.Printf("cpu time limit of %ds reached, interrupting running evaluation", seconds)
			vm.Interrupt("cpu time limit exceeded")
		}
	}()

	return true, nil
}
