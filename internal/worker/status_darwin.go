//go:build darwin

package worker

import "syscall"

// platformRusage reads RUSAGE_SELF. Darwin reports ru_maxrss in bytes
// already, so no kilobyte correction is needed here (contrast with the
// Linux variant of this function).
func platformRusage() rusageSnapshot {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return rusageSnapshot{}
	}
	return rusageSnapshot{
		MaxRSSBytes: float64(ru.Maxrss),
		UserTimeMs:  ru.Utime.Sec*1000 + int64(ru.Utime.Usec)/1000,
		SysTimeMs:   ru.Stime.Sec*1000 + int64(ru.Stime.Usec)/1000,
	}
}
