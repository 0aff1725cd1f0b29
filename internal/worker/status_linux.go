//go:build linux

package worker

import "syscall"

// platformRusage reads RUSAGE_SELF. On Linux, ru_maxrss is reported in
// kilobytes, unlike Darwin's bytes — a unit mismatch the original
// bootstrap.py corrected for explicitly, carried over here.
func platformRusage() rusageSnapshot {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return rusageSnapshot{}
	}
	return rusageSnapshot{
		MaxRSSBytes: float64(ru.Maxrss) * 1024,
		UserTimeMs:  ru.Utime.Sec*1000 + int64(ru.Utime.Usec)/1000,
		SysTimeMs:   ru.Stime.Sec*1000 + int64(ru.Stime.Usec)/1000,
	}
}
