//go:build !linux && !darwin

package worker

// platformRusage has no portable getrusage(2) equivalent on this
// platform; status still reports uptime and exec count, just with zeroed
// CPU/memory figures.
func platformRusage() rusageSnapshot {
	return rusageSnapshot{}
}
