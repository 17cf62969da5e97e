package bookdl

import "runtime"

// Worker sizing constants.
const (
	// MinWorkers ensures at least one page fetch is in flight.
	MinWorkers = 1

	// MaxWorkers caps concurrent page-service connections so a run stays
	// polite towards the platform.
	MaxWorkers = 8

	// cpuDivisor leaves headroom for the Chrome child processes that render
	// while pages are still being fetched.
	cpuDivisor = 2
)

// ResolveWorkers determines the number of concurrent page fetches.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by CLIs.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in containers.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
