package process

// Notes:
// - KillTree is exercised with PIDs that cannot belong to a live process.
//   Real termination is covered by the browser integration tests in
//   internal/render.

import "testing"

func TestKillTree_IgnoresUnknownPID(t *testing.T) {
	t.Parallel()

	KillTree(999999999)
}

func TestKillTree_IgnoresNonPositivePID(t *testing.T) {
	t.Parallel()

	// 0 would address our own process group; it must be a no-op.
	KillTree(0)
	KillTree(-1)
}
