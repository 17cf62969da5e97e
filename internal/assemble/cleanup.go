package assemble

import (
	"fmt"
	"os"

	"github.com/alnah/go-bookdl/internal/fileutil"
)

// Cleanup removes the working directory dir unless retain is set. It refuses
// when output lies inside dir.
func Cleanup(dir, output string, retain bool) error {
	if retain || dir == "" {
		return nil
	}
	if output != "" {
		inside, err := fileutil.IsInside(dir, output)
		if err != nil {
			return err
		}
		if inside {
			return fmt.Errorf("%w: keeping %s", ErrCleanupRefused, dir)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}
