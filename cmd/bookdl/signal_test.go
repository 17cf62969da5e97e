package main

// Notes:
// - notifyContext: we test context creation, cancellation via stop() and
//   parent propagation. Actual OS signal delivery is not tested since it is
//   non-deterministic and platform-specific.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"context"
	"io"
	"testing"
)

// ---------------------------------------------------------------------------
// TestNotifyContext - Context creation and cancellation behavior
// ---------------------------------------------------------------------------

func TestNotifyContext(t *testing.T) {
	t.Parallel()

	t.Run("context starts not cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, stop := notifyContext(context.Background(), io.Discard)
		defer stop()

		select {
		case <-ctx.Done():
			t.Fatal("context should not be cancelled initially")
		default:
		}
	})

	t.Run("stop cancels context", func(t *testing.T) {
		t.Parallel()

		ctx, stop := notifyContext(context.Background(), io.Discard)
		stop()

		select {
		case <-ctx.Done():
		default:
			t.Fatal("context should be cancelled after stop()")
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		t.Parallel()

		_, stop := notifyContext(context.Background(), io.Discard)
		stop()
		stop()
	})

	t.Run("inherits parent cancellation", func(t *testing.T) {
		t.Parallel()

		parent, cancel := context.WithCancel(context.Background())
		ctx, stop := notifyContext(parent, io.Discard)
		defer stop()

		cancel()

		select {
		case <-ctx.Done():
		default:
			t.Fatal("context should be cancelled when parent is cancelled")
		}
	})
}
