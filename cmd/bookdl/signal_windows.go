//go:build windows

package main

import (
	"context"
	"io"
	"os"
)

// notifyContext returns a context canceled on interrupt. A second interrupt
// exits immediately. syscall.SIGTERM is not delivered on Windows.
func notifyContext(parent context.Context, w io.Writer) (context.Context, context.CancelFunc) {
	return watchSignals(parent, w, os.Interrupt)
}
