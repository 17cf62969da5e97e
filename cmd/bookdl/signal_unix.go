//go:build !windows

package main

import (
	"context"
	"io"
	"os"
	"syscall"
)

// notifyContext returns a context canceled on SIGINT or SIGTERM. The run
// then unwinds and removes its working directory; a second signal exits
// immediately.
func notifyContext(parent context.Context, w io.Writer) (context.Context, context.CancelFunc) {
	return watchSignals(parent, w, os.Interrupt, syscall.SIGTERM)
}
