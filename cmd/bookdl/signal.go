package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
)

// exitInterrupted is the conventional status for a run killed by SIGINT.
const exitInterrupted = 130

// forceExit is replaced in tests.
var forceExit = os.Exit

func watchSignals(parent context.Context, w io.Writer, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)

	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			fmt.Fprintln(w, "interrupted, cleaning up (press Ctrl+C again to quit now)")
			cancel()
		case <-done:
			return
		}
		select {
		case <-ch:
			forceExit(exitInterrupted)
		case <-done:
		}
	}()

	stop := func() {
		signal.Stop(ch)
		select {
		case <-done:
		default:
			close(done)
		}
		cancel()
	}
	return ctx, stop
}
