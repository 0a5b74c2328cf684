package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	osExit = os.Exit

	// exitFunc is replaced in tests.
	exitFunc = osExit
)

// SetupSignalHandler returns a context that is canceled on SIGINT or
// SIGTERM. A second signal exits the process immediately with code 130.
// The returned stop function releases the signal handler.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	stopped := make(chan struct{})

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-stopped:
			return
		}
		select {
		case <-sigChan:
			exitFunc(130)
		case <-stopped:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(stopped)
			cancel()
		})
	}
}
