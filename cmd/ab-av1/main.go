// Package main provides the CLI entry point for ab-av1.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/ab-av1/internal/cache"
	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/temporary"
)

const (
	exitError       = 1
	exitInterrupted = 130
)

func main() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	os.Exit(run(os.Args[1:], sigCh))
}

// run executes one invocation. The first value on sigCh cancels the running
// operation so it can unwind; a second one cleans up and exits at once.
func run(args []string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newApp()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
		case <-done:
			return
		}
		cancel()
		select {
		case <-sigCh:
		case <-done:
			return
		}
		temporary.Clean(a.keepTemp.Load())
		os.Exit(exitInterrupted)
	}()

	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	cache.CloseShared()
	temporary.Clean(a.keepTemp.Load())
	defer a.close()

	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil || errors.IsCancelled(err):
		return exitInterrupted
	default:
		a.report(err)
		return exitError
	}
}
