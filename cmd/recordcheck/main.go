package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const (
	exitFailure      = 1
	exitInconsistent = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, ErrInconsistent) {
			stop()
			os.Exit(exitInconsistent)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		stop()
		os.Exit(exitFailure)
	}
}
