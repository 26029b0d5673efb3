package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/sweep/internal/cmd"
	"github.com/felixgeelhaar/sweep/internal/exitcode"
	"github.com/felixgeelhaar/sweep/internal/ux"
)

func main() {
	// Cancel the root context on Ctrl+C or SIGTERM; running tasks are killed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		stop()
		exitcode.Exit(exitcode.Success)
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
		stop()
		exitcode.Exit(exitcode.Interrupted)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", ux.EnhanceError(err))
	stop()
	exitcode.ExitWithError(err)
}
