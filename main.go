// fahstat - a status client for the work-queue daemon's command port.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fahstat/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fahstat: %v\n", err)
		os.Exit(1)
	}
}
