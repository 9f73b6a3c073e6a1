// Command salesetl cleans a sales export, loads it into the warehouse and
// rebuilds the monthly revenue and daily orders rollups.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "salesetl:", err)
		stop()
		os.Exit(1)
	}
}
