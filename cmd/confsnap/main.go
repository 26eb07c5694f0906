// confsnap backs up network device configurations and reports what changed
// between consecutive captures
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRoot().Command().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
