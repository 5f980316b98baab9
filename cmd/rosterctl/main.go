// Command rosterctl resolves roster files offline and drives load tests
// against a running roster service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Stderr.WriteString("rosterctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
