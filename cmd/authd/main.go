// Command authd serves the authguard engine over HTTP.
//
// Usage:
//
//	authd serve [--dev]
//	authd hash-password
//	authd create-user --id u1 --identifier alice@example.com --role driver
//	authd report
//
// Settings come from --env-file, --config and AUTHGUARD_* variables. With
// --dev, an in-process Redis and an in-memory credential store are used and
// a demo admin account is seeded.
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

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
