// Command zeal is the Zeal interpreter entry point.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/thomasrohde/zeal/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.New().Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
