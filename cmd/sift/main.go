// Command sift trains the ticket priority model and classifies tickets from
// the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/sift/internal/cli"
)

func main() {
	v.AppName = "sift"
	v.Component = "cli"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
