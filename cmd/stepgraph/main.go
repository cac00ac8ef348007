// Command stepgraph runs the demo step graphs.
//
// Usage:
//
//	stepgraph [--json] [--config FILE] <command> [flags]
//
// A .env file in the working directory is loaded first, so OPENAI_API_KEY
// can live there.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/randalmurphal/stepgraph/internal/cli"
)

// version is set through ldflags at build time.
var version = "dev"

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cli.Options{
		Version: version,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
