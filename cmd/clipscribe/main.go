package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/alnah/go-clipscribe/internal/cli"
	"github.com/alnah/go-clipscribe/internal/interrupt"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// First SIGINT/SIGTERM cancels ctx; a second one within 2s exits 130.
	h, ctx := interrupt.NewHandler(context.Background())
	defer h.Stop()

	env := cli.DefaultEnv()
	root := cli.RootCmd(env, fmt.Sprintf("%s (commit: %s)", version, commit))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
