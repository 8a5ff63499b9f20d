// Package main implements the offload server: sessions over HTTP, each
// running at most one background computation. Invoked as
// "server worker <program>" it instead runs a single computation over
// stdin and stdout, which is how the process host starts its contexts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/phrazzld/offload/internal/funcs"
	"github.com/phrazzld/offload/internal/worker"
)

// workerCommand is the subcommand that turns the binary into a context
const workerCommand = "worker"

func main() {
	if len(os.Args) > 1 && os.Args[1] == workerCommand {
		os.Exit(runWorker(os.Args[2:]))
	}

	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	_ = fs.Parse(os.Args[1:])

	app, err := initializeApp(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		app.logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// runWorker runs one computation for the program given as the single
// argument and returns the process exit code.
func runWorker(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: server worker <program>")
		return worker.ExitBadProgram
	}
	return worker.Main(context.Background(), funcs.NewRegistry(), args[0], os.Stdin, os.Stdout, os.Stderr)
}
