// Package main provides bugit, a bug report manager storing one JSON file
// per issue, with a CLI, an interactive shell, and an MCP stdio server.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bugit/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := cli.Run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args, env)

	stop()
	os.Exit(exitCode)
}
