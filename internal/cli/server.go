package cli

import (
	"context"

	"bugit/internal/mcp"

	flag "github.com/spf13/pflag"
)

// ServerCmd returns the server command.
func ServerCmd(app *App) *Command {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "server",
		Short: "Serve issue operations over MCP (JSON-RPC 2.0 on stdio)",
		Long: `Expose issue operations as MCP tools over JSON-RPC 2.0 on stdin/stdout,
for AI models and other clients. Runs until stdin closes or the process is
interrupted. Diagnostics go to stderr, never to the protocol stream.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			st, err := app.Store()
			if err != nil {
				return err
			}

			o.ErrPrintln("Starting bugit MCP server on stdio. Press Ctrl+C to stop.")

			srv := mcp.NewServer(mcp.ServerOptions{
				Store:    st,
				RootDir:  app.RootDir,
				Pipeline: app.Pipeline,
				In:       app.In,
				Logf:     app.Debugf,
			})

			return srv.Run(ctx, newIOWriter(o))
		},
	}
}

// newIOWriter adapts IO's stdout stream for the protocol encoder.
func newIOWriter(o *IO) *ioWriter {
	return &ioWriter{o: o}
}

type ioWriter struct {
	o *IO
}

func (w *ioWriter) Write(p []byte) (int, error) {
	w.o.Printf("%s", p)

	return len(p), nil
}
