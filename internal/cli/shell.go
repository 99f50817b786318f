package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"
)

// ShellCmd returns the interactive shell command.
func ShellCmd(app *App) *Command {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)

	return &Command{
		Flags: fs,
		Usage: "shell",
		Short: "Interactive shell",
		Long: `Start an interactive shell that accepts the same commands as the CLI.
Output defaults to --pretty; quote arguments with spaces. Type "exit" to
leave, "help" for commands.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execShell(ctx, app, o)
		},
	}
}

// prettyByDefault lists commands the shell upgrades to human output unless
// the user explicitly asked for something else.
var prettyByDefault = []string{"new", "list", "show", "edit", "delete", "stats", "config"}

func execShell(ctx context.Context, app *App, o *IO) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	o.Println("bugit interactive shell. Type 'help' for commands, 'exit' to leave.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		input, err := line.Prompt("bugit> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				o.Println("bye")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		tokens, err := tokenize(input)
		if err != nil {
			o.ErrPrintln("error:", err)

			continue
		}

		name, args := tokens[0], tokens[1:]

		switch name {
		case "exit", "quit":
			o.Println("bye")

			return nil
		case "help":
			printUsage(o.out)

			continue
		}

		if slices.Contains(prettyByDefault, name) && !slices.Contains(args, "-p") && !slices.Contains(args, "--pretty") {
			args = append(args, "--pretty")
		}

		if _, ok := dispatch(ctx, app, o, name, args); !ok {
			o.ErrPrintln("error: unknown command:", name)
		}
	}
}

// tokenize splits a shell line on whitespace, honoring single and double
// quotes so descriptions with spaces survive.
func tokenize(input string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)

	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", input)
	}

	if inToken {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}
