package cli

import (
	"context"
	"fmt"
	"strings"

	"bugit/internal/issue"

	flag "github.com/spf13/pflag"
)

// NewCmd returns the new command.
func NewCmd(app *App) *Command {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	pretty := fs.BoolP("pretty", "p", false, "Human-readable output instead of JSON")
	severity := fs.StringP("severity", "s", "", "Override the detected severity")

	return &Command{
		Flags: fs,
		Usage: "new <description>",
		Short: "Create an issue from a freeform description",
		Long: `Create a new issue. The description is run through the triage pipeline to
derive a title, severity, and tags, then validated and saved.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execNew(ctx, app, o, args, *severity, *pretty)
		},
	}
}

func execNew(ctx context.Context, app *App, o *IO, args []string, severity string, pretty bool) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: description is required", errUsage)
	}

	description := strings.Join(args, " ")

	draft, err := app.Pipeline.ProcessDescription(ctx, description)
	if err != nil {
		return err
	}

	if severity != "" {
		if !issue.ValidSeverity(strings.ToLower(severity)) {
			return fmt.Errorf("%w: invalid severity %q", errUsage, severity)
		}

		draft["severity"] = strings.ToLower(severity)
	}

	validated, err := issue.ValidateOrDefault(draft)
	if err != nil {
		return err
	}

	st, err := app.Store()
	if err != nil {
		return err
	}

	id, err := st.Save(validated)
	if err != nil {
		return err
	}

	if pretty {
		o.Println("Issue created:", id)
		o.Println("Title:", validated["title"])
		o.Println("Severity:", validated["severity"])

		return nil
	}

	o.PrintJSON(map[string]any{
		"success": true,
		"id":      id,
		"issue":   validated,
	})

	return nil
}
