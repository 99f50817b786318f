package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// ShowCmd returns the show command.
func ShowCmd(app *App) *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	pretty := fs.BoolP("pretty", "p", false, "Human-readable output instead of JSON")

	return &Command{
		Flags: fs,
		Usage: "show <id|index>",
		Short: "Show one issue",
		Long: `Display a single issue, selected by id or by its index in the current
listing. Indices are ephemeral: they shift as issues come and go.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execShow(app, o, args, *pretty)
		},
	}
}

func execShow(app *App, o *IO, args []string, pretty bool) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: issue id or index is required", errUsage)
	}

	st, err := app.Store()
	if err != nil {
		return err
	}

	doc, err := resolveIssue(st, args[0])
	if err != nil {
		return err
	}

	if !pretty {
		o.PrintJSON(doc)

		return nil
	}

	o.Println("ID:      ", docString(doc, "id"))
	o.Println("Title:   ", docString(doc, "title"))
	o.Println("Severity:", docString(doc, "severity"))
	o.Println("Type:    ", docString(doc, "type"))
	o.Println("Tags:    ", strings.Join(docTags(doc), ", "))
	o.Println("Created: ", docString(doc, "created_at"))

	if solution := docString(doc, "solution"); solution != "" {
		o.Println("Solution:", solution)
	}

	o.Println()
	o.Println(docString(doc, "description"))

	return nil
}
