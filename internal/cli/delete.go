package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// DeleteCmd returns the delete command.
func DeleteCmd(app *App) *Command {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	force := fs.BoolP("force", "f", false, "Skip the confirmation prompt")
	pretty := fs.BoolP("pretty", "p", false, "Human-readable output instead of JSON")

	return &Command{
		Flags: fs,
		Usage: "delete <id|index> [flags]",
		Short: "Delete an issue permanently",
		Long: `Delete an issue. When backups are enabled (the default) a timestamped
snapshot is written to .bugit/backups before removal.

In JSON mode --force is required; in --pretty mode you are prompted unless
--force is given.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execDelete(app, o, args, *force, *pretty)
		},
	}
}

func execDelete(app *App, o *IO, args []string, force, pretty bool) error {
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

	id := docString(doc, "id")
	title := docString(doc, "title")

	if !force {
		if !pretty {
			// Scripted mode never prompts; refuse instead of blocking on stdin.
			o.PrintJSON(map[string]any{
				"success":         false,
				"error":           "confirmation required, use --force to delete without a prompt",
				"issue_to_delete": map[string]any{"id": id, "title": title},
			})

			return nil
		}

		o.Printf("Delete issue %s (%s)? This cannot be undone. [y/N] ", id, title)

		if !confirm(app) {
			o.Println("Deletion cancelled.")

			return nil
		}
	}

	deleted, err := st.Delete(id)
	if err != nil {
		return err
	}

	if pretty {
		if deleted {
			o.Printf("Issue %s deleted.\n", id)
		} else {
			o.Printf("Issue %s was already gone.\n", id)
		}

		return nil
	}

	o.PrintJSON(map[string]any{
		"success": deleted,
		"id":      id,
		"title":   title,
	})

	return nil
}

func confirm(app *App) bool {
	if app.In == nil {
		return false
	}

	line, err := bufio.NewReader(app.In).ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}
