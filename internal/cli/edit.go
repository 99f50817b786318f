package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"bugit/internal/issue"

	flag "github.com/spf13/pflag"
)

// EditCmd returns the edit command.
func EditCmd(app *App) *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	title := fs.String("title", "", "Update title")
	severity := fs.String("severity", "", "Update severity (low|medium|high|critical)")
	addTag := fs.String("add-tag", "", "Add a tag")
	removeTag := fs.String("remove-tag", "", "Remove a tag")
	solution := fs.String("solution", "", "Record a solution")
	pretty := fs.BoolP("pretty", "p", false, "Human-readable output instead of JSON")

	return &Command{
		Flags: fs,
		Usage: "edit <id|index> [flags]",
		Short: "Edit an existing issue",
		Long:  "Apply field updates to an issue and save it back. At least one update flag is required.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			changes := editChanges{
				title:     *title,
				severity:  strings.ToLower(*severity),
				addTag:    *addTag,
				removeTag: *removeTag,
				solution:  *solution,
			}

			return execEdit(app, o, args, changes, *pretty)
		},
	}
}

type editChanges struct {
	title     string
	severity  string
	addTag    string
	removeTag string
	solution  string
}

func (c editChanges) empty() bool {
	return c == editChanges{}
}

func execEdit(app *App, o *IO, args []string, changes editChanges, pretty bool) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: issue id or index is required", errUsage)
	}

	if changes.empty() {
		return fmt.Errorf("%w: no changes specified, see 'bugit edit --help'", errUsage)
	}

	if changes.severity != "" && !issue.ValidSeverity(changes.severity) {
		return fmt.Errorf("%w: invalid severity %q, must be one of %s",
			errUsage, changes.severity, strings.Join(issue.Severities, "|"))
	}

	st, err := app.Store()
	if err != nil {
		return err
	}

	doc, err := resolveIssue(st, args[0])
	if err != nil {
		return err
	}

	applied := applyChanges(doc, changes)

	doc["updated_at"] = time.Now().Format(time.RFC3339)

	validated, err := issue.ValidateOrDefault(doc)
	if err != nil {
		return err
	}

	id, err := st.Save(validated)
	if err != nil {
		return err
	}

	if pretty {
		for _, change := range applied {
			o.Println(change)
		}

		o.Printf("Issue %s updated.\n", id)

		return nil
	}

	o.PrintJSON(map[string]any{
		"success": true,
		"id":      id,
		"changes": applied,
		"issue":   validated,
	})

	return nil
}

// applyChanges mutates doc and returns a human-readable change log.
func applyChanges(doc map[string]any, changes editChanges) []string {
	applied := []string{}

	if changes.title != "" {
		doc["title"] = changes.title
		applied = append(applied, "updated title: "+changes.title)
	}

	if changes.severity != "" {
		doc["severity"] = changes.severity
		applied = append(applied, "updated severity: "+changes.severity)
	}

	if changes.solution != "" {
		doc["solution"] = changes.solution
		applied = append(applied, "recorded solution")
	}

	tags := docTags(doc)

	if changes.addTag != "" {
		if slices.Contains(tags, changes.addTag) {
			applied = append(applied, fmt.Sprintf("tag %q already present", changes.addTag))
		} else {
			tags = append(tags, changes.addTag)
			applied = append(applied, "added tag: "+changes.addTag)
		}
	}

	if changes.removeTag != "" {
		if idx := slices.Index(tags, changes.removeTag); idx >= 0 {
			tags = slices.Delete(tags, idx, idx+1)
			applied = append(applied, "removed tag: "+changes.removeTag)
		} else {
			applied = append(applied, fmt.Sprintf("tag %q not found", changes.removeTag))
		}
	}

	doc["tags"] = tags

	return applied
}
