package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"bugit/internal/store"

	flag "github.com/spf13/pflag"
)

// ListCmd returns the list command.
func ListCmd(app *App) *Command {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	tag := fs.StringP("tag", "t", "", "Filter by tag")
	severity := fs.StringP("severity", "s", "", "Filter by severity")
	pretty := fs.BoolP("pretty", "p", false, "Human-readable table instead of JSON")

	return &Command{
		Flags: fs,
		Usage: "list [flags]",
		Short: "List issues",
		Long: `List all issues sorted by severity (most urgent first), then creation time
(newest first). Files that cannot be read are skipped with a warning.`,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execList(app, o, *tag, *severity, *pretty)
		},
	}
}

func execList(app *App, o *IO, tag, severity string, pretty bool) error {
	st, err := app.Store()
	if err != nil {
		return err
	}

	docs, failures, err := st.ListDetailed()
	if err != nil {
		return err
	}

	for _, failure := range failures {
		o.Warn(
			fmt.Sprintf("%s: %v", failure.Path, failure.Err),
			"fix the issue file or delete it if invalid",
		)
	}

	docs = filterDocs(docs, tag, strings.ToLower(severity))

	if !pretty {
		if docs == nil {
			docs = []store.Document{}
		}

		o.PrintJSON(docs)

		return nil
	}

	if len(docs) == 0 {
		o.Println("No issues found.")

		return nil
	}

	o.Printf("%-5s %-8s %-10s %-8s %-20s %s\n", "Index", "ID", "Date", "Severity", "Tags", "Title")

	for i, doc := range docs {
		o.Printf("[%d]   %-8s %-10s %-8s %-20s %s\n",
			i+1,
			docString(doc, "id"),
			dateOnly(docString(doc, "created_at")),
			docString(doc, "severity"),
			strings.Join(docTags(doc), ","),
			truncateTitle(docString(doc, "title")),
		)
	}

	return nil
}

func filterDocs(docs []store.Document, tag, severity string) []store.Document {
	if tag == "" && severity == "" {
		return docs
	}

	var filtered []store.Document

	for _, doc := range docs {
		if severity != "" && docString(doc, "severity") != severity {
			continue
		}

		if tag != "" && !slices.Contains(docTags(doc), tag) {
			continue
		}

		filtered = append(filtered, doc)
	}

	return filtered
}

func docString(doc store.Document, key string) string {
	s, _ := doc[key].(string)

	return s
}

func docTags(doc store.Document) []string {
	switch tags := doc["tags"].(type) {
	case []string:
		return tags
	case []any:
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func dateOnly(timestamp string) string {
	if len(timestamp) >= 10 {
		return timestamp[:10]
	}

	return timestamp
}

const listTitleMax = 35

func truncateTitle(title string) string {
	if len(title) > listTitleMax {
		return title[:listTitleMax-3] + "..."
	}

	return title
}
