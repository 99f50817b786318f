package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// StatsCmd returns the stats command.
func StatsCmd(app *App) *Command {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	pretty := fs.BoolP("pretty", "p", false, "Human-readable output instead of JSON")

	return &Command{
		Flags: fs,
		Usage: "stats",
		Short: "Show storage statistics",
		Long:  "Show issue counts, total size on disk, and per-severity breakdown.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execStats(app, o, *pretty)
		},
	}
}

func execStats(app *App, o *IO, pretty bool) error {
	st, err := app.Store()
	if err != nil {
		return err
	}

	stats := st.Stats()

	if !pretty {
		o.PrintJSON(stats)

		return nil
	}

	o.Println("Directory:  ", stats.IssuesDirectory)
	o.Println("Issues:     ", stats.TotalIssues)
	o.Println("Total bytes:", stats.TotalSizeBytes)
	o.Println("By severity:")

	for _, severity := range []string{"critical", "high", "medium", "low"} {
		o.Printf("  %-8s %d\n", severity, stats.BySeverity[severity])
	}

	if stats.Err != "" {
		o.Warn("stats are partial: "+stats.Err, "check the issues directory")
	}

	return nil
}
