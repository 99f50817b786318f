package cli

import (
	"context"
	"fmt"
	"sort"

	"bugit/internal/config"

	flag "github.com/spf13/pflag"
)

// ConfigCmd returns the config command.
func ConfigCmd(app *App) *Command {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	get := fs.String("get", "", "Print a single value")
	set := fs.String("set", "", "Set a key; the value is the positional argument")
	pretty := fs.BoolP("pretty", "p", false, "Human-readable output instead of JSON")

	return &Command{
		Flags: fs,
		Usage: "config [flags] [value]",
		Short: "View or modify configuration",
		Long: `View or modify the .bugitrc configuration in the project root.

  bugit config                      print all settings
  bugit config --get model          print one value
  bugit config --set model gpt-4o   set a value`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execConfig(app, o, args, *get, *set, *pretty)
		},
	}
}

func execConfig(app *App, o *IO, args []string, get, set string, pretty bool) error {
	switch {
	case get != "" && set != "":
		return fmt.Errorf("%w: --get and --set cannot be combined", errUsage)

	case get != "":
		value, err := config.Get(app.RootDir, get)
		if err != nil {
			return err
		}

		if pretty {
			o.Println(fmt.Sprintf("%s = %v", get, value))
		} else {
			o.PrintJSON(map[string]any{get: value})
		}

		return nil

	case set != "":
		if len(args) == 0 {
			return fmt.Errorf("%w: --set %s requires a value argument", errUsage, set)
		}

		if err := config.Set(app.RootDir, set, args[0]); err != nil {
			return err
		}

		if pretty {
			o.Printf("Set %s = %s\n", set, args[0])
		} else {
			o.PrintJSON(map[string]any{"success": true, "key": set, "value": args[0]})
		}

		return nil

	default:
		raw, err := config.LoadRaw(app.RootDir)
		if err != nil {
			return err
		}

		if !pretty {
			o.PrintJSON(raw)

			return nil
		}

		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			o.Println(fmt.Sprintf("%s = %v", k, raw[k]))
		}

		return nil
	}
}
