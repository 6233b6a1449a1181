package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"freqpick/internal/config"
	appLog "freqpick/internal/log"
	"freqpick/internal/timezone"
)

const version = "0.1.0"

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	timezone   string
	verbose    bool
	asJSON     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "freqpick",
		Short: "Translate between recurrence picker options and RRULE strings",
		Long: `freqpick turns a reference date into the seven "repeat" choices of a
calendar event editor, generates the RRULE for a chosen option and maps an
existing RRULE back onto one of those options.

Run "freqpick serve" to expose the same operations over HTTP together with
a classified view of the configured ICS subscriptions.`,
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				appLog.SetLevel(appLog.LevelDebug)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			appLog.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to config file (defaults are used when empty)")
	pf.StringVar(&flags.timezone, "timezone", "", "IANA zone for dates without an offset (overrides config)")
	pf.BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")
	pf.BoolVar(&flags.asJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		newOptionsCmd(flags),
		newRuleCmd(flags),
		newClassifyCmd(flags),
		newPreviewCmd(flags),
		newExportCmd(flags),
		newServeCmd(flags),
		newClassifyFeedCmd(flags),
	)
	return root
}

// loadConfig reads --config, or returns defaults when no path was given, and
// applies the --timezone override.
func (f *rootFlags) loadConfig() (*config.Config, *time.Location, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if tz := strings.TrimSpace(f.timezone); tz != "" {
		cfg.Timezone = tz
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	appLog.Debug("effective config",
		"config_path", f.configPath,
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"ics_count", len(cfg.ICS),
	)
	return cfg, loc, nil
}

// location resolves only the zone; translator commands do not need the rest.
func (f *rootFlags) location() (*time.Location, error) {
	_, loc, err := f.loadConfig()
	return loc, err
}

// referenceArg parses args[i] as a date in loc, or returns today at midnight
// when the argument is absent.
func referenceArg(args []string, i int, loc *time.Location) (time.Time, error) {
	if len(args) <= i {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	t, err := timezone.ParseReference(args[i], loc)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "reference date")
	}
	return t, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
