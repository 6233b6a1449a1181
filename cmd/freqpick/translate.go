package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"freqpick/internal/frequency"
	"freqpick/internal/ics"
	"freqpick/internal/metrics"
)

func newOptionsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "options [date]",
		Short: "List the picker options for a reference date",
		Example: `  freqpick options 2023-07-26
  freqpick options 2023-07-26 --timezone Europe/Paris --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := flags.location()
			if err != nil {
				return err
			}
			ref, err := referenceArg(args, 0, loc)
			if err != nil {
				return err
			}

			choices := frequency.GenerateOptions(ref)
			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), choices)
			}
			for _, c := range choices {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", c.ID, c.Label)
			}
			return nil
		},
	}
}

type ruleOutput struct {
	Option frequency.Option `json:"option"`
	Label  string           `json:"label"`
	Rule   *string          `json:"rule"`
}

func newRuleCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rule <option> [date]",
		Short: "Print the RRULE generated for an option",
		Long: `Print the RRULE generated for an option anchored at the reference date.
Options that do not repeat (not-repeat, custom) print nothing, or a null rule
with --json.`,
		Example: `  freqpick rule monthly-nth-day 2023-07-26`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			option, err := frequency.ParseOption(args[0])
			if err != nil {
				return err
			}
			loc, err := flags.location()
			if err != nil {
				return err
			}
			ref, err := referenceArg(args, 1, loc)
			if err != nil {
				return err
			}

			out := ruleOutput{Option: option, Label: frequency.LabelFor(option, ref)}
			if rule, ok := frequency.GenerateRule(option, ref); ok {
				out.Rule = &rule
				metrics.RulesGenerated.WithLabelValues(string(option)).Inc()
			}
			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			if out.Rule != nil {
				fmt.Fprintln(cmd.OutOrStdout(), *out.Rule)
			}
			return nil
		},
	}
}

type classifyOutput struct {
	Option frequency.Option `json:"option"`
	Label  string           `json:"label"`
}

func newClassifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <start> <rrule>",
		Short: "Map an RRULE back onto a picker option",
		Long: `Map an RRULE back onto a picker option. The start is the event's DTSTART;
rules that match none of the picker's shapes classify as custom.`,
		Example: `  freqpick classify 2023-07-17 'FREQ=MONTHLY;INTERVAL=1;BYDAY=MO;BYSETPOS=3'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := flags.location()
			if err != nil {
				return err
			}
			start, err := referenceArg(args, 0, loc)
			if err != nil {
				return err
			}

			option := frequency.Classify(start, args[1])
			metrics.Classifications.WithLabelValues(string(option), "cli").Inc()
			out := classifyOutput{Option: option, Label: frequency.LabelFor(option, start)}
			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", out.Option, out.Label)
			return nil
		},
	}
}

func newPreviewCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "preview <option> [date]",
		Short:   "Print the first occurrences of an option's rule",
		Example: `  freqpick preview annually 2024-02-29 --limit 3`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			option, err := frequency.ParseOption(args[0])
			if err != nil {
				return err
			}
			cfg, loc, err := flags.loadConfig()
			if err != nil {
				return err
			}
			ref, err := referenceArg(args, 1, loc)
			if err != nil {
				return err
			}
			if limit <= 0 || limit > cfg.PreviewLimit {
				limit = cfg.PreviewLimit
			}

			var occ []time.Time
			rule, ok := frequency.GenerateRule(option, ref)
			switch {
			case ok:
				occ, err = ics.Preview(rule, ref, limit)
				if err != nil {
					return err
				}
			case option == frequency.NotRepeat:
				occ = []time.Time{ref}
			default:
				return errors.Errorf("option %q has no generated rule", option)
			}

			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), occ)
			}
			for _, t := range occ {
				fmt.Fprintln(cmd.OutOrStdout(), t.Format("Mon 2006-01-02 15:04 MST"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of occurrences to print")
	return cmd
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var (
		summary  string
		location string
		duration time.Duration
		output   string
	)

	cmd := &cobra.Command{
		Use:     "export <option> <date>",
		Short:   "Write a one-event iCalendar file repeating per option",
		Example: `  freqpick export weekly-day 2023-07-26T09:00 --summary "Office hours" -o office.ics`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			option, err := frequency.ParseOption(args[0])
			if err != nil {
				return err
			}
			loc, err := flags.location()
			if err != nil {
				return err
			}
			start, err := referenceArg(args, 1, loc)
			if err != nil {
				return err
			}

			body, err := ics.ExportSeries(ics.SeriesRequest{
				Summary:  summary,
				Location: location,
				Start:    start,
				Duration: duration,
				Option:   option,
			})
			if err != nil {
				return err
			}
			if option.Repeats() {
				metrics.RulesGenerated.WithLabelValues(string(option)).Inc()
			}

			if output == "" || output == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
				return errors.Wrapf(err, "write %s", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "Event summary")
	cmd.Flags().StringVar(&location, "location", "", "Event location")
	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "Event duration")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	return cmd
}
