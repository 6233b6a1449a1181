package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"freqpick/internal/feed"
	"freqpick/internal/ics"
	appLog "freqpick/internal/log"
	"freqpick/internal/web"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and keep the configured feeds classified",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := flags.loadConfig()
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				cfg.Listen = listen
			}

			appLog.Info("freqpick starting",
				"version", version,
				"listen", cfg.Listen,
				"timezone", loc.String(),
				"refresh", cfg.RefreshCron,
				"ics_count", len(cfg.ICS),
			)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			refresher := feed.NewRefresher(cfg, loc, ics.NewFetcher(cfg.CacheDir))
			server := web.NewServer(cfg, loc, refresher)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return refresher.Run(gctx) })
			g.Go(func() error { return server.ListenAndServe(gctx) })
			err = g.Wait()

			appLog.Info("freqpick exiting")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func newClassifyFeedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify-feed",
		Short: "Fetch the configured feeds once and classify their recurring events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.ICS) == 0 {
				return errors.Errorf("no ics sources configured in %q", flags.configPath)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			snap, err := feed.NewRefresher(cfg, loc, ics.NewFetcher(cfg.CacheDir)).Refresh(ctx)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), snap)
			}

			w := cmd.OutOrStdout()
			for _, ev := range snap.Events {
				fmt.Fprintf(w, "%-16s %-32s %s\n", ev.Frequency, ev.Label, ev.Summary)
				fmt.Fprintf(w, "  %s\n", ev.RRule)
			}
			for _, e := range snap.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", strings.TrimSpace(e))
			}
			return nil
		},
	}
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
