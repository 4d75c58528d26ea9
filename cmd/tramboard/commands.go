package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/webui"
)

const defaultConfigPath = "config.yml"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tramboard",
		Short: "Tram departure board for a low-refresh display",
		Long: `tramboard fetches today's timetable for the configured stops, ranks the
departures you can still catch and draws them on a 1-bit board. Without a
subcommand it renders once, which is what a per-minute scheduler should run.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML configuration")

	root.AddCommand(
		newRenderCmd(&configPath),
		newServeCmd(&configPath),
		newLinesCmd(&configPath),
		newStopsCmd(&configPath),
	)
	return root
}

func newRenderCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render the board once and hand it to the configured output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), *configPath)
		},
	}
}

func runRender(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	application, err := BuildApplication(*cfg)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(application, application.Logger, "application")

	return application.RenderOnce(ctx)
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	var boardInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live preview of the board over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			application, err := BuildApplication(*cfg)
			if err != nil {
				return err
			}
			defer logging.SafeCloseWithLogging(application, application.Logger, "application")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := webui.NewWithBoardInterval(application, boardInterval).NewServer(addr)
			return Run(ctx, srv, application.Logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&boardInterval, "board-interval", webui.DefaultBoardInterval, "minimum spacing between preview renders (0 disables throttling)")
	return cmd
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "preview_server_started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down preview server: %w", err)
	}
	logging.LogOperation(logger, "preview_server_stopped")
	return nil
}

func newLinesCmd(configPath *string) *cobra.Command {
	var stopID, stopPost string

	cmd := &cobra.Command{
		Use:   "lines",
		Short: "List the lines that serve a stop post",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAPIConfig(*configPath)
			if err != nil {
				return err
			}
			client := newAPIClient(*cfg, logging.NewLogger(cfg.Verbose, cmd.ErrOrStderr()))

			lines, err := client.LinesAtStop(cmd.Context(), stopID, stopPost)
			if err != nil {
				return fmt.Errorf("listing lines at %s/%s: %w", stopID, stopPost, err)
			}

			out := cmd.OutOrStdout()
			if len(lines) == 0 {
				_, _ = fmt.Fprintf(out, "No lines found for %s/%s. Check the stop id and post number.\n", stopID, stopPost)
				return nil
			}
			_, _ = fmt.Fprintf(out, "Lines at %s/%s: %s\n", stopID, stopPost, strings.Join(lines, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&stopID, "stop-id", "", "stop group id (busstopId)")
	cmd.Flags().StringVar(&stopPost, "stop-post", "", "stop post number (busstopNr)")
	_ = cmd.MarkFlagRequired("stop-id")
	_ = cmd.MarkFlagRequired("stop-post")
	return cmd
}

func newStopsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stops <name>",
		Short: "Find stop ids and post numbers by stop name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAPIConfig(*configPath)
			if err != nil {
				return err
			}
			client := newAPIClient(*cfg, logging.NewLogger(cfg.Verbose, cmd.ErrOrStderr()))

			name := strings.Join(args, " ")
			groups, err := client.SearchStops(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("searching stops: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				_, _ = fmt.Fprintf(out, "No stops match %q.\n", name)
				return nil
			}
			for _, g := range groups {
				line := fmt.Sprintf("%s %s → busstopId=%s, busstopNr=%s", g.Name, g.Post, g.GroupID, g.Post)
				if g.Street != "" {
					line += " (" + g.Street + ")"
				}
				_, _ = fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
