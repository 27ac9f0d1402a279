package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	presence "github.com/WelcomerTeam/Presence-Kit"
	_ "github.com/WelcomerTeam/Presence-Kit/feeds"
	"github.com/WelcomerTeam/Presence-Kit/internal/tui"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	logFile    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	options := &rootOptions{}

	root := &cobra.Command{
		Use:           "presence",
		Short:         "Live Discord presence cards backed by Lanyard",
		Version:       presence.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if options.envFile == "" {
				return nil
			}

			err := godotenv.Load(options.envFile)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load env file: %w", err)
			}

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&options.configPath, "config", "c", "presence.yaml", "path to the configuration file (.yaml, .yml or .json)")
	flags.StringVar(&options.envFile, "env-file", ".env", "dotenv file to load before reading the configuration")
	flags.StringVar(&options.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&options.logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVar(&options.logFile, "log-file", "", "write logs to a rotating file instead of stderr")

	root.AddCommand(newServeCommand(options), newWatchCommand(options))

	return root
}

func newServeCommand(options *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the card over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(options, os.Stderr)
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			configProvider := presence.NewConfigProviderFromPath(options.configPath)

			config, err := configProvider.GetConfig(ctx)
			if err != nil {
				return err
			}

			config.ApplyEnvironment()

			daemon := presence.NewDaemon(logger, configProvider).
				WithPanicHandler(panicHandler(logger))

			if config.PrometheusAddress != "" {
				daemon.WithPrometheusAnalytics(
					&http.Server{
						Addr:              config.PrometheusAddress,
						WriteTimeout:      time.Second * 10,
						ReadTimeout:       time.Second * 10,
						ReadHeaderTimeout: time.Second * 10,
						IdleTimeout:       time.Second * 10,
						ErrorLog:          slog.NewLogLogger(logger.With("service", "prometheus").Handler(), slog.LevelError),
					},
					prometheus.NewPedanticRegistry(),
					promhttp.HandlerOpts{},
				)
			}

			err = daemon.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			group, groupCtx := errgroup.WithContext(ctx)

			group.Go(func() error {
				return daemon.Serve(groupCtx)
			})

			group.Go(func() error {
				<-groupCtx.Done()
				daemon.Stop(context.WithoutCancel(groupCtx))

				return nil
			})

			return group.Wait()
		},
	}
}

func newWatchCommand(options *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the card in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The terminal belongs to the card, so logs go to --log-file or nowhere.
			logger := newLogger(options, io.Discard)
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			config, err := presence.NewConfigProviderFromPath(options.configPath).GetConfig(ctx)
			if err != nil {
				return err
			}

			config.ApplyEnvironment()

			if userID != "" {
				config.UserID = userID
			}

			err = config.Validate()
			if err != nil {
				return err
			}

			subscriber, err := presence.NewSubscriber(logger, config.Feed)
			if err != nil {
				return err
			}

			card := presence.NewCard(logger, subscriber, config.Display.DisplayConfig(),
				presence.WithCardTickInterval(config.TickInterval.OrDefault(presence.DefaultTickInterval)),
				presence.WithPanicHandler(panicHandler(logger)),
			)
			defer card.Unmount()

			err = card.Mount(ctx, config.UserID)
			if err != nil {
				return err
			}

			return tui.Run(ctx, card)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id to watch instead of the configured one")

	return cmd
}

func newLogger(options *rootOptions, output io.Writer) *slog.Logger {
	if options.logFile != "" {
		output = &lumberjack.Logger{
			Filename:   options.logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
	}

	handlerOptions := &slog.HandlerOptions{
		Level: parseLevel(options.logLevel),
	}

	var handler slog.Handler

	if strings.EqualFold(options.logFormat, "json") {
		handler = slog.NewJSONHandler(output, handlerOptions)
	} else {
		handler = slog.NewTextHandler(output, handlerOptions)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level

	err := parsed.UnmarshalText([]byte(level))
	if err != nil {
		return slog.LevelInfo
	}

	return parsed
}

func panicHandler(logger *slog.Logger) presence.PanicHandler {
	return func(card *presence.Card, r any) {
		logger.Error("Panic occurred", "error", r, "user_id", card.UserID())

		stackTrace := debug.Stack()

		filename := fmt.Sprintf("logs/panic_%s.log", time.Now().Format("2006-01-02_15-04-05"))

		if err := os.MkdirAll("logs", 0o755); err != nil {
			logger.Error("Failed to create logs directory", "error", err)

			return
		}

		if err := os.WriteFile(filename, stackTrace, 0o600); err != nil {
			logger.Error("Failed to write stack trace to file", "error", err)
		}
	}
}
