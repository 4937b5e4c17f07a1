// Copyright 2024-2026 Aiku AI

// Command upryzing-sync logs in with a bot token, keeps a live replica of
// everything the bot can see and logs the domain events it produces.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiku/upryzing-go/pkg/client"
)

// These are filled at build time with -ldflags.
var (
	Tag    = "unknown"
	Commit = "unknown"
)

var (
	configPath  string
	metricsAddr string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:          "upryzing-sync",
	Short:        "Mirror chat state with a bot token",
	Long:         "Connects with the bot token from $UPRYZING_BOT_TOKEN and logs every state change until interrupted.",
	Version:      fmt.Sprintf("%s (%s)", Tag, Commit),
	SilenceUsage: true,
	RunE:         run,
}

var exampleConfigCmd = &cobra.Command{
	Use:   "example-config",
	Short: "Print the example configuration",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(cmd.OutOrStdout(), client.ExampleConfig)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: built-in example config)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.AddCommand(exampleConfigCmd)
}

// botTokenEnv names the variable holding the bot token.
const botTokenEnv = client.EnvPrefix + "_BOT_TOKEN"

func botToken() (string, error) {
	token := os.Getenv(botTokenEnv)
	if token == "" {
		return "", fmt.Errorf("%s is not set", botTokenEnv)
	}
	return token, nil
}

func loadConfig() (*client.Config, error) {
	if configPath != "" {
		return client.LoadConfig(configPath)
	}
	cfg := client.DefaultConfig()
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		Level(level).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := botToken()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	c := client.New(*cfg, client.WithLogger(log), client.WithMetrics(reg))
	defer c.Close()
	c.On(func(evt client.Event) {
		logEvent(log, evt)
	})

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := c.LoginBot(ctx, token); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	<-ctx.Done()
	log.Info().Msg("Shutting down")
	return nil
}

func logEvent(log zerolog.Logger, evt client.Event) {
	switch e := evt.(type) {
	case client.ErrorEvent:
		log.Warn().Err(e.Err).Msg("Client error")
	case client.LifecycleEvent:
		log.Info().Str("event", string(e.Type)).Msg("Connection lifecycle")
	case client.MessageCreate:
		log.Info().
			Str("message_id", e.Message.ID).
			Str("channel_id", e.Message.ChannelID).
			Bool("notify", e.Notify).
			Msg("Message received")
	case client.MessageDeleteBulk:
		log.Info().
			Str("channel_id", e.ChannelID).
			Int("count", len(e.Messages)).
			Msg("Messages deleted")
	default:
		log.Debug().Str("event", string(evt.EventType())).Msg("State changed")
	}
}

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
