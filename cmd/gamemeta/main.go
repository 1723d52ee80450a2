package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/baggage"

	"github.com/ryanm101/gamemeta/internal/config"
	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/tracing"
)

var version = "0.1.0"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "gamemeta",
	Short:        "gamemeta fetches, matches and merges game metadata into a record store.",
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputCfg.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&outputCfg.Quiet, "quiet", "q", false, "Suppress non-error output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Set global baggage
	m, _ := baggage.NewMember("app.version", version)
	b, _ := baggage.New(m)
	ctx = baggage.ContextWithBaggage(ctx, b)

	// Load config
	var err error
	cfg, err = config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	// Setup Logging
	logging.Setup(logging.Config{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	})

	// Setup Tracing
	tracing.ServiceVersion = version
	shutdown, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		logging.Error("failed to setup tracing", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	code := 0
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code = 1
	}

	stop()
	if err := shutdown(context.Background()); err != nil {
		logging.Error("failed to shutdown tracing", "error", err)
	}
	os.Exit(code)
}
