package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MikeSquared-Agency/tgconv/internal/config"
	"github.com/MikeSquared-Agency/tgconv/internal/hermes"
	"github.com/MikeSquared-Agency/tgconv/internal/pipeline"
	"github.com/MikeSquared-Agency/tgconv/internal/store"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(config.Load(), args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	setupLogging(cfg.LogLevel, stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("tgconv starting", "input", cfg.InputPath, "output", cfg.OutputPath)

	runner := pipeline.NewRunner(pipeline.Config{
		InputPath:     cfg.InputPath,
		OutputPath:    cfg.OutputPath,
		SamplesPath:   cfg.SamplesPath,
		ChatID:        cfg.ChatID,
		ModelFromID:   cfg.ModelFromID,
		ThreadGap:     cfg.ThreadGap,
		MaxContext:    cfg.MaxContext,
		IncludeMedia:  cfg.IncludeMedia,
		StrictReplies: cfg.StrictReplies,
	}, slog.Default())

	// Database mirrors (optional)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			return exitFailure
		}
		defer db.Close()
		runner.AddSink("postgres", db)
		slog.Info("database connected")
	}
	if cfg.SQLitePath != "" {
		lite, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			slog.Error("failed to open sqlite mirror", "error", err)
			return exitFailure
		}
		defer lite.Close()
		runner.AddSink("sqlite", lite)
		slog.Info("sqlite mirror ready", "path", cfg.SQLitePath)
	}

	// NATS/Hermes (optional)
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			return exitFailure
		}
		defer hermesClient.Close()
		runner.SetPublisher(hermesClient)
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		slog.Error("conversion failed", "error", err)
		fmt.Fprintf(stderr, "tgconv: %v\n", err)
		return exitFailure
	}

	pipeline.PrintSummary(stdout, summary, pipeline.Config{
		OutputPath:  cfg.OutputPath,
		SamplesPath: cfg.SamplesPath,
	})
	return exitOK
}

// parseFlags overrides the environment configuration with command-line
// flags. A positional argument is taken as the input path.
func parseFlags(cfg config.Config, args []string, stderr io.Writer) (config.Config, error) {
	fs := flag.NewFlagSet("tgconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tgconv [options] [result.json]")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Telegram export file")
	fs.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "conversation table (CSV)")
	fs.StringVar(&cfg.SamplesPath, "samples", cfg.SamplesPath, "fine-tuning samples (JSONL); empty disables")
	fs.Int64Var(&cfg.ChatID, "chat-id", cfg.ChatID, "chat to convert from a full-account export")
	fs.StringVar(&cfg.ModelFromID, "model-from-id", cfg.ModelFromID, "sender id labelled as the model (default user<chat id>)")
	fs.DurationVar(&cfg.ThreadGap, "gap", cfg.ThreadGap, "longest silence that continues a conversation; 0 disables")
	fs.IntVar(&cfg.MaxContext, "max-context", cfg.MaxContext, "turns per sample, including the model message")
	fs.BoolVar(&cfg.IncludeMedia, "include-media", cfg.IncludeMedia, "keep captioned media messages")
	fs.BoolVar(&cfg.StrictReplies, "strict-replies", cfg.StrictReplies, "fail on unusable reply references")
	fs.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "mirror rows into this SQLite file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.InputPath = fs.Arg(0)
	default:
		return cfg, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}

	if cfg.InputPath == "" {
		return cfg, errors.New("input path is required")
	}
	if cfg.OutputPath == "" {
		return cfg, errors.New("output path is required")
	}
	if cfg.ThreadGap < 0 {
		return cfg, fmt.Errorf("gap must not be negative, got %s", cfg.ThreadGap)
	}
	if cfg.MaxContext < 2 && cfg.SamplesPath != "" {
		return cfg, fmt.Errorf("max-context must be at least 2, got %d", cfg.MaxContext)
	}
	return cfg, nil
}

// setupLogging sends JSON logs to w. stdout is kept for the summary.
func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
