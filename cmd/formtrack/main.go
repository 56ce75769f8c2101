package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/vincentbai/formtrack/internal/config"
	"github.com/vincentbai/formtrack/internal/database"
	"github.com/vincentbai/formtrack/internal/datalayer"
	"github.com/vincentbai/formtrack/internal/logging"
	"github.com/vincentbai/formtrack/internal/replay"
	"github.com/vincentbai/formtrack/internal/server"
)

const usage = `usage: formtrack <command> [flags]

commands:
  serve                 run the replay agent over HTTP
  replay [-db] <script> replay a YAML script and print emitted events as NDJSON
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(logger)

	switch os.Args[1] {
	case "serve":
		err = serve(cfg, logger)
	case "replay":
		err = runReplay(cfg, logger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("formtrack failed", "error", err)
		os.Exit(1)
	}
}

func openDatabase(path string) (*database.Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create application directory: %w", err)
	}
	return database.NewDatabase(path)
}

func serve(cfg config.Config, logger *slog.Logger) error {
	db, err := openDatabase(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return server.NewServer(db, cfg.Address, logger).Start()
}

func runReplay(cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	store := fs.Bool("db", false, "also store events in the configured database")
	pretty := fs.Bool("pretty", false, "indent JSON output")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("replay expects exactly one script path")
	}

	script, err := replay.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	queues := []datalayer.Queue{datalayer.NewWriter(os.Stdout, *pretty)}
	if *store {
		db, err := openDatabase(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		sessionID := uuid.NewString()
		queues = append(queues, db.Queue(sessionID))
		logger.Info("storing replay", "session_id", sessionID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &replay.Runner{Logger: logger}
	return runner.Run(ctx, script, datalayer.NewMulti(queues...))
}
