// Package main implements a Battlesnake API server backed by the one-ply
// heuristic in package heuristic.
//
// Every decision can optionally be written to Parquet, every result to a
// SQLite ledger, and every event streamed to websocket spectators.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/snekspace/heuristic"
	"github.com/brensch/snekspace/logging"
	"github.com/brensch/snekspace/spectate"
	"github.com/brensch/snekspace/store"
)

type config struct {
	listen        string
	logLevel      string
	logFormat     string
	policy        string
	moveTimeout   time.Duration
	latencyBuffer time.Duration
	info          InfoResponse

	decisionDir string
	writtenLog  string
	flushGames  int
	flushEvery  time.Duration
	resultsDB   string
	spectate    bool
}

func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("battlesnake", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := ":8000"
	if port := os.Getenv("PORT"); port != "" {
		listen = net.JoinHostPort("", port)
	}
	fs.StringVar(&cfg.listen, "listen", getEnvOrDefault("LISTEN", listen), "HTTP listen address (PORT env sets the port)")
	fs.StringVar(&cfg.logLevel, "log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.logFormat, "log-format", getEnvOrDefault("LOG_FORMAT", logging.FormatText), "text, json or pretty")
	fs.StringVar(&cfg.policy, "policy", getEnvOrDefault("POLICY", "baseline"), "Move valuator: baseline or extended")
	fs.DurationVar(&cfg.moveTimeout, "move-timeout", getEnvDurationOrDefault("MOVE_TIMEOUT", 500*time.Millisecond), "Move timeout when the request has none")
	fs.DurationVar(&cfg.latencyBuffer, "latency-buffer", getEnvDurationOrDefault("LATENCY_BUFFER", 200*time.Millisecond), "Time kept back from the move timeout for the network")

	fs.StringVar(&cfg.info.Author, "author", getEnvOrDefault("SNAKE_AUTHOR", "ChaelCodes"), "Battlesnake author")
	fs.StringVar(&cfg.info.Color, "color", getEnvOrDefault("SNAKE_COLOR", "#F09383"), "Battlesnake color")
	fs.StringVar(&cfg.info.Head, "head", getEnvOrDefault("SNAKE_HEAD", "bendr"), "Battlesnake head")
	fs.StringVar(&cfg.info.Tail, "tail", getEnvOrDefault("SNAKE_TAIL", "round-bum"), "Battlesnake tail")
	fs.StringVar(&cfg.info.Version, "version", getEnvOrDefault("SNAKE_VERSION", "1.0.0"), "Battlesnake version")

	fs.StringVar(&cfg.decisionDir, "decision-dir", getEnvOrDefault("DECISION_DIR", ""), "Directory for decision .parquet files (empty disables)")
	fs.StringVar(&cfg.writtenLog, "written-log", getEnvOrDefault("WRITTEN_LOG", ""), "Append-only log of flushed games (default <decision-dir>/written.log)")
	fs.IntVar(&cfg.flushGames, "flush-games", getEnvIntOrDefault("FLUSH_GAMES", 50), "Flush decisions when this many games have ended")
	fs.DurationVar(&cfg.flushEvery, "flush-every", getEnvDurationOrDefault("FLUSH_EVERY", 5*time.Minute), "Flush ended games at this interval regardless of count")
	fs.StringVar(&cfg.resultsDB, "results-db", getEnvOrDefault("RESULTS_DB", ""), "SQLite file for game results (empty disables)")
	fs.BoolVar(&cfg.spectate, "spectate", getEnvBoolOrDefault("SPECTATE", false), "Serve a websocket spectator stream on /ws")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	cfg.info.APIVersion = "1"
	if cfg.decisionDir != "" && cfg.writtenLog == "" {
		cfg.writtenLog = filepath.Join(cfg.decisionDir, "written.log")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("flag parse: %v", err)
	}

	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		log.Fatalf("log level: %v", err)
	}
	logger, err := logging.New(os.Stderr, cfg.logFormat, level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	valuator, err := heuristic.ValuatorByName(cfg.policy)
	if err != nil {
		return err
	}

	observers := heuristic.Observers{heuristic.LogObserver{Logger: logger}}
	serverCfg := ServerConfig{
		Info:          cfg.info,
		MoveTimeout:   cfg.moveTimeout,
		LatencyBuffer: cfg.latencyBuffer,
	}

	if cfg.decisionDir != "" {
		written, err := store.OpenWrittenLog(cfg.writtenLog)
		if err != nil {
			return fmt.Errorf("open written log: %w", err)
		}
		defer written.Close()

		rec, err := store.NewRecorder(store.RecorderConfig{
			OutDir:       cfg.decisionDir,
			Log:          written,
			FlushStreams: cfg.flushGames,
			Source:       "server",
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("final decision flush", "error", err)
			}
		}()
		go flushLoop(ctx, rec, cfg.flushEvery, logger)
		observers = append(observers, rec)
		logger.Info("recording decisions", "dir", cfg.decisionDir, "flush_games", cfg.flushGames, "flush_every", cfg.flushEvery)
	}

	if cfg.resultsDB != "" {
		results, err := store.OpenResults(cfg.resultsDB, logger)
		if err != nil {
			return err
		}
		defer results.Close()
		observers = append(observers, results)
		logger.Info("recording results", "db", cfg.resultsDB)
	}

	if cfg.spectate {
		hub := spectate.NewHub(logger)
		defer hub.Close()
		observers = append(observers, hub)
		serverCfg.Spectate = hub
	}

	engine := heuristic.NewEngine(valuator, observers)
	server := NewServer(engine, serverCfg, logger)

	srv := &http.Server{
		Addr:              cfg.listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("battlesnake server listening", "addr", cfg.listen, "policy", engine.Policy())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func flushLoop(ctx context.Context, rec *store.Recorder, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rec.Flush(); err != nil {
				logger.Error("periodic decision flush", "error", err)
			}
		}
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
