// Command replay downloads finished Battlesnake games and asks a local policy
// what it would have done on every turn of one snake.
//
//	replay -games 1a2b...,3c4d... -snake "My Snake" -policy extended
//	replay -page https://play.battlesnake.com/leaderboard/standard/stats -snake "My Snake"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/snekspace/heuristic"
	"github.com/brensch/snekspace/logging"
	"github.com/brensch/snekspace/replay"
	"github.com/brensch/snekspace/store"
)

type config struct {
	games       string
	page        string
	snake       string
	policy      string
	engineURL   string
	moveTimeout time.Duration
	decisionDir string
	writtenLog  string
	verbose     bool
	logLevel    string
	logFormat   string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.games, "games", "", "Comma separated game IDs")
	flag.StringVar(&cfg.page, "page", "", "HTML page to collect game links from")
	flag.StringVar(&cfg.snake, "snake", "", "Snake ID or name to replay as")
	flag.StringVar(&cfg.policy, "policy", "baseline", "baseline or extended")
	flag.StringVar(&cfg.engineURL, "engine-url", replay.DefaultEngineURL, "Game event stream URL, %s is the game ID")
	flag.DurationVar(&cfg.moveTimeout, "move-timeout", 400*time.Millisecond, "Deadline for each decision")
	flag.StringVar(&cfg.decisionDir, "decision-dir", "", "Write replayed decisions as .parquet here (empty disables)")
	flag.StringVar(&cfg.writtenLog, "written-log", "", "Dedupe log for -decision-dir (default <decision-dir>/written.log)")
	flag.BoolVar(&cfg.verbose, "v", false, "Print every disagreement")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.StringVar(&cfg.logFormat, "log-format", logging.FormatText, "text, json or pretty")
	flag.Parse()

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

func run(cfg config, out io.Writer) error {
	if cfg.snake == "" {
		return fmt.Errorf("-snake is required")
	}
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.logFormat, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	v, err := heuristic.ValuatorByName(cfg.policy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids := splitList(cfg.games)
	if cfg.page != "" {
		found, err := replay.FindGameIDs(ctx, &http.Client{Timeout: 30 * time.Second}, cfg.page)
		if err != nil {
			return err
		}
		logger.Info("games discovered", "page", cfg.page, "count", len(found))
		ids = append(ids, found...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no games: pass -games or -page")
	}

	var observers heuristic.Observers
	var rec *store.Recorder
	if cfg.decisionDir != "" {
		logPath := cfg.writtenLog
		if logPath == "" {
			logPath = filepath.Join(cfg.decisionDir, "written.log")
		}
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return err
		}
		wl, err := store.OpenWrittenLog(logPath)
		if err != nil {
			return err
		}
		defer wl.Close()
		rec, err = store.NewRecorder(store.RecorderConfig{
			OutDir:       cfg.decisionDir,
			Log:          wl,
			FlushStreams: 50,
			Source:       "replay",
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		observers = append(observers, rec)
	}
	if level <= slog.LevelDebug {
		observers = append(observers, heuristic.LogObserver{Logger: logger})
	}
	engine := heuristic.NewEngine(v, observers)

	dl := replay.NewDownloader(logger)
	dl.EngineURL = cfg.engineURL

	var turns, agreed, failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g, err := dl.Download(ctx, id)
		if err != nil {
			logger.Warn("download failed", "game_id", id, "error", err)
			failed++
			continue
		}
		rep, err := replay.Run(ctx, g, cfg.snake, engine, cfg.moveTimeout)
		if err != nil {
			logger.Warn("replay failed", "game_id", id, "error", err)
			failed++
			continue
		}
		printReport(out, rep, cfg.verbose)
		turns += rep.Turns
		agreed += rep.Agreed
	}

	if rec != nil {
		if err := rec.Close(); err != nil {
			return fmt.Errorf("flush decisions: %w", err)
		}
		files, rows := rec.Stats()
		logger.Info("decisions written", "files", files, "rows", rows, "dir", cfg.decisionDir)
	}

	if turns > 0 {
		fmt.Fprintf(out, "total: %d/%d turns agree (%.1f%%), %d games failed\n",
			agreed, turns, 100*float64(agreed)/float64(turns), failed)
	}
	return ctx.Err()
}

func printReport(out io.Writer, rep replay.Report, verbose bool) {
	fmt.Fprintf(out, "%s %s: %d/%d turns agree (%.1f%%)\n",
		rep.GameID, rep.SnakeName, rep.Agreed, rep.Turns, 100*rep.Agreement())
	if !verbose {
		return
	}
	for _, d := range rep.Disagreements {
		fmt.Fprintf(out, "  turn %3d: ours %-5s theirs %s\n", d.Turn, d.Ours, d.Theirs)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
