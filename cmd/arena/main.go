// Command arena plays local games between heuristic policies, records every
// decision to Parquet and every result to SQLite, and shows progress in a
// terminal dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
	"github.com/brensch/snekspace/logging"
	"github.com/brensch/snekspace/selfplay"
	"github.com/brensch/snekspace/store"
)

var stepsPlayed atomic.Int64

type GameUpdate struct {
	WorkerID int
	Result   selfplay.GameResult
}

type doneMsg struct{}

type TickMsg time.Time

type model struct {
	target      int
	gamesPlayed int
	wins        map[string]int
	draws       int
	totalTurns  int
	steps       int64
	startTime   time.Time
	recentGames []string
	updates     <-chan GameUpdate
	done        bool
	cancel      context.CancelFunc
}

func initialModel(target int, updates <-chan GameUpdate, cancel context.CancelFunc) model {
	return model{
		target:    target,
		wins:      make(map[string]int),
		startTime: time.Now(),
		updates:   updates,
		cancel:    cancel,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates <-chan GameUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return u
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.cancel()
			return m, nil
		}
	case TickMsg:
		m.steps = stepsPlayed.Load()
		return m, tickCmd()
	case GameUpdate:
		m.record(msg)
		return m, waitForUpdate(m.updates)
	case doneMsg:
		m.done = true
		m.steps = stepsPlayed.Load()
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) record(u GameUpdate) {
	m.gamesPlayed++
	m.totalTurns += u.Result.Turns
	winner := u.Result.WinnerID
	if winner == "" {
		m.draws++
		winner = "draw"
	} else {
		m.wins[winner]++
	}
	line := fmt.Sprintf("worker %d: %s winner=%s turns=%d", u.WorkerID, shortID(u.Result.GameID), winner, u.Result.Turns)
	m.recentGames = append([]string{line}, m.recentGames...)
	if len(m.recentGames) > 10 {
		m.recentGames = m.recentGames[:10]
	}
}

func (m model) View() string {
	elapsed := time.Since(m.startTime)
	var gamesPerSec, stepsPerSec float64
	if elapsed >= time.Second {
		gamesPerSec = float64(m.gamesPlayed) / elapsed.Seconds()
		stepsPerSec = float64(m.steps) / elapsed.Seconds()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games:      %d/%d\n", m.gamesPlayed, m.target)
	fmt.Fprintf(&sb, "Turns:      %d\n", m.steps)
	fmt.Fprintf(&sb, "Duration:   %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Games/Sec:  %.2f\n", gamesPerSec)
	fmt.Fprintf(&sb, "Turns/Sec:  %.2f\n", stepsPerSec)
	if m.gamesPlayed > 0 {
		fmt.Fprintf(&sb, "Avg turns:  %.1f\n", float64(m.totalTurns)/float64(m.gamesPlayed))
	}
	sb.WriteString("\nWins:\n")
	for _, id := range slices.Sorted(maps.Keys(m.wins)) {
		fmt.Fprintf(&sb, "  %-14s %d\n", id, m.wins[id])
	}
	fmt.Fprintf(&sb, "  %-14s %d\n", "draw", m.draws)

	sb.WriteString("\nRecent games:\n")
	for _, g := range m.recentGames {
		sb.WriteString("  " + g + "\n")
	}
	if m.done {
		sb.WriteString("\nDone.\n")
	} else {
		sb.WriteString("\nPress q to stop after the current games.\n")
	}
	return sb.String()
}

type config struct {
	games       int
	workers     int
	policies    string
	width       int
	height      int
	maxTurns    int
	moveTimeout time.Duration
	seed        int64
	decisionDir string
	resultsDB   string
	flushGames  int
	noTUI       bool
	logFile     string
	logLevel    string
	logFormat   string
}

func main() {
	var cfg config
	flag.IntVar(&cfg.games, "games", 100, "Number of games to play")
	flag.IntVar(&cfg.workers, "workers", 4, "Number of games played in parallel")
	flag.StringVar(&cfg.policies, "policies", "baseline,extended", "Comma separated policy per snake")
	flag.IntVar(&cfg.width, "width", 11, "Board width")
	flag.IntVar(&cfg.height, "height", 11, "Board height")
	flag.IntVar(&cfg.maxTurns, "max-turns", 500, "Stop a game after this many turns")
	flag.DurationVar(&cfg.moveTimeout, "move-timeout", 300*time.Millisecond, "Deadline for each decision")
	flag.Int64Var(&cfg.seed, "seed", 0, "RNG seed (0 uses the clock)")
	flag.StringVar(&cfg.decisionDir, "decision-dir", filepath.Join("arena-data", "decisions"), "Directory for decision .parquet files (empty disables)")
	flag.StringVar(&cfg.resultsDB, "results-db", filepath.Join("arena-data", "results.db"), "SQLite results ledger")
	flag.IntVar(&cfg.flushGames, "flush-games", 50, "Snake games buffered per parquet file")
	flag.BoolVar(&cfg.noTUI, "no-tui", false, "Log progress instead of showing the dashboard")
	flag.StringVar(&cfg.logFile, "log-file", "arena.log", "Log destination while the dashboard is shown")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.StringVar(&cfg.logFormat, "log-format", logging.FormatText, "text, json or pretty")
	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatalf("arena: %v", err)
	}
}

func run(cfg config) error {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return err
	}
	var logOut io.Writer = os.Stderr
	if !cfg.noTUI {
		f, err := os.OpenFile(cfg.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(logOut, cfg.logFormat, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	results, err := store.OpenResults(cfg.resultsDB, logger)
	if err != nil {
		return err
	}
	defer results.Close()
	observers := heuristic.Observers{results}

	var rec *store.Recorder
	if cfg.decisionDir != "" {
		rec, err = store.NewRecorder(store.RecorderConfig{
			OutDir:       cfg.decisionDir,
			FlushStreams: cfg.flushGames,
			Source:       "arena",
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

	players, err := buildPlayers(cfg.policies, observers)
	if err != nil {
		return err
	}

	seed := cfg.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	playCfg := selfplay.DefaultConfig
	playCfg.Width, playCfg.Height = cfg.width, cfg.height
	playCfg.MaxTurns = cfg.maxTurns
	playCfg.MoveTimeout = cfg.moveTimeout

	logger.Info("arena starting", "games", cfg.games, "workers", cfg.workers, "policies", cfg.policies, "seed", seed)
	updates := runWorkers(ctx, cfg.games, cfg.workers, seed, players, playCfg, logger)

	if cfg.noTUI {
		for u := range updates {
			logger.Info("game finished", "worker", u.WorkerID, "game_id", u.Result.GameID, "winner", u.Result.WinnerID, "turns", u.Result.Turns)
		}
	} else {
		p := tea.NewProgram(initialModel(cfg.games, updates, cancel))
		if _, err := p.Run(); err != nil {
			cancel()
			for range updates {
			}
			return fmt.Errorf("dashboard: %w", err)
		}
		// The dashboard may quit before the workers do.
		cancel()
		for range updates {
		}
	}

	if rec != nil {
		if err := rec.Close(); err != nil {
			return fmt.Errorf("flush decisions: %w", err)
		}
		files, rows := rec.Stats()
		logger.Info("decisions written", "files", files, "rows", rows, "dir", cfg.decisionDir)
	}

	summary, err := results.Summary(context.Background())
	if err != nil {
		return err
	}
	fmt.Println("policy          games   won  lost  draw  avg turns")
	for _, r := range summary {
		fmt.Printf("%-14s %6d %5d %5d %5d %10.1f\n", r.Policy, r.Games, r.Wins, r.Losses, r.Draws, r.AvgTurns)
	}
	return nil
}

func buildPlayers(policies string, obs heuristic.Observer) ([]selfplay.Player, error) {
	names := strings.Split(policies, ",")
	players := make([]selfplay.Player, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		v, err := heuristic.ValuatorByName(name)
		if err != nil {
			return nil, err
		}
		id := fmt.Sprintf("%s-%d", v.Name(), i+1)
		players = append(players, selfplay.Player{ID: id, Name: id, Engine: heuristic.NewEngine(v, obs)})
	}
	return players, nil
}

// runWorkers plays games on a fixed pool of goroutines. The returned channel
// is closed once every worker has stopped.
func runWorkers(ctx context.Context, games, workers int, seed int64, players []selfplay.Player, cfg selfplay.Config, logger *slog.Logger) <-chan GameUpdate {
	workers = max(workers, 1)
	updates := make(chan GameUpdate, workers)
	jobs := make(chan int)

	go func() {
		defer close(jobs)
		for i := 0; i < games; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for n := range jobs {
				rng := rand.New(rand.NewSource(seed + int64(n)*1000003))
				onTurn := func(int, *game.Board) { stepsPlayed.Add(1) }
				res, err := selfplay.PlayGame(ctx, uuid.New().String(), players, cfg, rng, onTurn)
				if err != nil {
					logger.Error("play game", "worker", workerID, "error", err)
					return
				}
				if res.Aborted {
					return
				}
				updates <- GameUpdate{WorkerID: workerID, Result: res}
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(updates)
	}()
	return updates
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
