package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
)

// Results is a heuristic.Observer that keeps one row per finished game and
// snake in SQLite.
type Results struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	policies map[string]string
}

var _ heuristic.Observer = (*Results)(nil)

// PolicyRecord aggregates the ledger for one policy.
type PolicyRecord struct {
	Policy   string
	Games    int
	Wins     int
	Losses   int
	Draws    int
	AvgTurns float64
}

func OpenResults(path string, logger *slog.Logger) (*Results, error) {
	if path == "" {
		return nil, fmt.Errorf("results path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	// One writer; this also keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS results (
		game_id TEXT NOT NULL,
		snake_id TEXT NOT NULL,
		snake_name TEXT,
		policy TEXT,
		outcome TEXT NOT NULL,
		turns INTEGER,
		length INTEGER,
		ended_at DATETIME,
		PRIMARY KEY (game_id, snake_id)
	);
	CREATE INDEX IF NOT EXISTS idx_results_policy ON results(policy);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results schema: %w", err)
	}

	return &Results{db: db, logger: logger, policies: make(map[string]string)}, nil
}

func (r *Results) GameStarted(context.Context, heuristic.Request) {}

func (r *Results) MoveChosen(_ context.Context, req heuristic.Request, d heuristic.Decision, _ time.Duration) {
	key := StreamKey(req.GameID, req.You.ID)
	r.mu.Lock()
	r.policies[key] = d.Policy
	r.mu.Unlock()
}

func (r *Results) GameEnded(ctx context.Context, req heuristic.Request) {
	key := StreamKey(req.GameID, req.You.ID)
	r.mu.Lock()
	policy := r.policies[key]
	delete(r.policies, key)
	r.mu.Unlock()

	if err := r.Record(ctx, req, policy); err != nil {
		r.logger.ErrorContext(ctx, "record result", "game_id", req.GameID, "error", err)
	}
}

// Record stores the outcome of req.Board for req.You. A second record for
// the same game and snake replaces the first.
func (r *Results) Record(ctx context.Context, req heuristic.Request, policy string) error {
	outcome := game.OutcomeFor(req.Board, req.You.ID)
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO results (game_id, snake_id, snake_name, policy, outcome, turns, length, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.GameID, req.You.ID, req.You.Name, policy, string(outcome), req.Turn, req.You.Length, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Summary returns one record per policy, ordered by policy name.
func (r *Results) Summary(ctx context.Context) ([]PolicyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(policy, ''),
			COUNT(*),
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
			AVG(turns)
		FROM results
		GROUP BY COALESCE(policy, '')
		ORDER BY 1`,
		string(game.OutcomeWon), string(game.OutcomeLost), string(game.OutcomeDraw),
	)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []PolicyRecord
	for rows.Next() {
		var rec PolicyRecord
		var avg sql.NullFloat64
		if err := rows.Scan(&rec.Policy, &rec.Games, &rec.Wins, &rec.Losses, &rec.Draws, &avg); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		rec.AvgTurns = avg.Float64
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Results) Close() error {
	return r.db.Close()
}
