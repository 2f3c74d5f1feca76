package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// PolicyStats summarises every decision one policy made.
type PolicyStats struct {
	Policy    string
	Games     int64
	Decisions int64
	Up        int64
	Down      int64
	Left      int64
	Right     int64
	CutShort  int64
	AvgBest   float64
	AvgMicros float64
}

// TurnBucket is the average best score over a range of turns.
type TurnBucket struct {
	Policy    string
	FromTurn  int64
	Decisions int64
	AvgBest   float64
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// openDecisions returns an in-memory DuckDB with a decisions view over every
// *.parquet file directly inside the given directories.
func openDecisions(dirs []string) (*sql.DB, error) {
	globs := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		globs = append(globs, "'"+escapeSQLString(filepath.Join(dir, "*.parquet"))+"'")
	}
	if len(globs) == 0 {
		return nil, fmt.Errorf("no decision directories given")
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	_, _ = db.Exec("PRAGMA threads=4")

	view := `CREATE OR REPLACE VIEW decisions AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)`
	if _, err := db.Exec(view); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create decisions view: %w", err)
	}
	return db, nil
}

func queryPolicyStats(ctx context.Context, db *sql.DB) ([]PolicyStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			policy,
			count(DISTINCT game_id),
			count(*),
			count(*) FILTER (WHERE move = 'up'),
			count(*) FILTER (WHERE move = 'down'),
			count(*) FILTER (WHERE move = 'left'),
			count(*) FILTER (WHERE move = 'right'),
			count(*) FILTER (WHERE evaluated < 4),
			avg(greatest(score_up, score_down, score_left, score_right)),
			avg(elapsed_us)
		FROM decisions
		GROUP BY policy
		ORDER BY policy`)
	if err != nil {
		return nil, fmt.Errorf("query policy stats: %w", err)
	}
	defer rows.Close()

	var out []PolicyStats
	for rows.Next() {
		var s PolicyStats
		if err := rows.Scan(&s.Policy, &s.Games, &s.Decisions, &s.Up, &s.Down, &s.Left, &s.Right, &s.CutShort, &s.AvgBest, &s.AvgMicros); err != nil {
			return nil, fmt.Errorf("scan policy stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryTurnBuckets groups decisions into buckets of the given number of turns.
func queryTurnBuckets(ctx context.Context, db *sql.DB, bucket int) ([]TurnBucket, error) {
	if bucket < 1 {
		bucket = 1
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			policy,
			CAST((turn // %[1]d) * %[1]d AS BIGINT) AS from_turn,
			count(*),
			avg(greatest(score_up, score_down, score_left, score_right))
		FROM decisions
		GROUP BY policy, from_turn
		ORDER BY policy, from_turn`, bucket))
	if err != nil {
		return nil, fmt.Errorf("query turn buckets: %w", err)
	}
	defer rows.Close()

	var out []TurnBucket
	for rows.Next() {
		var b TurnBucket
		if err := rows.Scan(&b.Policy, &b.FromTurn, &b.Decisions, &b.AvgBest); err != nil {
			return nil, fmt.Errorf("scan turn bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
