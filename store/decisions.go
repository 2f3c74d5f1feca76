// Package store persists move decisions and game results.
//
// Decisions go to zstd-compressed Parquet batch files so they can be queried
// with DuckDB after the fact; results go to a small SQLite ledger.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const decisionSchema = "decision_row_v1"

// DecisionRow is one chosen move as seen by the snake that made it.
//
// Move and the score columns use the wire names: up, down, left, right.
// Evaluated below 4 means the turn deadline cut the evaluation short.
type DecisionRow struct {
	GameID        string `parquet:"game_id,dict"`
	Turn          int32  `parquet:"turn"`
	SnakeID       string `parquet:"snake_id,dict"`
	Policy        string `parquet:"policy,dict"`
	Move          string `parquet:"move,dict"`
	ScoreUp       int32  `parquet:"score_up"`
	ScoreDown     int32  `parquet:"score_down"`
	ScoreLeft     int32  `parquet:"score_left"`
	ScoreRight    int32  `parquet:"score_right"`
	Evaluated     int32  `parquet:"evaluated"`
	ElapsedMicros int64  `parquet:"elapsed_us"`
	Health        int32  `parquet:"health"`
	Length        int32  `parquet:"length"`
	HeadX         int32  `parquet:"head_x"`
	HeadY         int32  `parquet:"head_y"`
	Width         int32  `parquet:"width"`
	Height        int32  `parquet:"height"`
	Source        string `parquet:"source,dict"`
}

// WriteDecisionsParquetAtomic writes rows into outDir/tmp and then renames the
// file into outDir, so readers globbing outDir/*.parquet never see a partial
// file. It returns the final path. Nothing is written for an empty batch.
func WriteDecisionsParquetAtomic(outDir string, rows []DecisionRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("decisions_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", decisionSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadDecisionsParquet loads every row of one decision file.
func ReadDecisionsParquet(path string) ([]DecisionRow, error) {
	rows, err := parquet.ReadFile[DecisionRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
