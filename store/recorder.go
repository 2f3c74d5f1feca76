package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
)

type RecorderConfig struct {
	OutDir string
	// Log dedupes streams across restarts. Optional.
	Log *WrittenLog
	// FlushStreams is how many finished streams are buffered before a file
	// is written. Values below 1 mean every finished stream is written
	// straight away.
	FlushStreams int
	Source       string
	Logger       *slog.Logger
}

// Recorder is a heuristic.Observer that buffers every decision of a game in
// memory and writes finished games to Parquet in batches.
type Recorder struct {
	cfg RecorderConfig

	mu          sync.Mutex
	live        map[string][]DecisionRow
	pending     []DecisionRow
	pendingKeys []string
	closed      bool

	writeMu sync.Mutex
	files   int
	rows    int
}

var _ heuristic.Observer = (*Recorder)(nil)

func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.OutDir == "" {
		return nil, fmt.Errorf("recorder: out dir is required")
	}
	if cfg.FlushStreams < 1 {
		cfg.FlushStreams = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recorder{
		cfg:  cfg,
		live: make(map[string][]DecisionRow),
	}, nil
}

func (r *Recorder) GameStarted(context.Context, heuristic.Request) {}

func (r *Recorder) MoveChosen(_ context.Context, req heuristic.Request, d heuristic.Decision, elapsed time.Duration) {
	key := StreamKey(req.GameID, req.You.ID)
	if r.cfg.Log != nil && r.cfg.Log.Has(key) {
		return
	}
	row := decisionRow(req, d, elapsed, r.cfg.Source)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.live[key] = append(r.live[key], row)
}

func (r *Recorder) GameEnded(ctx context.Context, req heuristic.Request) {
	key := StreamKey(req.GameID, req.You.ID)

	r.mu.Lock()
	rows, ok := r.live[key]
	if !ok || r.closed {
		r.mu.Unlock()
		return
	}
	delete(r.live, key)
	r.pending = append(r.pending, rows...)
	r.pendingKeys = append(r.pendingKeys, key)
	due := len(r.pendingKeys) >= r.cfg.FlushStreams
	r.mu.Unlock()

	if due {
		if err := r.Flush(); err != nil {
			r.cfg.Logger.ErrorContext(ctx, "flush decisions", "game_id", req.GameID, "error", err)
		}
	}
}

// Flush writes every finished stream buffered so far.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	rows, keys := r.pending, r.pendingKeys
	r.pending, r.pendingKeys = nil, nil
	r.mu.Unlock()
	return r.write(rows, keys)
}

func (r *Recorder) write(rows []DecisionRow, keys []string) error {
	if len(rows) == 0 {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	path, err := WriteDecisionsParquetAtomic(r.cfg.OutDir, rows)
	if err != nil {
		return fmt.Errorf("write %d decisions: %w", len(rows), err)
	}
	r.files++
	r.rows += len(rows)
	r.cfg.Logger.Info("wrote decisions", "path", path, "rows", len(rows), "streams", len(keys))

	if r.cfg.Log != nil {
		if err := r.cfg.Log.Add(keys...); err != nil {
			return fmt.Errorf("mark streams written: %w", err)
		}
	}
	return nil
}

// Stats reports how many files and rows have been written.
func (r *Recorder) Stats() (files, rows int) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.files, r.rows
}

// Close writes everything still buffered, including games that never saw an
// end event. Later events are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	rows, keys := r.pending, r.pendingKeys
	for key, live := range r.live {
		rows = append(rows, live...)
		keys = append(keys, key)
	}
	r.pending, r.pendingKeys, r.live = nil, nil, nil
	r.mu.Unlock()

	return r.write(rows, keys)
}

func decisionRow(req heuristic.Request, d heuristic.Decision, elapsed time.Duration, source string) DecisionRow {
	row := DecisionRow{
		GameID:        req.GameID,
		Turn:          int32(req.Turn),
		SnakeID:       req.You.ID,
		Policy:        d.Policy,
		Move:          d.Move.String(),
		ScoreUp:       int32(d.Scores[game.MoveUp]),
		ScoreDown:     int32(d.Scores[game.MoveDown]),
		ScoreLeft:     int32(d.Scores[game.MoveLeft]),
		ScoreRight:    int32(d.Scores[game.MoveRight]),
		Evaluated:     int32(d.Evaluated),
		ElapsedMicros: elapsed.Microseconds(),
		Health:        int32(req.You.Health),
		Length:        int32(req.You.Length),
		HeadX:         int32(req.You.Head.X),
		HeadY:         int32(req.You.Head.Y),
		Source:        source,
	}
	if req.Board != nil {
		row.Width = int32(req.Board.Width)
		row.Height = int32(req.Board.Height)
	}
	return row
}
