package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
)

func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return files
}

func request(gameID, snakeID string, turn int, board *game.Board) heuristic.Request {
	you := game.Snake{ID: snakeID, Name: snakeID, Health: 90, Length: 3, Head: game.Point{X: 2, Y: 3}}
	return heuristic.Request{GameID: gameID, Turn: turn, Board: board, You: you}
}

func decision(m game.Move) heuristic.Decision {
	return heuristic.Decision{Move: m, Scores: [4]int{100, 25, 0, 65}, Evaluated: 4, Policy: "baseline"}
}

func TestWriteAndReadDecisions(t *testing.T) {
	dir := t.TempDir()
	rows := []DecisionRow{
		{GameID: "g1", Turn: 0, SnakeID: "s1", Policy: "baseline", Move: "up", ScoreUp: 100, Evaluated: 4},
		{GameID: "g1", Turn: 1, SnakeID: "s1", Policy: "baseline", Move: "left", ScoreLeft: 65, Evaluated: 2},
	}
	path, err := WriteDecisionsParquetAtomic(dir, rows)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("file %s not in %s", path, dir)
	}
	tmp, _ := filepath.Glob(filepath.Join(dir, "tmp", "*"))
	if len(tmp) != 0 {
		t.Fatalf("tmp files left behind: %v", tmp)
	}

	got, err := ReadDecisionsParquet(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[1].Move != "left" || got[1].ScoreLeft != 65 || got[1].Evaluated != 2 {
		t.Fatalf("unexpected rows: %+v", got)
	}

	path, err = WriteDecisionsParquetAtomic(dir, nil)
	if err != nil || path != "" {
		t.Fatalf("empty batch wrote %q err=%v", path, err)
	}
}

func TestWrittenLog_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "written.log")
	l, err := OpenWrittenLog(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Add(StreamKey("g1", "a"), StreamKey("g1", "b"), StreamKey("g1", "a"), ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("len=%d want=2", l.Len())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.Add("late"); err != ErrClosed {
		t.Fatalf("add after close err=%v want ErrClosed", err)
	}

	// Simulate a torn write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopen raw: %v", err)
	}
	_, _ = f.WriteString("g2/")
	_ = f.Close()

	l, err = OpenWrittenLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if !l.Has("g1/a") || !l.Has("g1/b") {
		t.Fatalf("keys lost across reopen")
	}
	if l.Has("g2/a") {
		t.Fatalf("torn line should not match a full key")
	}
}

func TestRecorder_FlushesFinishedGames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	wl, err := OpenWrittenLog(filepath.Join(dir, "written.log"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer wl.Close()

	rec, err := NewRecorder(RecorderConfig{OutDir: dir, Log: wl, FlushStreams: 2, Source: "test"})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	board := &game.Board{Width: 11, Height: 11}
	for turn := 0; turn < 3; turn++ {
		rec.MoveChosen(ctx, request("g1", "a", turn, board), decision(game.MoveUp), time.Millisecond)
		rec.MoveChosen(ctx, request("g2", "a", turn, board), decision(game.MoveDown), time.Millisecond)
	}

	rec.GameEnded(ctx, request("g1", "a", 3, board))
	if files := parquetFiles(t, dir); len(files) != 0 {
		t.Fatalf("flushed before threshold: %v", files)
	}

	rec.GameEnded(ctx, request("g2", "a", 3, board))
	files := parquetFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("files=%d want=1", len(files))
	}
	rows, err := ReadDecisionsParquet(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("rows=%d want=6", len(rows))
	}
	r := rows[0]
	if r.Source != "test" || r.Policy != "baseline" || r.ScoreRight != 65 || r.Width != 11 || r.HeadY != 3 || r.ElapsedMicros != 1000 {
		t.Fatalf("unexpected row: %+v", r)
	}
	if !wl.Has("g1/a") || !wl.Has("g2/a") {
		t.Fatalf("streams not marked written")
	}

	// A replayed stream is ignored.
	rec.MoveChosen(ctx, request("g1", "a", 0, board), decision(game.MoveUp), time.Millisecond)
	rec.GameEnded(ctx, request("g1", "a", 1, board))
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if files, rows := rec.Stats(); files != 1 || rows != 6 {
		t.Fatalf("stats files=%d rows=%d", files, rows)
	}
}

func TestRecorder_CloseWritesUnfinishedGames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rec, err := NewRecorder(RecorderConfig{OutDir: dir, FlushStreams: 10})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	board := &game.Board{Width: 7, Height: 7}
	rec.MoveChosen(ctx, request("g1", "a", 0, board), decision(game.MoveLeft), 0)
	rec.MoveChosen(ctx, request("g1", "b", 0, board), decision(game.MoveRight), 0)
	rec.GameEnded(ctx, request("g1", "a", 1, board))

	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files := parquetFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("files=%d want=1", len(files))
	}
	rows, err := ReadDecisionsParquet(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want=2", len(rows))
	}

	rec.MoveChosen(ctx, request("g2", "a", 0, board), decision(game.MoveUp), 0)
	if err := rec.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(parquetFiles(t, dir)) != 1 {
		t.Fatalf("events after close should be dropped")
	}
}

func TestNewRecorder_RequiresDir(t *testing.T) {
	if _, err := NewRecorder(RecorderConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResults_LedgerAndSummary(t *testing.T) {
	ctx := context.Background()
	res, err := OpenResults(filepath.Join(t.TempDir(), "results.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.Close()

	winner := game.Snake{ID: "a", Name: "a", Length: 5}
	final := &game.Board{Width: 11, Height: 11, Snakes: []game.Snake{winner}}

	win := request("g1", "a", 40, final)
	res.MoveChosen(ctx, win, heuristic.Decision{Policy: "extended"}, 0)
	res.GameEnded(ctx, win)

	loss := request("g1", "b", 40, final)
	res.MoveChosen(ctx, loss, heuristic.Decision{Policy: "baseline"}, 0)
	res.GameEnded(ctx, loss)

	draw := request("g2", "b", 12, &game.Board{Width: 11, Height: 11})
	res.MoveChosen(ctx, draw, heuristic.Decision{Policy: "baseline"}, 0)
	res.GameEnded(ctx, draw)
	// Ending twice replaces the row.
	if err := res.Record(ctx, draw, "baseline"); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := res.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := []PolicyRecord{
		{Policy: "baseline", Games: 2, Wins: 0, Losses: 1, Draws: 1, AvgTurns: 26},
		{Policy: "extended", Games: 1, Wins: 1, Losses: 0, Draws: 0, AvgTurns: 40},
	}
	if len(got) != len(want) {
		t.Fatalf("summary=%+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("summary[%d]=%+v want=%+v", i, got[i], want[i])
		}
	}
}
