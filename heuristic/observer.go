package heuristic

import (
	"context"
	"log/slog"
	"time"

	"github.com/brensch/snekspace/game"
)

// Observer is told about every game start, chosen move and game end.
// Implementations must be safe for concurrent use: the server calls them from
// one goroutine per request.
type Observer interface {
	GameStarted(ctx context.Context, req Request)
	MoveChosen(ctx context.Context, req Request, d Decision, elapsed time.Duration)
	GameEnded(ctx context.Context, req Request)
}

type NopObserver struct{}

func (NopObserver) GameStarted(context.Context, Request)                         {}
func (NopObserver) MoveChosen(context.Context, Request, Decision, time.Duration) {}
func (NopObserver) GameEnded(context.Context, Request)                           {}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (o Observers) GameStarted(ctx context.Context, req Request) {
	for _, obs := range o {
		obs.GameStarted(ctx, req)
	}
}

func (o Observers) MoveChosen(ctx context.Context, req Request, d Decision, elapsed time.Duration) {
	for _, obs := range o {
		obs.MoveChosen(ctx, req, d, elapsed)
	}
}

func (o Observers) GameEnded(ctx context.Context, req Request) {
	for _, obs := range o {
		obs.GameEnded(ctx, req)
	}
}

// LogObserver writes one structured log line per event.
type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) GameStarted(ctx context.Context, req Request) {
	l.Logger.InfoContext(ctx, "game started",
		"game_id", req.GameID,
		"turn", req.Turn,
		"you", req.You.Name,
		"width", req.Board.Width,
		"height", req.Board.Height,
		"snakes", len(req.Board.Snakes),
	)
}

func (l LogObserver) MoveChosen(ctx context.Context, req Request, d Decision, elapsed time.Duration) {
	level := slog.LevelInfo
	if d.Evaluated < len(d.Scores) {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level, "move chosen",
		"game_id", req.GameID,
		"turn", req.Turn,
		"move", d.Move.String(),
		"policy", d.Policy,
		slog.Group("scores",
			"up", d.Scores[game.MoveUp],
			"down", d.Scores[game.MoveDown],
			"left", d.Scores[game.MoveLeft],
			"right", d.Scores[game.MoveRight],
		),
		"evaluated", d.Evaluated,
		"elapsed", elapsed,
	)
}

func (l LogObserver) GameEnded(ctx context.Context, req Request) {
	l.Logger.InfoContext(ctx, "game ended",
		"game_id", req.GameID,
		"turn", req.Turn,
		"result", string(game.OutcomeFor(req.Board, req.You.ID)),
	)
}
