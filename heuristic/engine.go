package heuristic

import (
	"context"
	"time"

	"github.com/brensch/snekspace/game"
)

// Request is everything the engine knows about one turn. It is built fresh for
// every request and dropped once the move is returned.
type Request struct {
	GameID string
	Turn   int
	Board  *game.Board
	You    game.Snake
}

// Engine is the entry point for the three game lifecycle hooks.
// It holds no per-game state, so one Engine serves any number of concurrent
// games.
type Engine struct {
	selector Selector
	observer Observer
}

// NewEngine returns an engine scoring moves with v. A nil observer is allowed.
func NewEngine(v Valuator, obs Observer) *Engine {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Engine{
		selector: Selector{Valuator: v},
		observer: obs,
	}
}

func (e *Engine) Policy() string { return e.selector.Valuator.Name() }

func (e *Engine) Start(ctx context.Context, req Request) {
	e.observer.GameStarted(ctx, req)
}

func (e *Engine) End(ctx context.Context, req Request) {
	e.observer.GameEnded(ctx, req)
}

// Move decides the move for req.You. It never fails; see Selector.Choose for
// what happens when ctx runs out.
func (e *Engine) Move(ctx context.Context, req Request) Decision {
	start := time.Now()
	d := e.selector.Choose(ctx, req.Board, &req.You)
	e.observer.MoveChosen(ctx, req, d, time.Since(start))
	return d
}
