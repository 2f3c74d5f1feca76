// Package selfplay runs local games between heuristic engines using the rules
// package to advance the board.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
	"github.com/brensch/snekspace/rules"
)

// Player is one snake in a local game.
type Player struct {
	ID     string
	Name   string
	Engine *heuristic.Engine
}

type Config struct {
	Width    int
	Height   int
	Settings rules.Settings
	// MaxTurns stops a game that nobody loses. Zero means no limit.
	MaxTurns int
	// MoveTimeout bounds each decision, like game.timeout on the real
	// engine. Zero means no per-move deadline.
	MoveTimeout time.Duration
}

var DefaultConfig = Config{
	Width:       11,
	Height:      11,
	Settings:    rules.DefaultSettings,
	MaxTurns:    500,
	MoveTimeout: 300 * time.Millisecond,
}

type GameResult struct {
	GameID   string
	WinnerID string
	Turns    int
	Final    *game.Board
	// Aborted is set when ctx ended the game early.
	Aborted bool
}

// PlayGame plays one game to completion. Every player's engine sees the
// usual start, move and end events, so its observers record the game the way
// they would behind the HTTP server. When ctx ends first the game is returned
// with Aborted set and no end events are sent. onTurn, if set, is called
// after every step with the new board.
func PlayGame(ctx context.Context, gameID string, players []Player, cfg Config, rng *rand.Rand, onTurn func(turn int, b *game.Board)) (GameResult, error) {
	if len(players) == 0 {
		return GameResult{}, errors.New("selfplay: no players")
	}
	seen := make(map[string]bool, len(players))
	snakes := make([]game.Snake, len(players))
	for i, p := range players {
		if p.ID == "" || seen[p.ID] {
			return GameResult{}, fmt.Errorf("selfplay: player %d has empty or duplicate id %q", i, p.ID)
		}
		if p.Engine == nil {
			return GameResult{}, fmt.Errorf("selfplay: player %s has no engine", p.ID)
		}
		seen[p.ID] = true
		snakes[i] = game.Snake{ID: p.ID, Name: p.Name}
	}

	board := rules.NewBoard(cfg.Width, cfg.Height, snakes, rng, cfg.Settings)
	solo := len(players) == 1

	// last keeps the final state of every snake, including dead ones, for the
	// end event.
	last := make(map[string]game.Snake, len(players))
	for _, s := range board.Snakes {
		last[s.ID] = s
	}

	for _, p := range players {
		p.Engine.Start(ctx, request(gameID, 0, board, last[p.ID]))
	}

	turn := 0
	aborted := false
	for !rules.IsGameOver(board, solo) {
		if cfg.MaxTurns > 0 && turn >= cfg.MaxTurns {
			break
		}
		if ctx.Err() != nil {
			aborted = true
			break
		}

		moves := decideAll(ctx, gameID, turn, board, players, cfg.MoveTimeout)
		board = rules.Step(board, moves, cfg.Settings, rng)
		turn++
		for _, s := range board.Snakes {
			last[s.ID] = s
		}
		if onTurn != nil {
			onTurn(turn, board)
		}
	}

	// An aborted game has no result, so observers never see it end.
	if !aborted {
		for _, p := range players {
			p.Engine.End(ctx, request(gameID, turn, board, last[p.ID]))
		}
	}

	res := GameResult{GameID: gameID, Turns: turn, Final: board, Aborted: aborted}
	if len(board.Snakes) == 1 {
		res.WinnerID = board.Snakes[0].ID
	}
	return res, nil
}

// decideAll asks every living snake for its move concurrently.
func decideAll(ctx context.Context, gameID string, turn int, board *game.Board, players []Player, timeout time.Duration) map[string]game.Move {
	moves := make(map[string]game.Move, len(board.Snakes))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range players {
		you := board.Snake(p.ID)
		if you == nil {
			continue
		}
		wg.Add(1)
		go func(p Player, you game.Snake) {
			defer wg.Done()
			moveCtx, cancel := ctx, context.CancelFunc(func() {})
			if timeout > 0 {
				moveCtx, cancel = context.WithTimeout(ctx, timeout)
			}
			defer cancel()

			d := p.Engine.Move(moveCtx, request(gameID, turn, board, you))
			mu.Lock()
			moves[p.ID] = d.Move
			mu.Unlock()
		}(p, *you)
	}
	wg.Wait()
	return moves
}

func request(gameID string, turn int, board *game.Board, you game.Snake) heuristic.Request {
	return heuristic.Request{GameID: gameID, Turn: turn, Board: board, You: you}
}
