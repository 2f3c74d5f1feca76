package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
)

// Disagreement is a turn where the engine would have moved differently.
type Disagreement struct {
	Turn   int
	Ours   game.Move
	Theirs game.Move
}

type Report struct {
	GameID        string
	SnakeID       string
	SnakeName     string
	Turns         int
	Agreed        int
	Disagreements []Disagreement
}

// Agreement is the share of compared turns where both moves match.
func (r Report) Agreement() float64 {
	if r.Turns == 0 {
		return 0
	}
	return float64(r.Agreed) / float64(r.Turns)
}

// Run replays g from the point of view of the snake whose ID or name is
// snake. Every turn where the snake is alive and its next head is known is
// decided by engine and compared. engine observers see the game as if it
// were played live.
func Run(ctx context.Context, g *Game, snake string, engine *heuristic.Engine, moveTimeout time.Duration) (Report, error) {
	if len(g.Frames) == 0 {
		return Report{}, fmt.Errorf("game %s has no frames", g.Info.Game.ID)
	}
	id, name, ok := findSnake(g, snake)
	if !ok {
		return Report{}, fmt.Errorf("snake %q not in game %s", snake, g.Info.Game.ID)
	}
	width, height := g.Size()
	gameID := g.Info.Game.ID
	rep := Report{GameID: gameID, SnakeID: id, SnakeName: name}

	first := boardAt(g.Frames[0], width, height)
	if you := first.Snake(id); you != nil {
		engine.Start(ctx, heuristic.Request{GameID: gameID, Turn: g.Frames[0].Turn, Board: first, You: *you})
	}

	var last game.Snake
	for i := 0; i+1 < len(g.Frames); i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		frame := g.Frames[i]
		board := boardAt(frame, width, height)
		you := board.Snake(id)
		if you == nil {
			break
		}
		last = *you
		theirs, ok := moveBetween(you.Head, g.Frames[i+1], id)
		if !ok {
			continue
		}

		moveCtx, cancel := ctx, context.CancelFunc(func() {})
		if moveTimeout > 0 {
			moveCtx, cancel = context.WithTimeout(ctx, moveTimeout)
		}
		d := engine.Move(moveCtx, heuristic.Request{GameID: gameID, Turn: frame.Turn, Board: board, You: *you})
		cancel()

		rep.Turns++
		if d.Move == theirs {
			rep.Agreed++
		} else {
			rep.Disagreements = append(rep.Disagreements, Disagreement{Turn: frame.Turn, Ours: d.Move, Theirs: theirs})
		}
	}

	final := g.Frames[len(g.Frames)-1]
	end := boardAt(final, width, height)
	if you := end.Snake(id); you != nil {
		last = *you
	}
	if last.ID != "" {
		engine.End(ctx, heuristic.Request{GameID: gameID, Turn: final.Turn, Board: end, You: last})
	}
	return rep, nil
}

func findSnake(g *Game, snake string) (id, name string, ok bool) {
	for _, f := range g.Frames {
		for _, s := range f.Snakes {
			if s.ID == snake || s.Name == snake {
				return s.ID, s.Name, true
			}
		}
	}
	return "", "", false
}

// boardAt rebuilds the board of one frame. Dead snakes are left off.
func boardAt(f Frame, width, height int) *game.Board {
	b := &game.Board{
		Width:   width,
		Height:  height,
		Food:    points(f.Food),
		Hazards: append(points(f.Hazards), points(f.Board.Hazards)...),
	}
	for _, s := range f.Snakes {
		if s.Death != nil || s.Health <= 0 || len(s.Body) == 0 {
			continue
		}
		body := points(s.Body)
		b.Snakes = append(b.Snakes, game.Snake{
			ID:     s.ID,
			Name:   s.Name,
			Health: s.Health,
			Length: len(body),
			Head:   body[0],
			Body:   body,
		})
	}
	return b
}

// moveBetween derives the move a snake made from its head in the next frame.
func moveBetween(from game.Point, next Frame, id string) (game.Move, bool) {
	for _, s := range next.Snakes {
		if s.ID != id || len(s.Body) == 0 {
			continue
		}
		to := game.Point{X: s.Body[0].X, Y: s.Body[0].Y}
		for _, m := range game.Moves {
			if m.Apply(from) == to {
				return m, true
			}
		}
		return 0, false
	}
	return 0, false
}

func points(cs []Coord) []game.Point {
	if len(cs) == 0 {
		return nil
	}
	ps := make([]game.Point, len(cs))
	for i, c := range cs {
		ps[i] = game.Point{X: c.X, Y: c.Y}
	}
	return ps
}
