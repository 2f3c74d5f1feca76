package heuristic

import (
	"context"

	"github.com/brensch/snekspace/game"
)

// Decision is the outcome of one Choose call.
//
// Scores holds the valuator score per direction, indexed by game.Move.
// Directions that were not evaluated before the context expired keep the
// valuator's floor; Evaluated says how many were.
type Decision struct {
	Move      game.Move
	Scores    [4]int
	Evaluated int
	Policy    string
}

// Selector picks the highest scoring of the four moves.
type Selector struct {
	Valuator Valuator
}

// Choose scores up, down, left and right in that order and returns the first
// move with the highest score. There is no special case for a turn where every
// move is fatal: the first direction still wins.
//
// ctx is checked between directions. Once it is done the best move found so
// far is returned, or up when nothing was scored.
func (s Selector) Choose(ctx context.Context, b *game.Board, me *game.Snake) Decision {
	d := Decision{Move: game.MoveUp, Policy: s.Valuator.Name()}
	floor := s.Valuator.Floor()
	for i := range d.Scores {
		d.Scores[i] = floor
	}

	best := 0
	for _, m := range game.Moves {
		if ctx.Err() != nil {
			break
		}
		score := s.Valuator.Value(b, m.Apply(me.Head), me)
		d.Scores[m] = score
		if d.Evaluated == 0 || score > best {
			best = score
			d.Move = m
		}
		d.Evaluated++
	}
	return d
}
