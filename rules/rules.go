// Package rules advances a board by one simultaneous turn.
//
// It only exists so snakes can be played against each other locally. The
// move heuristic never calls it: decisions look at the current board only.
package rules

import (
	"math/rand"

	"github.com/brensch/snekspace/game"
)

// Settings holds the ruleset knobs the engine sends in game.ruleset.settings.
type Settings struct {
	Food                FoodSettings
	HazardDamagePerTurn int
}

var DefaultSettings = Settings{Food: DefaultFoodSettings, HazardDamagePerTurn: 14}

// LegalMoves returns the moves that keep the snake on the board and off every
// body, including tails.
func LegalMoves(b *game.Board, id string) []game.Move {
	you := b.Snake(id)
	if you == nil || you.Health <= 0 {
		return nil
	}

	moves := make([]game.Move, 0, 4)
	for _, m := range game.Moves {
		p := m.Apply(you.Head)
		if b.InBounds(p) && !b.OccupiedBySnake(p) {
			moves = append(moves, m)
		}
	}
	return moves
}

// Step applies one move per snake and returns the next board. Snakes without a
// move are eliminated. The input board is not modified.
//
// Order: move, reduce health, hazard damage, feed, eliminate, spawn food.
func Step(b *game.Board, moves map[string]game.Move, settings Settings, rng *rand.Rand) *game.Board {
	next := b.Clone()

	// 1. Move heads. The tail always advances; eating grows the snake below.
	moved := make(map[string]bool, len(next.Snakes))
	for i := range next.Snakes {
		s := &next.Snakes[i]
		move, ok := moves[s.ID]
		if !ok || len(s.Body) == 0 {
			s.Health = 0
			continue
		}
		head := move.Apply(s.Body[0])
		body := make([]game.Point, 0, len(s.Body)+1)
		body = append(body, head)
		body = append(body, s.Body[:len(s.Body)-1]...)
		s.Body = body
		s.Head = head
		moved[s.ID] = true
	}

	// 2. Health and hazards.
	for i := range next.Snakes {
		s := &next.Snakes[i]
		if !moved[s.ID] {
			continue
		}
		s.Health--
		if next.HasHazard(s.Head) && !next.HasFood(s.Head) {
			s.Health -= settings.HazardDamagePerTurn
		}
	}

	// 3. Feed. Several snakes may share one food; all of them eat.
	eaten := make(map[game.Point]bool)
	for i := range next.Snakes {
		s := &next.Snakes[i]
		if !moved[s.ID] || !next.HasFood(s.Head) {
			continue
		}
		eaten[s.Head] = true
		s.Health = 100
		s.Body = append(s.Body, s.Body[len(s.Body)-1])
	}
	if len(eaten) > 0 {
		remaining := next.Food[:0]
		for _, f := range next.Food {
			if !eaten[f] {
				remaining = append(remaining, f)
			}
		}
		next.Food = remaining
	}
	for i := range next.Snakes {
		next.Snakes[i].Length = len(next.Snakes[i].Body)
	}

	// 4. Eliminate.
	dead := make(map[string]bool)
	for _, s := range next.Snakes {
		if s.Health <= 0 || !moved[s.ID] {
			dead[s.ID] = true
			continue
		}
		if !next.InBounds(s.Head) {
			dead[s.ID] = true
			continue
		}
		for _, other := range next.Snakes {
			if !moved[other.ID] {
				continue
			}
			// Heads are handled below; any other segment kills.
			for _, p := range other.Body[1:] {
				if p == s.Head {
					dead[s.ID] = true
				}
			}
		}
	}
	for i := 0; i < len(next.Snakes); i++ {
		s1 := next.Snakes[i]
		if !moved[s1.ID] {
			continue
		}
		for j := i + 1; j < len(next.Snakes); j++ {
			s2 := next.Snakes[j]
			if !moved[s2.ID] || s1.Head != s2.Head {
				continue
			}
			switch {
			case s1.Length > s2.Length:
				dead[s2.ID] = true
			case s2.Length > s1.Length:
				dead[s1.ID] = true
			default:
				dead[s1.ID] = true
				dead[s2.ID] = true
			}
		}
	}

	alive := make([]game.Snake, 0, len(next.Snakes))
	for _, s := range next.Snakes {
		if !dead[s.ID] {
			alive = append(alive, s)
		}
	}
	next.Snakes = alive

	applyFoodRules(next, rng, settings.Food, 0x5354455053544550) // "STEPSTEP" salt
	return next
}

// IsGameOver returns true once at most one snake is left.
// A solo game ends only when the last snake dies.
func IsGameOver(b *game.Board, solo bool) bool {
	if solo {
		return len(b.Snakes) == 0
	}
	return len(b.Snakes) <= 1
}

// StartPositions are the standard spawn cells for an 11x11 board, in the
// order snakes are placed.
var StartPositions = []game.Point{
	{X: 1, Y: 1}, {X: 9, Y: 9}, {X: 1, Y: 9}, {X: 9, Y: 1},
	{X: 5, Y: 1}, {X: 5, Y: 9}, {X: 1, Y: 5}, {X: 9, Y: 5},
}

// NewBoard places the given snakes on an empty board, each stacked three deep
// on its start cell with full health, then spawns the minimum food. Start
// cells are scaled from the 11x11 layout for other sizes.
func NewBoard(width, height int, snakes []game.Snake, rng *rand.Rand, settings Settings) *game.Board {
	b := &game.Board{Width: width, Height: height}
	for i, s := range snakes {
		start := StartPositions[i%len(StartPositions)]
		start = game.Point{X: start.X * (width - 1) / 10, Y: start.Y * (height - 1) / 10}
		s.Head = start
		s.Body = []game.Point{start, start, start}
		s.Length = len(s.Body)
		s.Health = 100
		b.Snakes = append(b.Snakes, s)
	}

	food := settings.Food
	food.FoodSpawnChance = 0
	ApplyFoodSettings(b, rng, food)
	return b
}
