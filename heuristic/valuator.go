// Package heuristic scores candidate moves and picks one per turn.
//
// A Valuator turns one destination cell into a signed score; the Selector
// asks it about the four neighbours of the head and keeps the best. Two
// valuators exist: Baseline, a fixed ladder of outcomes, and Extended, an
// additive score that also looks at food, edges and reachable space. They are
// separate policies and are never blended.
package heuristic

import (
	"fmt"
	"strings"

	"github.com/brensch/snekspace/game"
)

// Valuator scores the cell a snake would move into.
//
// Floor is the score of an out-of-bounds or occupied cell. Every legal cell
// must score strictly above it.
type Valuator interface {
	Name() string
	Value(b *game.Board, p game.Point, me *game.Snake) int
	Floor() int
}

// HazardDamage is the health a snake loses for entering a hazard, on top of
// the normal per-turn decrement.
const HazardDamage = 14

const (
	baselineBlocked    = 0
	baselineThreatened = 25
	baselineOpen       = 100
)

// Baseline ranks a cell by the first rule it hits:
// blocked (off board or occupied) 0, next to a rival head that is at least as
// long 25, hazard health-14, anything else 100.
type Baseline struct{}

func (Baseline) Name() string { return "baseline" }
func (Baseline) Floor() int   { return baselineBlocked }

func (Baseline) Value(b *game.Board, p game.Point, me *game.Snake) int {
	switch {
	case !b.InBounds(p), b.OccupiedBySnake(p):
		return baselineBlocked
	case b.ThreatenedByRivalHead(p, me):
		return baselineThreatened
	case b.HasHazard(p):
		// A nearly starved snake still prefers a hazard to a wall.
		return max(me.Health-HazardDamage, baselineBlocked+1)
	default:
		return baselineOpen
	}
}

// ExtendedFloor is what Extended returns for a blocked cell. It sits below the
// lowest score any legal cell can reach.
const ExtendedFloor = -1000

const (
	extendedOpen        = 100
	extendedEdge        = 60
	extendedThreat      = -80
	extendedFood        = 75
	extendedRoomy       = 50
	extendedTrapPenalty = 80
)

// Extended adds independent modifiers to a base value:
//
//	base     100, or 60 on the lowest row or column
//	threat   -80 next to a rival head that is at least as long
//	food     +75, otherwise hazard -(100 - (health - 14))
//	space    +50 with room for the whole body, otherwise -(80 - space)
//
// Blocked cells short-circuit to ExtendedFloor.
type Extended struct{}

func (Extended) Name() string { return "extended" }
func (Extended) Floor() int   { return ExtendedFloor }

func (Extended) Value(b *game.Board, p game.Point, me *game.Snake) int {
	if !b.InBounds(p) || b.OccupiedBySnake(p) {
		return ExtendedFloor
	}

	score := extendedOpen
	if p.X == 0 || p.Y == 0 {
		score = extendedEdge
	}

	if b.ThreatenedByRivalHead(p, me) {
		score += extendedThreat
	}

	if b.HasFood(p) {
		score += extendedFood
	} else if b.HasHazard(p) {
		score -= 100 - (me.Health - HazardDamage)
	}

	space := b.ReachableSpace(p, me.Length)
	if space >= me.Length {
		score += extendedRoomy
	} else {
		score -= extendedTrapPenalty - space
	}

	return score
}

// ValuatorByName resolves a policy name as used on the command line.
func ValuatorByName(name string) (Valuator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "baseline":
		return Baseline{}, nil
	case "extended":
		return Extended{}, nil
	}
	return nil, fmt.Errorf("unknown policy %q (want baseline or extended)", name)
}
