package game

import "fmt"

// Move is one of the four cardinal directions.
// The numeric order is also the tie-break order used when choosing a move.
type Move int

const (
	MoveUp Move = iota
	MoveDown
	MoveLeft
	MoveRight
)

// Moves lists every move in enumeration order.
var Moves = [4]Move{MoveUp, MoveDown, MoveLeft, MoveRight}

func (m Move) String() string {
	switch m {
	case MoveUp:
		return "up"
	case MoveDown:
		return "down"
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	default:
		return fmt.Sprintf("move(%d)", int(m))
	}
}

// ParseMove is the inverse of Move.String.
func ParseMove(s string) (Move, error) {
	switch s {
	case "up":
		return MoveUp, nil
	case "down":
		return MoveDown, nil
	case "left":
		return MoveLeft, nil
	case "right":
		return MoveRight, nil
	}
	return 0, fmt.Errorf("unknown move %q", s)
}

// Apply returns the cell reached by moving from p.
func (m Move) Apply(p Point) Point {
	switch m {
	case MoveUp:
		return p.Up()
	case MoveDown:
		return p.Down()
	case MoveLeft:
		return p.Left()
	default:
		return p.Right()
	}
}
