// Package game defines the per-turn board snapshot for Battlesnake and the
// pure queries the move heuristic runs against it.
//
// A Board is rebuilt from every request and never mutated while a move is
// being decided, so it can be shared freely between the four direction
// evaluations of a turn.
package game

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Up() Point    { return Point{X: p.X, Y: p.Y + 1} }
func (p Point) Down() Point  { return Point{X: p.X, Y: p.Y - 1} }
func (p Point) Left() Point  { return Point{X: p.X - 1, Y: p.Y} }
func (p Point) Right() Point { return Point{X: p.X + 1, Y: p.Y} }

// Neighbors returns the four cardinal neighbours in up, down, left, right order.
func (p Point) Neighbors() [4]Point {
	return [4]Point{p.Up(), p.Down(), p.Left(), p.Right()}
}

// Snake is one agent on the board.
//
// Body may or may not repeat Head as its first element depending on where the
// snake came from; every occupancy query treats Head and Body the same way.
// Length is authoritative for size comparisons and need not equal len(Body).
type Snake struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Health int     `json:"health"`
	Length int     `json:"length"`
	Head   Point   `json:"head"`
	Body   []Point `json:"body"`
}

// Board is the complete per-turn snapshot.
type Board struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Food    []Point `json:"food"`
	Hazards []Point `json:"hazards"`
	Snakes  []Snake `json:"snakes"`
}

// Snake returns the snake with the given ID, or nil.
func (b *Board) Snake(id string) *Snake {
	for i := range b.Snakes {
		if b.Snakes[i].ID == id {
			return &b.Snakes[i]
		}
	}
	return nil
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}

	out := &Board{
		Width:  b.Width,
		Height: b.Height,
	}

	if len(b.Food) > 0 {
		out.Food = make([]Point, len(b.Food))
		copy(out.Food, b.Food)
	}
	if len(b.Hazards) > 0 {
		out.Hazards = make([]Point, len(b.Hazards))
		copy(out.Hazards, b.Hazards)
	}

	if len(b.Snakes) > 0 {
		out.Snakes = make([]Snake, len(b.Snakes))
		for i := range b.Snakes {
			out.Snakes[i] = b.Snakes[i]
			out.Snakes[i].Body = nil
			if len(b.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(b.Snakes[i].Body))
				copy(out.Snakes[i].Body, b.Snakes[i].Body)
			}
		}
	}

	return out
}

// Outcome is the result of a finished game from one snake's perspective.
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
	OutcomeDraw Outcome = "draw"
)

// OutcomeFor reads the final board of a game: a snake still on the board won,
// an empty board is a draw, anything else is a loss.
func OutcomeFor(b *Board, id string) Outcome {
	if b.Snake(id) != nil {
		return OutcomeWon
	}
	if len(b.Snakes) == 0 {
		return OutcomeDraw
	}
	return OutcomeLost
}
