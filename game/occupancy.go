package game

// InBounds reports whether p lies on the board.
func (b *Board) InBounds(p Point) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

func (b *Board) HasFood(p Point) bool {
	return containsPoint(b.Food, p)
}

func (b *Board) HasHazard(p Point) bool {
	return containsPoint(b.Hazards, p)
}

// OccupiedBySnake reports whether p is any snake's head or any body segment,
// including the tail.
func (b *Board) OccupiedBySnake(p Point) bool {
	for _, s := range b.Snakes {
		if s.Head == p || containsPoint(s.Body, p) {
			return true
		}
	}
	return false
}

// ThreatenedByRivalHead reports whether a snake other than me, at least as
// long as me, could move its head onto p next turn. Such a snake wins or ties
// the head-to-head collision; shorter snakes are ignored.
func (b *Board) ThreatenedByRivalHead(p Point, me *Snake) bool {
	for _, s := range b.Snakes {
		if s.ID == me.ID || s.Length < me.Length {
			continue
		}
		for _, n := range s.Head.Neighbors() {
			if n == p {
				return true
			}
		}
	}
	return false
}

func containsPoint(ps []Point, p Point) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}
