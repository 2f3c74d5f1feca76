package selfplay

import (
	"fmt"
	"strings"

	"github.com/brensch/snekspace/game"
)

// RenderBoard draws the board top row first. The snake with youID is drawn
// with O/o, every other snake with S/s; food is F and empty hazards are ~.
func RenderBoard(b *game.Board, youID string) string {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return ""
	}
	grid := make([][]byte, b.Height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", b.Width))
	}
	set := func(p game.Point, c byte) {
		if b.InBounds(p) {
			grid[p.Y][p.X] = c
		}
	}

	for _, h := range b.Hazards {
		set(h, '~')
	}
	for _, f := range b.Food {
		set(f, 'F')
	}
	for _, s := range b.Snakes {
		body, head := byte('s'), byte('S')
		if s.ID == youID {
			body, head = 'o', 'O'
		}
		for _, p := range s.Body {
			set(p, body)
		}
		set(s.Head, head)
	}

	var sb strings.Builder
	for y := b.Height - 1; y >= 0; y-- {
		fmt.Fprintf(&sb, "%2d ", y)
		for x := 0; x < b.Width; x++ {
			sb.WriteByte(grid[y][x])
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
