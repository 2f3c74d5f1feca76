package game

// ReachableSpace counts the free, in-bounds cells a snake standing on start
// could still walk into by cardinal moves. start itself is not counted, so a
// cell walled in on all four sides has no space.
//
// The search stops as soon as the count reaches limit: the result never
// exceeds limit and the work done is bounded by limit rather than by the
// board area. A start cell that is off the board or occupied by a snake has
// no space.
func (b *Board) ReachableSpace(start Point, limit int) int {
	if limit <= 0 || !b.free(start) {
		return 0
	}

	visited := make(map[Point]struct{}, limit+1)
	visited[start] = struct{}{}
	stack := make([]Point, 0, limit)
	stack = append(stack, start)

	count := 0
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, n := range p.Neighbors() {
			if _, seen := visited[n]; seen {
				continue
			}
			if !b.free(n) {
				continue
			}
			visited[n] = struct{}{}
			count++
			if count >= limit {
				return count
			}
			stack = append(stack, n)
		}
	}
	return count
}

func (b *Board) free(p Point) bool {
	return b.InBounds(p) && !b.OccupiedBySnake(p)
}
