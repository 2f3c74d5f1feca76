package rules

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/brensch/snekspace/game"
)

var noFood = Settings{Food: FoodSettings{MinimumFood: 0, FoodSpawnChance: 0}, HazardDamagePerTurn: 14}

func dumpBoard(b *game.Board) string {
	if b == nil {
		return "<nil board>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Size=%dx%d\n", b.Width, b.Height)

	fmt.Fprintf(&sb, "Food(%d):", len(b.Food))
	for _, f := range b.Food {
		fmt.Fprintf(&sb, " (%d,%d)", f.X, f.Y)
	}
	sb.WriteString("\n")

	snakes := make([]game.Snake, len(b.Snakes))
	copy(snakes, b.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].ID < snakes[j].ID })
	for _, s := range snakes {
		fmt.Fprintf(&sb, "Snake %s Health=%d Len=%d Body:", s.ID, s.Health, s.Length)
		for _, p := range s.Body {
			fmt.Fprintf(&sb, " (%d,%d)", p.X, p.Y)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func logStep(t *testing.T, name string, before *game.Board, moves map[string]game.Move, after *game.Board) {
	t.Helper()
	ids := make([]string, 0, len(moves))
	for id := range moves {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var mv strings.Builder
	mv.WriteString("Moves:")
	for _, id := range ids {
		fmt.Fprintf(&mv, " %s=%s", id, moves[id])
	}
	mv.WriteByte('\n')
	t.Logf("=== %s ===\nBefore:\n%s%sAfter:\n%s", name, dumpBoard(before), mv.String(), dumpBoard(after))
}

func snake(id string, health int, body ...game.Point) game.Snake {
	return game.Snake{ID: id, Health: health, Length: len(body), Head: body[0], Body: body}
}

func assertBody(t *testing.T, s *game.Snake, want []game.Point) {
	t.Helper()
	if len(s.Body) != len(want) {
		t.Fatalf("snake %s body len=%d want=%d", s.ID, len(s.Body), len(want))
	}
	for i := range want {
		if s.Body[i] != want[i] {
			t.Fatalf("snake %s body[%d]=%v want=%v", s.ID, i, s.Body[i], want[i])
		}
	}
	if s.Head != want[0] {
		t.Fatalf("snake %s head=%v want=%v", s.ID, s.Head, want[0])
	}
	if s.Length != len(want) {
		t.Fatalf("snake %s length=%d want=%d", s.ID, s.Length, len(want))
	}
}

func TestStep_NormalMove_NoFood(t *testing.T) {
	before := &game.Board{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{snake("me", 10, game.Point{X: 3, Y: 3}, game.Point{X: 3, Y: 2}, game.Point{X: 3, Y: 1})},
	}
	moves := map[string]game.Move{"me": game.MoveUp}
	after := Step(before, moves, noFood, nil)
	logStep(t, "normal move", before, moves, after)

	me := after.Snake("me")
	if me == nil {
		t.Fatalf("snake died")
	}
	assertBody(t, me, []game.Point{{X: 3, Y: 4}, {X: 3, Y: 3}, {X: 3, Y: 2}})
	if me.Health != 9 {
		t.Fatalf("health=%d want=9", me.Health)
	}
	if before.Snakes[0].Body[0] != (game.Point{X: 3, Y: 3}) {
		t.Fatalf("Step modified its input")
	}
}

func TestStep_EatFood_GrowsByDuplicatingTail(t *testing.T) {
	before := &game.Board{
		Width:  7,
		Height: 7,
		Food:   []game.Point{{X: 3, Y: 4}},
		Snakes: []game.Snake{snake("me", 10, game.Point{X: 3, Y: 3}, game.Point{X: 3, Y: 2}, game.Point{X: 3, Y: 1})},
	}
	moves := map[string]game.Move{"me": game.MoveUp}
	after := Step(before, moves, noFood, nil)
	logStep(t, "eat food", before, moves, after)

	me := after.Snake("me")
	assertBody(t, me, []game.Point{{X: 3, Y: 4}, {X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 2}})
	if me.Health != 100 {
		t.Fatalf("health=%d want=100", me.Health)
	}
	if len(after.Food) != 0 {
		t.Fatalf("food len=%d want=0", len(after.Food))
	}
}

func TestStep_HazardDamage(t *testing.T) {
	before := &game.Board{
		Width:   7,
		Height:  7,
		Hazards: []game.Point{{X: 3, Y: 4}},
		Snakes:  []game.Snake{snake("me", 50, game.Point{X: 3, Y: 3}, game.Point{X: 3, Y: 2}, game.Point{X: 3, Y: 1})},
	}
	moves := map[string]game.Move{"me": game.MoveUp}
	after := Step(before, moves, noFood, nil)
	logStep(t, "hazard", before, moves, after)

	if got := after.Snake("me").Health; got != 50-1-14 {
		t.Fatalf("health=%d want=%d", got, 50-1-14)
	}

	before.Snakes[0].Health = 10
	after = Step(before, moves, noFood, nil)
	if after.Snake("me") != nil {
		t.Fatalf("hazard should starve a snake with 10 health")
	}
}

func TestStep_WallAndBodyEliminations(t *testing.T) {
	before := &game.Board{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{
			snake("wall", 100, game.Point{X: 0, Y: 2}, game.Point{X: 1, Y: 2}, game.Point{X: 2, Y: 2}),
			snake("biter", 100, game.Point{X: 3, Y: 1}, game.Point{X: 4, Y: 1}, game.Point{X: 4, Y: 0}),
			snake("victim", 100, game.Point{X: 3, Y: 3}, game.Point{X: 3, Y: 4}, game.Point{X: 4, Y: 4}),
		},
	}
	moves := map[string]game.Move{"wall": game.MoveLeft, "biter": game.MoveLeft, "victim": game.MoveLeft}
	after := Step(before, moves, noFood, nil)
	logStep(t, "eliminations", before, moves, after)

	if after.Snake("wall") != nil {
		t.Fatalf("wall snake should be out of bounds")
	}
	if after.Snake("biter") == nil || after.Snake("victim") == nil {
		t.Fatalf("open moves should survive")
	}

	before = &game.Board{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{
			snake("a", 100, game.Point{X: 2, Y: 2}, game.Point{X: 2, Y: 1}, game.Point{X: 2, Y: 0}),
			snake("b", 100, game.Point{X: 4, Y: 2}, game.Point{X: 3, Y: 2}, game.Point{X: 3, Y: 3}),
		},
	}
	moves = map[string]game.Move{"a": game.MoveRight, "b": game.MoveDown}
	after = Step(before, moves, noFood, nil)
	logStep(t, "body bite", before, moves, after)
	if after.Snake("a") != nil {
		t.Fatalf("a moved into b's body and should be dead")
	}
	if after.Snake("b") == nil {
		t.Fatalf("b should survive")
	}
}

func TestStep_TailChaseIsSafe(t *testing.T) {
	before := &game.Board{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{
			snake("a", 100, game.Point{X: 2, Y: 2}, game.Point{X: 2, Y: 1}, game.Point{X: 2, Y: 0}),
			snake("b", 100, game.Point{X: 4, Y: 3}, game.Point{X: 3, Y: 3}, game.Point{X: 3, Y: 2}),
		},
	}
	moves := map[string]game.Move{"a": game.MoveRight, "b": game.MoveUp}
	after := Step(before, moves, noFood, nil)
	logStep(t, "tail chase", before, moves, after)
	if len(after.Snakes) != 2 {
		t.Fatalf("both snakes should survive, got %d", len(after.Snakes))
	}
}

func TestStep_HeadToHead(t *testing.T) {
	long := snake("long", 100, game.Point{X: 1, Y: 2}, game.Point{X: 0, Y: 2}, game.Point{X: 0, Y: 1}, game.Point{X: 0, Y: 0})
	short := snake("short", 100, game.Point{X: 3, Y: 2}, game.Point{X: 4, Y: 2}, game.Point{X: 4, Y: 1})
	before := &game.Board{Width: 5, Height: 5, Snakes: []game.Snake{long, short}}
	moves := map[string]game.Move{"long": game.MoveRight, "short": game.MoveLeft}
	after := Step(before, moves, noFood, nil)
	logStep(t, "head to head", before, moves, after)

	if after.Snake("long") == nil || after.Snake("short") != nil {
		t.Fatalf("longer snake should win head to head")
	}

	even := snake("even", 100, game.Point{X: 3, Y: 2}, game.Point{X: 4, Y: 2}, game.Point{X: 4, Y: 1}, game.Point{X: 4, Y: 0})
	before = &game.Board{Width: 5, Height: 5, Snakes: []game.Snake{long, even}}
	moves = map[string]game.Move{"long": game.MoveRight, "even": game.MoveLeft}
	after = Step(before, moves, noFood, nil)
	if len(after.Snakes) != 0 {
		t.Fatalf("equal lengths should both die, left %d", len(after.Snakes))
	}
	if !IsGameOver(after, false) || !IsGameOver(after, true) {
		t.Fatalf("empty board is game over")
	}
}

func TestStep_MissingMoveEliminates(t *testing.T) {
	before := &game.Board{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{
			snake("a", 100, game.Point{X: 1, Y: 1}, game.Point{X: 1, Y: 0}),
			snake("b", 100, game.Point{X: 3, Y: 3}, game.Point{X: 3, Y: 4}),
		},
	}
	after := Step(before, map[string]game.Move{"a": game.MoveUp}, noFood, nil)
	if after.Snake("b") != nil {
		t.Fatalf("snake without a move should be eliminated")
	}
	if !IsGameOver(after, false) {
		t.Fatalf("one snake left should end a duel")
	}
	if IsGameOver(after, true) {
		t.Fatalf("solo game continues while a snake lives")
	}
}

func TestLegalMoves(t *testing.T) {
	b := &game.Board{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{snake("me", 100, game.Point{X: 0, Y: 0}, game.Point{X: 1, Y: 0}, game.Point{X: 1, Y: 1})},
	}
	got := LegalMoves(b, "me")
	if len(got) != 1 || got[0] != game.MoveUp {
		t.Fatalf("legal=%v want=[up]", got)
	}
	if LegalMoves(b, "ghost") != nil {
		t.Fatalf("unknown snake has no moves")
	}
}

func TestFood_MinimumFoodIsEnforced(t *testing.T) {
	before := &game.Board{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{snake("me", 100, game.Point{X: 2, Y: 2}, game.Point{X: 2, Y: 2}, game.Point{X: 2, Y: 2})},
	}
	settings := Settings{Food: FoodSettings{MinimumFood: 1, FoodSpawnChance: 0}}
	moves := map[string]game.Move{"me": game.MoveUp}
	after := Step(before, moves, settings, nil)
	logStep(t, "minimum food", before, moves, after)

	if len(after.Food) < 1 {
		t.Fatalf("food len=%d want>=1", len(after.Food))
	}
	for _, f := range after.Food {
		if after.OccupiedBySnake(f) {
			t.Fatalf("food spawned on snake at (%d,%d)", f.X, f.Y)
		}
	}
}

func TestFood_SpawnChanceCanAddExtra(t *testing.T) {
	before := &game.Board{
		Width:  5,
		Height: 5,
		Food:   []game.Point{{X: 0, Y: 0}},
		Snakes: []game.Snake{snake("me", 100, game.Point{X: 2, Y: 2}, game.Point{X: 2, Y: 2}, game.Point{X: 2, Y: 2})},
	}
	settings := Settings{Food: FoodSettings{MinimumFood: 0, FoodSpawnChance: 100}}
	after := Step(before, map[string]game.Move{"me": game.MoveUp}, settings, nil)
	if len(after.Food) != 2 {
		t.Fatalf("food len=%d want=2", len(after.Food))
	}
}

func TestNewBoard(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := NewBoard(11, 11, []game.Snake{{ID: "a"}, {ID: "b"}}, rng, DefaultSettings)
	t.Logf("\n%s", dumpBoard(b))

	if len(b.Snakes) != 2 {
		t.Fatalf("snakes=%d", len(b.Snakes))
	}
	if b.Snakes[0].Head != (game.Point{X: 1, Y: 1}) || b.Snakes[1].Head != (game.Point{X: 9, Y: 9}) {
		t.Fatalf("unexpected start cells %v %v", b.Snakes[0].Head, b.Snakes[1].Head)
	}
	for _, s := range b.Snakes {
		if s.Health != 100 || s.Length != 3 || len(s.Body) != 3 {
			t.Fatalf("bad start snake %+v", s)
		}
	}
	if len(b.Food) != DefaultFoodSettings.MinimumFood {
		t.Fatalf("food=%d want=%d", len(b.Food), DefaultFoodSettings.MinimumFood)
	}
}
