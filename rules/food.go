package rules

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"

	"github.com/brensch/snekspace/game"
)

// FoodSettings matches the common Battlesnake server knobs:
// - MinimumFood: ensure at least this many food items exist after each turn
// - FoodSpawnChance: percentage chance (0-100) to spawn one extra food each turn
//
// A nil RNG falls back to a deterministic pseudo-random source derived from the
// board, which keeps tests and replays stable.
type FoodSettings struct {
	MinimumFood     int
	FoodSpawnChance int
}

var DefaultFoodSettings = FoodSettings{MinimumFood: 1, FoodSpawnChance: 15}

func applyFoodRules(b *game.Board, rng *rand.Rand, settings FoodSettings, salt uint64) {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return
	}
	settings.MinimumFood = max(settings.MinimumFood, 0)
	settings.FoodSpawnChance = min(max(settings.FoodSpawnChance, 0), 100)

	// Decide how much to spawn before building the free-cell list.
	deficit := max(settings.MinimumFood-len(b.Food), 0)

	spawnExtra := false
	if settings.FoodSpawnChance > 0 {
		if rng != nil {
			spawnExtra = rng.Intn(100) < settings.FoodSpawnChance
		} else {
			spawnExtra = int(boardHash(b, salt)%100) < settings.FoodSpawnChance
		}
	}

	toSpawn := deficit
	if spawnExtra {
		toSpawn++
	}
	if toSpawn == 0 {
		return
	}

	if rng == nil {
		seed := int64(boardHash(b, salt^0xF00D))
		if seed == 0 {
			seed = 1
		}
		rng = rand.New(rand.NewSource(seed))
	}

	available := make([]game.Point, 0, b.Width*b.Height)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			p := game.Point{X: x, Y: y}
			if b.OccupiedBySnake(p) || b.HasFood(p) {
				continue
			}
			available = append(available, p)
		}
	}

	for ; toSpawn > 0 && len(available) > 0; toSpawn-- {
		i := rng.Intn(len(available))
		b.Food = append(b.Food, available[i])
		available[i] = available[len(available)-1]
		available = available[:len(available)-1]
	}
}

// ApplyFoodSettings applies Battlesnake-style food spawning to an existing board.
// This is useful for initialization (e.g. ensure MinimumFood at game start).
func ApplyFoodSettings(b *game.Board, rng *rand.Rand, settings FoodSettings) {
	applyFoodRules(b, rng, settings, 0x464F4F445F494E49) // "FOOD_INI" salt
}

// boardHash mixes board size, food count and snake heads. It is only used to
// seed food placement when no RNG is supplied.
func boardHash(b *game.Board, salt uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(b.Width))|(uint64(uint32(b.Height))<<32))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], salt)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(len(b.Food)))
	_, _ = h.Write(buf[:])

	for _, s := range b.Snakes {
		_, _ = h.Write([]byte(s.ID))
		binary.LittleEndian.PutUint64(buf[:], (uint64(uint32(s.Head.X))<<32)|uint64(uint32(s.Head.Y)))
		_, _ = h.Write(buf[:])
	}

	return h.Sum64()
}
