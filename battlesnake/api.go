package main

import "github.com/brensch/snekspace/game"

// Battlesnake API request/response types

type InfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Color      string `json:"color"`
	Head       string `json:"head"`
	Tail       string `json:"tail"`
	Version    string `json:"version"`
}

type GameRequest struct {
	Game  Game        `json:"game"`
	Turn  int         `json:"turn"`
	Board Board       `json:"board"`
	You   Battlesnake `json:"you"`
}

type Game struct {
	ID      string  `json:"id"`
	Ruleset Ruleset `json:"ruleset"`
	Map     string  `json:"map"`
	Timeout int     `json:"timeout"`
	Source  string  `json:"source"`
}

type Ruleset struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings RulesetSettings `json:"settings"`
}

type RulesetSettings struct {
	FoodSpawnChance     int `json:"foodSpawnChance"`
	MinimumFood         int `json:"minimumFood"`
	HazardDamagePerTurn int `json:"hazardDamagePerTurn"`
}

type Board struct {
	Height  int           `json:"height"`
	Width   int           `json:"width"`
	Food    []Coord       `json:"food"`
	Hazards []Coord       `json:"hazards"`
	Snakes  []Battlesnake `json:"snakes"`
}

type Battlesnake struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Health  int     `json:"health"`
	Body    []Coord `json:"body"`
	Latency string  `json:"latency"`
	Head    Coord   `json:"head"`
	Length  int     `json:"length"`
	Shout   string  `json:"shout"`
	Squad   string  `json:"squad"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MoveResponse struct {
	Move  string `json:"move"`
	Shout string `json:"shout,omitempty"`
}

func toPoints(cs []Coord) []game.Point {
	if len(cs) == 0 {
		return nil
	}
	ps := make([]game.Point, len(cs))
	for i, c := range cs {
		ps[i] = game.Point{X: c.X, Y: c.Y}
	}
	return ps
}

func toSnake(s Battlesnake) game.Snake {
	length := s.Length
	if length == 0 {
		length = len(s.Body)
	}
	return game.Snake{
		ID:     s.ID,
		Name:   s.Name,
		Health: s.Health,
		Length: length,
		Head:   game.Point{X: s.Head.X, Y: s.Head.Y},
		Body:   toPoints(s.Body),
	}
}

// toBoard converts the wire board. Snakes keep their wire order.
func toBoard(b Board) *game.Board {
	board := &game.Board{
		Width:   b.Width,
		Height:  b.Height,
		Food:    toPoints(b.Food),
		Hazards: toPoints(b.Hazards),
		Snakes:  make([]game.Snake, len(b.Snakes)),
	}
	for i, s := range b.Snakes {
		board.Snakes[i] = toSnake(s)
	}
	return board
}
