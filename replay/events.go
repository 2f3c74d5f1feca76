// Package replay downloads finished games from the Battlesnake engine and
// runs them back through a heuristic engine, comparing its choices with the
// moves the real snake made.
package replay

import "encoding/json"

// Event is one message on the engine's game event stream.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GameInfo is the payload of the game_info event.
type GameInfo struct {
	Game    GameDetails `json:"game"`
	Ruleset RulesetInfo `json:"ruleset"`
}

type GameDetails struct {
	ID      string `json:"id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Timeout int    `json:"timeout"`
}

type RulesetInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Frame is the payload of a frame event. Some feeds nest the board size and
// hazards under board, some put hazards at the top level.
type Frame struct {
	Turn    int          `json:"turn"`
	Snakes  []FrameSnake `json:"snakes"`
	Food    []Coord      `json:"food"`
	Hazards []Coord      `json:"hazards"`
	Board   FrameBoard   `json:"board"`
}

type FrameBoard struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Hazards []Coord `json:"hazards"`
}

type FrameSnake struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Health int     `json:"health"`
	Body   []Coord `json:"body"`
	Death  *Death  `json:"death,omitempty"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Death struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Game is a downloaded game: its info plus every frame in turn order.
type Game struct {
	Info   GameInfo
	Frames []Frame
}

// Size returns the board dimensions, falling back to 11x11 when the feed
// carries none.
func (g *Game) Size() (width, height int) {
	width, height = g.Info.Game.Width, g.Info.Game.Height
	for _, f := range g.Frames {
		if width > 0 && height > 0 {
			break
		}
		width, height = f.Board.Width, f.Board.Height
	}
	if width <= 0 || height <= 0 {
		return 11, 11
	}
	return width, height
}
