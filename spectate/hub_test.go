package spectate

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/snekspace/game"
	"github.com/brensch/snekspace/heuristic"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return ev
}

func testRequest(gameID string) heuristic.Request {
	you := game.Snake{ID: "me", Name: "snek", Health: 80, Length: 3, Head: game.Point{X: 1, Y: 1}}
	return heuristic.Request{
		GameID: gameID,
		Turn:   7,
		Board:  &game.Board{Width: 5, Height: 5, Snakes: []game.Snake{you}},
		You:    you,
	}
}

func TestHub_BroadcastsMoves(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ws := dial(t, srv, "")
	hello := readEvent(t, ws)
	if hello.Type != "hello" || hello.ClientID == "" {
		t.Fatalf("unexpected hello: %+v", hello)
	}
	if hub.Clients() != 1 {
		t.Fatalf("clients=%d want=1", hub.Clients())
	}

	ctx := context.Background()
	d := heuristic.Decision{Move: game.MoveLeft, Scores: [4]int{0, 25, 100, 65}, Evaluated: 4, Policy: "baseline"}
	hub.MoveChosen(ctx, testRequest("g1"), d, 1500*time.Microsecond)

	ev := readEvent(t, ws)
	if ev.Type != "move" || ev.GameID != "g1" || ev.Move != "left" || ev.Turn != 7 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Scores == nil || ev.Scores.Left != 100 || ev.Scores.Right != 65 {
		t.Fatalf("unexpected scores: %+v", ev.Scores)
	}
	if ev.ElapsedUS != 1500 || ev.Board == nil || ev.Board.Snakes[0].Head != (game.Point{X: 1, Y: 1}) {
		t.Fatalf("unexpected payload: %+v", ev)
	}

	hub.GameEnded(ctx, testRequest("g1"))
	if end := readEvent(t, ws); end.Type != "end" || end.Outcome != string(game.OutcomeWon) {
		t.Fatalf("unexpected end: %+v", end)
	}
}

func TestHub_FiltersByGame(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ws := dial(t, srv, "?game_id=g2")
	if hello := readEvent(t, ws); hello.GameID != "g2" {
		t.Fatalf("hello game=%q", hello.GameID)
	}

	ctx := context.Background()
	hub.GameStarted(ctx, testRequest("g1"))
	hub.GameStarted(ctx, testRequest("g2"))

	ev := readEvent(t, ws)
	if ev.Type != "start" || ev.GameID != "g2" {
		t.Fatalf("got %+v, want start of g2", ev)
	}
}

func TestHub_RemovesClosedClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dial(t, srv, "")
	readEvent(t, ws)
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Broadcasting with nobody listening is fine.
	hub.GameStarted(context.Background(), testRequest("g1"))
}
