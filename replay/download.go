package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultEngineURL = "wss://engine.battlesnake.com/games/%s/events"

type Downloader struct {
	// EngineURL is a format string taking the game ID.
	EngineURL      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Logger         *slog.Logger
}

func NewDownloader(logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		EngineURL:      DefaultEngineURL,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		Logger:         logger,
	}
}

// Download reads the whole event stream of one game. A stream that breaks
// off after at least one frame is returned as is.
func (d *Downloader) Download(ctx context.Context, gameID string) (*Game, error) {
	url := fmt.Sprintf(d.EngineURL, gameID)
	dialer := websocket.Dialer{HandshakeTimeout: d.ConnectTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	g := &Game{}
	for {
		_ = conn.SetReadDeadline(time.Now().Add(d.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || len(g.Frames) > 0 {
				break
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read %s: %w", gameID, err)
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			d.Logger.Warn("skipping malformed event", "game_id", gameID, "error", err)
			continue
		}

		done := false
		switch ev.Type {
		case "game_info":
			if err := json.Unmarshal(ev.Data, &g.Info); err != nil {
				d.Logger.Warn("malformed game_info", "game_id", gameID, "error", err)
			}
		case "frame":
			var f Frame
			if err := json.Unmarshal(ev.Data, &f); err != nil {
				d.Logger.Warn("malformed frame", "game_id", gameID, "error", err)
				continue
			}
			g.Frames = append(g.Frames, f)
		case "game_end":
			done = true
		}
		if done {
			break
		}
	}

	if len(g.Frames) == 0 {
		return nil, fmt.Errorf("game %s: no frames", gameID)
	}
	if g.Info.Game.ID == "" {
		g.Info.Game.ID = gameID
	}
	sort.SliceStable(g.Frames, func(i, j int) bool { return g.Frames[i].Turn < g.Frames[j].Turn })
	return g, nil
}
