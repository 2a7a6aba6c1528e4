package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-reservation/internal/live"
)

// LiveHandler upgrades clients onto the change-event stream. Events
// are cues to re-fetch, not diffs: after connecting (and after any
// disconnect) the client must fetch the listings it mirrors, because
// nothing missed while offline is replayed.
type LiveHandler struct {
	Hub *live.Hub
}

func NewLiveHandler(hub *live.Hub) *LiveHandler {
	return &LiveHandler{Hub: hub}
}

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens gate the endpoint; cross-origin browser clients are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	liveWriteWait    = 5 * time.Second
	livePingInterval = 15 * time.Second
)

// Subscribe handles GET /v1/live. The optional ?topics= query narrows
// the subscription to a comma-separated topic list; empty means all
// topics. Each event is written as one JSON text message.
func (h *LiveHandler) Subscribe(c echo.Context) error {
	var topics []string
	if raw := c.QueryParam("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	ws, err := liveUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Upgrade already wrote the error response
	}
	defer ws.Close()

	sub := h.Hub.Subscribe(topics...)
	defer sub.Close()

	// Reader goroutine: we never expect client messages, but reading
	// drains control frames and surfaces the close.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				// Evicted for falling behind: close with a policy code so
				// the client reconnects and resynchronizes.
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "resync required"),
					time.Now().Add(liveWriteWait))
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(liveWriteWait)); err != nil {
				return nil
			}
		case <-clientGone:
			return nil
		}
	}
}
