package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// upgrader upgrades dashboard HTTP requests to websocket connections.
// Origin checking is left to the deployment's reverse proxy; tokens are
// already validated before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and streams the company's events until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, companyID uint64) {
	conn, errUpgrade := upgrader.Upgrade(w, r, nil)
	if errUpgrade != nil {
		log.Debugf("realtime: upgrade failed: %v", errUpgrade)
		return
	}

	events, cancel := h.Subscribe(companyID)
	defer cancel()
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})

	// Reader drains control frames and detects disconnects.
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, errRead := conn.ReadMessage(); errRead != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event := <-events:
			payload, errEncode := json.Marshal(event)
			if errEncode != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errWrite := conn.WriteMessage(websocket.TextMessage, payload); errWrite != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errPing := conn.WriteMessage(websocket.PingMessage, nil); errPing != nil {
				return
			}
		}
	}
}
