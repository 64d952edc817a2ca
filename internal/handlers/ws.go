package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sessionWSReadLimit    = 4 << 10
	sessionWSPongWait     = 60 * time.Second
	sessionWSPingInterval = 45 * time.Second
	sessionWSWriteWait    = 10 * time.Second
)

var sessionWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionWS handles GET /v1/sessions/{id}/ws and pushes a snapshot on every state change.
// Client messages are ignored; the connection ends when the session is closed.
func (h *Handler) SessionWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	conn, err := sessionWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("session ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, stop := sess.Watch()
	defer stop()

	conn.SetReadLimit(sessionWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(sessionWSPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(sessionWSPongWait))
		return nil
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("session ws read")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(sessionWSPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(sessionWSWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(sessionWSWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				log.Debug().Err(err).Msg("session ws write")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(sessionWSWriteWait)); err != nil {
				return
			}
		}
	}
}
