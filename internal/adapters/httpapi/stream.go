package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	readTimeout = 60 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamParticipants pushes one JSON frame per snapshot:
// {"participants":[...]} or, once, {"error":"..."} before closing.
func (s *Server) streamParticipants() gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := s.translator.Locale(c.GetHeader("Accept-Language"))
		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}
		defer ws.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		snapshots, err := s.participants.WatchParticipants(ctx)
		if err != nil {
			s.logger.Error("participant stream not established", "error", err)
			_ = writeJSON(ws, gin.H{"error": localize(s.translator, locale, err)})
			closeWith(ws, websocket.CloseTryAgainLater, "store unavailable")
			return
		}

		go discardInbound(ws, cancel)

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					closeWith(ws, websocket.CloseNormalClosure, "stream ended")
					return
				}
				if snap.Err != nil {
					s.logger.Warn("participant stream lost", "error", snap.Err)
					_ = writeJSON(ws, gin.H{"error": localize(s.translator, locale, snap.Err)})
					closeWith(ws, websocket.CloseTryAgainLater, "feed lost")
					return
				}
				if err := writeJSON(ws, gin.H{"participants": forDisplay(snap.Participants)}); err != nil {
					return
				}
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// discardInbound reads until the peer goes away, keeping pongs flowing, and
// then cancels the stream.
func discardInbound(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	ws.SetReadLimit(4 << 10)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := ws.NextReader(); err != nil {
			return
		}
	}
}

func writeJSON(ws *websocket.Conn, v any) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteJSON(v)
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
