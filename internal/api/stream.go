package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/bobarin/tourgen/internal/progress"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the API key
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamJobProgress handles GET /v1/jobs/{id}/ws
// Pushes the current status, then every update, and closes once the job is terminal.
func (h *Handler) StreamJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before reading the snapshot so no update falls in between
	updates, err := h.progress.Subscribe(ctx, jobID)
	if err != nil {
		h.writeClose(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}

	// The read loop only notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current, err := h.progress.Get(ctx, jobID)
	switch {
	case errors.Is(err, progress.ErrUnknownJob):
	case err != nil:
		h.writeClose(conn, websocket.CloseInternalServerErr, "progress unavailable")
		return
	default:
		if err := h.writeStatus(conn, *current); err != nil || current.Terminal() {
			h.writeClose(conn, websocket.CloseNormalClosure, "done")
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := h.writeStatus(conn, s); err != nil {
				return
			}
			if s.Terminal() {
				h.writeClose(conn, websocket.CloseNormalClosure, "done")
				return
			}
		}
	}
}

func (h *Handler) writeStatus(conn *websocket.Conn, s progress.Status) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(s)
}

func (h *Handler) writeClose(conn *websocket.Conn, code int, text string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}
