package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/flitsinc/go-transcript/internal/feed"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.Hub == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("stream hub"))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	if err := streamUpdates(ctx, s.Hub, sessionID, conn); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func streamUpdates(ctx context.Context, hub *feed.Hub, sessionID string, writer wsWriter) error {
	sub := hub.Subscribe(ctx, sessionID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-sub:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(update)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		}
	}
}
