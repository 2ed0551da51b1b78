package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RealtimeHandler struct {
	Redis  *redis.Client
	Logger *logrus.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin dicek di layer gateway/CORS di depan
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *RealtimeHandler) Register(r *chi.Mux) {
	r.Get("/v1/realtime", h.subscribe)
}

// subscribe: bridge Redis pub/sub -> WebSocket. Delivery best-effort,
// at-most-once; client yang putus tinggal reconnect + pull status query.
func (h *RealtimeHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	topics := r.URL.Query()["topic"]
	if len(topics) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing topic"})
		return
	}
	for _, t := range topics {
		if !strings.HasPrefix(t, "event:") && !strings.HasPrefix(t, "user:") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic must be event:<id> or user:<id>"})
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sub := h.Redis.Subscribe(ctx, topics...)
	defer sub.Close()

	// reader cuma buat deteksi close dari client
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case m, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m.Payload)); err != nil {
				return
			}
		}
	}
}
