package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/chiwei-platform/host-engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type LogHandler struct {
	svc *service.LogService
}

func NewLogHandler(svc *service.LogService) *LogHandler {
	return &LogHandler{svc: svc}
}

func (h *LogHandler) Recent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	n, _ := strconv.Atoi(r.URL.Query().Get("lines"))
	lines, err := h.svc.Recent(r.Context(), name, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 引擎面向内网操作者，来源检查交给部署形态
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// Stream 把应用日志实时推给 WebSocket 客户端。
// 客户端消费太慢、订阅缓冲写满时订阅被摘除，连接随之结束，日志发布方不被反压。
func (h *LogHandler) Stream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "app")
	sub, err := h.svc.Subscribe(r.Context(), name, 256)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		return
	}
	defer conn.Close()
	defer sub.Cancel()

	// 读循环只为感知断连
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	for line := range sub.C {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(line); err != nil {
			slog.Debug("log stream client gone", "app", name, "error", err)
			return
		}
	}
}
