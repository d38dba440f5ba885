package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
)

// =============================================================================
// 📡 调用事件 WebSocket Handler
// =============================================================================

const (
	// 每个连接的事件缓冲，打满时总线丢弃该连接的事件
	streamBuffer = 64

	streamWriteTimeout = 5 * time.Second
)

// StreamHandler 把事件总线桥接到 WebSocket 连接
type StreamHandler struct {
	bus     *skill.Bus
	origins []string
	logger  *zap.Logger
}

// NewStreamHandler 创建事件流处理器。origins 为允许的跨域来源模式，
// 含 "*" 时跳过来源校验。
func NewStreamHandler(bus *skill.Bus, origins []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		bus:     bus,
		origins: origins,
		logger:  logger.With(zap.String("handler", "stream")),
	}
}

// HandleStream 处理 GET /api/v1/events/stream
// @Summary 调用事件流
// @Description 升级为 WebSocket，推送调用生命周期事件（started/succeeded/failed）
// @Tags 事件
// @Success 101 "协议切换"
// @Router /api/v1/events/stream [get]
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	for _, o := range h.origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			break
		}
		opts.OriginPatterns = append(opts.OriginPatterns, o)
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}

	events, cancel := h.bus.Subscribe(streamBuffer)
	defer cancel()

	h.logger.Info("event stream client connected", zap.String("remote", r.RemoteAddr))

	ctx := r.Context()
	var writeMu sync.Mutex

	// 读循环只为发现客户端断开，收到的帧一律丢弃
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}

		writeCtx, writeCancel := context.WithTimeout(ctx, streamWriteTimeout)
		writeMu.Lock()
		err = conn.Write(writeCtx, websocket.MessageText, data)
		writeMu.Unlock()
		writeCancel()

		if err != nil {
			h.logger.Debug("event stream write failed, dropping client",
				zap.String("remote", r.RemoteAddr),
				zap.Error(err))
			conn.Close(websocket.StatusPolicyViolation, "write failed")
			return
		}
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
