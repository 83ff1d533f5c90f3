package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	httpHandler "pixeldraw/internal/handler/http"
	"pixeldraw/internal/hub"
	"pixeldraw/internal/middleware"
	"pixeldraw/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader      websocket.Upgrader
	hub           *hub.Hub
	canvasService *service.CanvasService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigins 为空时允许所有来源。
func NewWebSocketHandler(hub *hub.Hub, canvasService *service.CanvasService, allowedOrigins []string) *WebSocketHandler {
	if hub == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if canvasService == nil {
		panic("CanvasService cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		hub:           hub,
		canvasService: canvasService,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // 非浏览器客户端
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /ws/canvas/{id}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		logrus.Warn("WS Handler: Owner ID not found in context")
		httpHandler.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	canvasID := c.Param("id")
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "canvas_id": canvasID})

	// 升级前确认画布存在，错误还能以 HTTP 状态码返回
	if _, err := h.canvasService.Get(c.Request.Context(), ownerID, canvasID); err != nil {
		logCtx.WithError(err).Warn("WS Handler: Canvas validation failed")
		httpHandler.HandleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// Hub 注册成功后启动读写 goroutine
	client := hub.NewClient(h.hub, conn, ownerID, canvasID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	logCtx.Debug("WS Handler: Client registration request queued to Hub")
}
