package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/service"
)

// LiveBoards 提供打开中画布的实时可见状态，由 hub.Hub 实现
type LiveBoards interface {
	LiveBoard(canvasID string) (domain.BoardState, bool)
}

// CanvasHandler 封装了画布列表相关的 HTTP 处理逻辑
type CanvasHandler struct {
	canvasService *service.CanvasService
	live          LiveBoards
}

// NewCanvasHandler 创建 CanvasHandler 实例。live 可以为 nil，此时只读取存储的状态。
func NewCanvasHandler(canvasService *service.CanvasService, live LiveBoards) *CanvasHandler {
	if canvasService == nil {
		panic("CanvasService cannot be nil for CanvasHandler")
	}
	return &CanvasHandler{canvasService: canvasService, live: live}
}

// CreateCanvasRequest 定义创建画布请求，省略的字段使用默认值
type CreateCanvasRequest struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	PixelSize float64 `json:"pixelSize"`
}

// CanvasListResponse 定义画布列表响应
type CanvasListResponse struct {
	Canvases []domain.Canvas `json:"canvases"`
}

// CanvasDetailResponse 包含画布元数据和当前可见像素
type CanvasDetailResponse struct {
	Canvas domain.Canvas     `json:"canvas"`
	State  domain.BoardState `json:"state"`
}

// ListCanvases 处理 GET /api/canvases
func (h *CanvasHandler) ListCanvases(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	canvases, err := h.canvasService.List(c.Request.Context(), ownerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, CanvasListResponse{Canvases: canvases})
}

// CreateCanvas 处理 POST /api/canvases，请求体可以为空
func (h *CanvasHandler) CreateCanvas(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	var req CreateCanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logrus.WithError(err).Warn("Handler.CreateCanvas: Invalid request body")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	canvas, err := h.canvasService.Create(c.Request.Context(), ownerID, req.Width, req.Height, req.PixelSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, canvas)
}

// GetCanvas 处理 GET /api/canvases/:id。
// 画布正在被编辑时返回会话中的实时状态，否则返回最近保存的状态。
func (h *CanvasHandler) GetCanvas(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	canvasID := c.Param("id")
	canvas, err := h.canvasService.Get(c.Request.Context(), ownerID, canvasID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if h.live != nil {
		if state, open := h.live.LiveBoard(canvasID); open {
			SuccessResponse(c, http.StatusOK, CanvasDetailResponse{Canvas: *canvas, State: state})
			return
		}
	}

	state, err := h.canvasService.StoredBoard(c.Request.Context(), canvas)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, CanvasDetailResponse{Canvas: *canvas, State: state})
}

// DeleteCanvas 处理 DELETE /api/canvases/:id
func (h *CanvasHandler) DeleteCanvas(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	if err := h.canvasService.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
