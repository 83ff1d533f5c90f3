package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/service"
)

// PaletteHandler 封装了调色板相关的 HTTP 处理逻辑
type PaletteHandler struct {
	paletteService *service.PaletteService
}

// NewPaletteHandler 创建 PaletteHandler 实例
func NewPaletteHandler(paletteService *service.PaletteService) *PaletteHandler {
	if paletteService == nil {
		panic("PaletteService cannot be nil for PaletteHandler")
	}
	return &PaletteHandler{paletteService: paletteService}
}

// PaletteResponse 定义调色板响应，颜色编码为十六进制字符串
type PaletteResponse struct {
	Colors []domain.Color `json:"colors"`
}

type updatePaletteRequest struct {
	Colors []string `json:"colors" binding:"required"`
}

type appendColorRequest struct {
	Color string `json:"color" binding:"required"`
}

type replaceColorRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// GetPalette 处理 GET /api/palette
func (h *PaletteHandler) GetPalette(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	SuccessResponse(c, http.StatusOK, PaletteResponse{Colors: h.paletteService.Colors(c.Request.Context(), ownerID)})
}

// UpdatePalette 处理 PUT /api/palette
func (h *PaletteHandler) UpdatePalette(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	var req updatePaletteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	colors, ok := parseColors(c, req.Colors...)
	if !ok {
		return
	}
	h.respond(c, func() ([]domain.Color, error) {
		return h.paletteService.Update(c.Request.Context(), ownerID, colors)
	})
}

// AppendColor 处理 POST /api/palette/colors
func (h *PaletteHandler) AppendColor(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	var req appendColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	colors, ok := parseColors(c, req.Color)
	if !ok {
		return
	}
	h.respond(c, func() ([]domain.Color, error) {
		return h.paletteService.Append(c.Request.Context(), ownerID, colors[0])
	})
}

// ReplaceColor 处理 PUT /api/palette/colors
func (h *PaletteHandler) ReplaceColor(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	var req replaceColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	colors, ok := parseColors(c, req.From, req.To)
	if !ok {
		return
	}
	h.respond(c, func() ([]domain.Color, error) {
		return h.paletteService.Replace(c.Request.Context(), ownerID, colors[0], colors[1])
	})
}

func (h *PaletteHandler) respond(c *gin.Context, fn func() ([]domain.Color, error)) {
	colors, err := fn()
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, PaletteResponse{Colors: colors})
}

// parseColors 严格解析请求中的颜色，失败时直接返回 400。
// 持久化数据的容错回退不适用于用户输入。
func parseColors(c *gin.Context, hexes ...string) ([]domain.Color, bool) {
	colors := make([]domain.Color, len(hexes))
	for i, h := range hexes {
		color, err := domain.ParseColor(h)
		if err != nil {
			logrus.WithError(err).Debug("Handler: Invalid color in request")
			HandleServiceError(c, service.ErrInvalidColor)
			return nil, false
		}
		colors[i] = color
	}
	return colors, true
}
