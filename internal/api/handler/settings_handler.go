package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/dto"
	"hums/backend/internal/service"
	"hums/backend/pkg/response"
)

// SettingsHandler 考勤宽限等系统设置
type SettingsHandler struct {
	settingsSvc service.SettingsService
	logger      *zap.Logger
}

// NewSettingsHandler 创建 SettingsHandler
func NewSettingsHandler(settingsSvc service.SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settingsSvc: settingsSvc, logger: logger}
}

// Get 读取设置
// GET /api/v1/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.settingsSvc.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, s)
}

// Update 更新设置
// PUT /api/v1/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	s, err := h.settingsSvc.Update(c.Request.Context(), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, s)
}
