package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/dto"
	"hums/backend/internal/service"
	"hums/backend/pkg/response"
)

// PeriodHandler 排班周期与例外窗口 HTTP 处理器
type PeriodHandler struct {
	periodSvc service.PeriodService
	logger    *zap.Logger
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService, logger *zap.Logger) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc, logger: logger}
}

// List 周期列表（按访问权限过滤）
// GET /api/v1/periods
func (h *PeriodHandler) List(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.periodSvc.List(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Get 周期详情
// GET /api/v1/periods/:id
func (h *PeriodHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.GetByID(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, period)
}

// Create 创建周期
// POST /api/v1/periods
func (h *PeriodHandler) Create(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Created(c, period)
}

// Update 更新周期；窗口变化时返回重新生成结果
// PUT /api/v1/periods/:id
func (h *PeriodHandler) Update(c *gin.Context) {
	var req dto.UpdatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, res, err := h.periodSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"period": period, "regenerate": res})
}

// Delete 删除周期（级联）
// DELETE /api/v1/periods/:id
func (h *PeriodHandler) Delete(c *gin.Context) {
	if err := h.periodSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, nil)
}

// Regenerate 手动触发周期内全部模板重新生成
// POST /api/v1/periods/:id/regenerate
func (h *PeriodHandler) Regenerate(c *gin.Context) {
	res, err := h.periodSvc.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, res)
}

// ── 例外窗口 ──

// ListExceptions 周期例外列表
// GET /api/v1/periods/:id/exceptions
func (h *PeriodHandler) ListExceptions(c *gin.Context) {
	list, err := h.periodSvc.ListExceptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateException 新增例外窗口
// POST /api/v1/periods/:id/exceptions
func (h *PeriodHandler) CreateException(c *gin.Context) {
	var req dto.ExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	exc, res, err := h.periodSvc.CreateException(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.Created(c, gin.H{"exception": exc, "regenerate": res})
}

// UpdateException 修改例外窗口
// PUT /api/v1/exceptions/:id
func (h *PeriodHandler) UpdateException(c *gin.Context) {
	var req dto.ExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	exc, res, err := h.periodSvc.UpdateException(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"exception": exc, "regenerate": res})
}

// DeleteException 删除例外窗口
// DELETE /api/v1/exceptions/:id
func (h *PeriodHandler) DeleteException(c *gin.Context) {
	res, err := h.periodSvc.DeleteException(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"regenerate": res})
}

// ImportExceptions 从节假日 ICS 导入例外
// POST /api/v1/periods/:id/exceptions/import
//
//   - multipart/form-data: 字段 file 上传 .ics 文件
//   - application/json: {"url": "..."} 订阅地址
func (h *PeriodHandler) ImportExceptions(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	periodID := c.Param("id")

	var (
		list []dto.ExceptionResponse
		res  *dto.RegenerateResult
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			response.BadRequest(c, 10001, "请上传 ICS 文件")
			return
		}
		f, ferr := fh.Open()
		if ferr != nil {
			response.BadRequest(c, 10001, "无法读取上传文件")
			return
		}
		defer f.Close()
		list, res, err = h.periodSvc.ImportExceptions(c.Request.Context(), periodID, f, callerID)
	} else {
		var req dto.ImportExceptionsRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			bindFailed(c, berr)
			return
		}
		list, res, err = h.periodSvc.ImportExceptionsFromURL(c.Request.Context(), periodID, req.URL, callerID)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.OK(c, gin.H{"list": list, "regenerate": res})
}
