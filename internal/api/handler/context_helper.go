package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hums/backend/internal/access"
	"hums/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetPrincipal 从 Gin 上下文中安全提取当前操作者
func MustGetPrincipal(c *gin.Context) (access.Principal, bool) {
	v, exists := c.Get("principal")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return access.Principal{}, false
	}
	p, ok := v.(access.Principal)
	if !ok || p.UserID == "" {
		response.Unauthorized(c, 10002, "未认证")
		return access.Principal{}, false
	}
	return p, true
}

// bindFailed 请求参数校验失败；请求体超过 BodyLimit 时返回 413
func bindFailed(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
}

// respondError 业务错误按 AppError 输出，其余错误记日志后返回 500
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if response.FromError(c, err) {
		return
	}
	logger.Error("未处理的错误",
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
	response.InternalError(c)
}

// parseOptionalTime 解析可选的 RFC3339 查询参数，空串返回零值
func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
