package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hums/backend/config"
	"hums/backend/internal/access"
	"hums/backend/internal/api/handler"
	"hums/backend/internal/api/middleware"
	"hums/backend/pkg/jwt"
	"hums/backend/pkg/redis"
)

// Deps 路由依赖；Redis 与 Gatherer 可为 nil
type Deps struct {
	Config     *config.Config
	Handler    *handler.Handler
	JWT        *jwt.Manager
	Redis      *redis.Client
	Permission access.PermissionChecker
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	cfg, h := d.Config, d.Handler
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger, "/health", cfg.Metrics.Path))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitMB << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled && d.Gatherer != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	requirePerm := func(perms ...string) gin.HandlerFunc {
		return middleware.RequirePermission(d.Permission, perms...)
	}
	limit := func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		limit = middleware.RateLimit(d.Redis, cfg.RateLimit.Requests, cfg.RateLimit.Window, d.Logger)
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(d.JWT, d.Redis, d.Logger))
	{
		// 排班周期与例外窗口
		periods := authorized.Group("/periods")
		{
			periods.GET("", h.Period.List)
			periods.GET("/:id", h.Period.Get)
			periods.POST("", requirePerm(access.PermPeriodManage), h.Period.Create)
			periods.PUT("/:id", requirePerm(access.PermPeriodManage), h.Period.Update)
			periods.DELETE("/:id", requirePerm(access.PermPeriodManage), h.Period.Delete)
			periods.POST("/:id/regenerate", requirePerm(access.PermPeriodManage), h.Period.Regenerate)

			periods.GET("/:id/exceptions", h.Period.ListExceptions)
			periods.POST("/:id/exceptions", requirePerm(access.PermPeriodManage), h.Period.CreateException)
			periods.POST("/:id/exceptions/import", requirePerm(access.PermPeriodManage), h.Period.ImportExceptions)

			periods.GET("/:id/shift-types", h.ShiftType.ListByPeriod)

			// 列表视图与实时事件
			periods.GET("/:id/registration", h.Schedule.ListForRegistration)
			periods.GET("/:id/overview", h.Schedule.ListForOverview)
			periods.GET("/:id/pickup", h.Schedule.ListPickupCandidates)
			periods.GET("/:id/events", h.Event.Stream)
			periods.GET("/:id/calendar.ics", h.Export.Calendar)

			// 考勤
			periods.GET("/:id/attendance/my-stats", h.Attendance.MyStats)
			periods.GET("/:id/attendance/stats", requirePerm(access.PermAttendanceManage), h.Attendance.Stats)
			periods.GET("/:id/attendance/review", requirePerm(access.PermAttendanceManage), h.Attendance.Review)

			// 导出
			periods.GET("/:id/export/schedule", requirePerm(access.PermScheduleManage), h.Export.ExportSchedule)
			periods.GET("/:id/export/attendance", requirePerm(access.PermAttendanceManage), h.Export.ExportAttendance)
		}

		exceptions := authorized.Group("/exceptions", requirePerm(access.PermPeriodManage))
		{
			exceptions.PUT("/:id", h.Period.UpdateException)
			exceptions.DELETE("/:id", h.Period.DeleteException)
		}

		shiftTypes := authorized.Group("/shift-types")
		{
			shiftTypes.GET("/:id", h.ShiftType.Get)
			shiftTypes.POST("", requirePerm(access.PermScheduleManage), h.ShiftType.Create)
			shiftTypes.PUT("/:id", requirePerm(access.PermScheduleManage), h.ShiftType.Update)
			shiftTypes.DELETE("/:id", requirePerm(access.PermScheduleManage), h.ShiftType.Delete)
		}

		schedules := authorized.Group("/schedules")
		{
			schedules.GET("/:id", h.Schedule.Get)
			schedules.POST("", requirePerm(access.PermScheduleManage), h.Schedule.Create)
			schedules.PUT("/:id", requirePerm(access.PermScheduleManage), h.Schedule.Update)
			schedules.DELETE("/:id", requirePerm(access.PermScheduleManage), h.Schedule.Delete)

			schedules.POST("/:id/register", limit, h.Assignment.Register)
			schedules.POST("/:id/unregister", limit, h.Assignment.Unregister)
			schedules.POST("/:id/force-register", requirePerm(access.PermScheduleManage), h.Assignment.ForceRegister)
			schedules.POST("/:id/force-unregister", requirePerm(access.PermScheduleManage), h.Assignment.ForceUnregister)
		}

		occurrences := authorized.Group("/occurrences")
		{
			occurrences.GET("/my", h.Schedule.ListMyOccurrences)
			occurrences.POST("/:id/pickup", limit, h.Assignment.Pickup)
			occurrences.POST("/:id/drop", limit, h.Assignment.Drop)
			occurrences.POST("/:id/drop-makeup", limit, h.Assignment.DropMakeup)

			// 打卡终端以系统账号调用
			occurrences.POST("/:id/time-in", requirePerm(access.PermAttendanceManage), h.Attendance.TimeIn)
			occurrences.POST("/:id/time-out", requirePerm(access.PermAttendanceManage), h.Attendance.TimeOut)
		}

		attendance := authorized.Group("/attendance", requirePerm(access.PermAttendanceManage))
		{
			attendance.GET("", h.Attendance.List)
			attendance.POST("/:id/excuse", h.Attendance.Excuse)
			attendance.DELETE("/:id/excuse", h.Attendance.RevokeExcuse)
		}

		settings := authorized.Group("/settings")
		{
			settings.GET("", h.Settings.Get)
			settings.PUT("", requirePerm(access.PermAttendanceManage), h.Settings.Update)
		}
	}

	return r
}
