// Package handler implements the HTTP surface: user auth and profile,
// points, recharge, and the admin console API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/apiserver/middleware"
	"github.com/halolabs/memberd/internal/auth/jwt"
	"github.com/halolabs/memberd/internal/common/config"
	"github.com/halolabs/memberd/internal/common/dto"
	"github.com/halolabs/memberd/internal/common/errorx"
	"github.com/halolabs/memberd/internal/core/points"
	"github.com/halolabs/memberd/internal/core/recharge"
	"github.com/halolabs/memberd/internal/notify/email"
	"github.com/halolabs/memberd/internal/notify/sms"
	"github.com/halolabs/memberd/internal/storage"
	"github.com/halolabs/memberd/internal/sysconfig"
)

// Handler bundles the engines and collaborators behind the HTTP
// routes.
type Handler struct {
	db       database.Database
	jwt      *jwt.Service
	points   *points.Engine
	recharge *recharge.Engine
	configs  *sysconfig.Loader
	files    storage.Provider
	upload   config.UploadConfig
	email    *email.Sender
	sms      *sms.Sender
	errors   *errorx.ErrorHandler
	logger   *zap.Logger
}

// NewHandler creates the handler set.
func NewHandler(
	db database.Database,
	jwtService *jwt.Service,
	pointsEngine *points.Engine,
	rechargeEngine *recharge.Engine,
	configs *sysconfig.Loader,
	files storage.Provider,
	upload config.UploadConfig,
	emailSender *email.Sender,
	smsSender *sms.Sender,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:       db,
		jwt:      jwtService,
		points:   pointsEngine,
		recharge: rechargeEngine,
		configs:  configs,
		files:    files,
		upload:   upload,
		email:    emailSender,
		sms:      smsSender,
		errors:   errorx.NewErrorHandler(logger),
		logger:   logger.Named("handler"),
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")

	// App-credential routes: no user token exists yet.
	appAuth := api.Group("/users", middleware.AppAuthMiddleware(h.db))
	appAuth.POST("/register", h.Register)
	appAuth.POST("/login", h.Login)

	// User-token routes.
	user := api.Group("", middleware.UserAuthMiddleware(h.jwt, h.db))
	user.GET("/users/profile", h.GetProfile)
	user.PUT("/users/profile", h.UpdateProfile)
	user.POST("/users/avatar", h.UploadAvatar)
	user.GET("/users/member", h.MemberStatus)
	user.GET("/users/member/verify", middleware.RequireMemberMiddleware(), h.VerifyMember)

	user.POST("/points/add", h.AddPoints)
	user.POST("/points/deduct", h.DeductPoints)
	user.GET("/points/records", h.ListPointRecords)

	user.POST("/recharge/card", h.RedeemCard)
	user.POST("/recharge/order", h.CreateOrder)
	user.GET("/recharge/records", h.ListRechargeRecords)

	// Admin routes.
	api.POST("/admin/login", h.AdminLogin)
	admin := api.Group("/admin", middleware.AdminAuthMiddleware(h.jwt))
	admin.GET("/members", h.ListMembers)
	admin.GET("/members/:id", h.GetMember)
	admin.PUT("/members/:id", h.UpdateMember)
	admin.GET("/apps", h.ListApps)
	admin.POST("/apps", h.CreateApp)
	admin.PUT("/apps/:id", h.UpdateApp)
	admin.GET("/levels", h.ListLevels)
	admin.POST("/levels", h.CreateLevel)
	admin.PUT("/levels/:id", h.UpdateLevel)
	admin.GET("/cards", h.ListCards)
	admin.POST("/cards/batch", h.BatchCreateCards)
	admin.GET("/configs", h.GetConfigs)
	admin.PUT("/configs", h.UpdateConfigs)
}

func (h *Handler) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *Handler) paged(c *gin.Context, items any, total int64, page dto.Pagination) {
	h.ok(c, dto.PagedResponse{Items: items, Total: total, Page: page.Page, Limit: page.Limit})
}

func (h *Handler) bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.errors.Handle(c, errorx.InvalidRequest(err.Error()))
		return false
	}
	return true
}

func (h *Handler) bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.errors.Handle(c, errorx.InvalidRequest(err.Error()))
		return false
	}
	return true
}
