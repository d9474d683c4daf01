package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/dto"
	"github.com/halolabs/memberd/internal/common/errorx"
	"github.com/halolabs/memberd/pkg/utils"
)

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// AdminLogin authenticates an operator and issues an admin token.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req dto.AdminLoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	admin, err := h.db.GetAdminByUsername(ctx, req.Username)
	if err != nil {
		h.errors.Handle(c, errorx.ErrInvalidCredentials)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)) != nil {
		h.errors.Handle(c, errorx.ErrInvalidCredentials)
		return
	}
	if admin.Status != database.StatusActive {
		h.errors.Handle(c, errorx.ErrInvalidCredentials)
		return
	}

	now := time.Now()
	admin.LastLoginAt = &now
	if err := h.db.UpdateAdmin(ctx, admin); err != nil {
		h.errors.Handle(c, err)
		return
	}

	token, err := h.jwt.GenerateAdminToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.logger.Info("admin logged in", zap.String("username", admin.Username))
	h.ok(c, gin.H{"token": token, "admin": admin})
}

// ListMembers pages through users across apps with optional filters.
func (h *Handler) ListMembers(c *gin.Context) {
	var query dto.ListMembersQuery
	if !h.bindQuery(c, &query) {
		return
	}

	users, total, err := h.db.ListUsers(c.Request.Context(), database.UserFilter{
		AppID:   query.AppID,
		Keyword: query.Keyword,
	}, query.Page, query.Limit)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.paged(c, users, total, query.Pagination)
}

// GetMember returns one user by id.
func (h *Handler) GetMember(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.errors.Handle(c, errorx.InvalidRequest("invalid member id"))
		return
	}
	user, err := h.db.GetUserByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		h.errors.Handle(c, errorx.ErrUserNotFound)
		return
	}
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, user)
}

// UpdateMember mutates a user's status, level, or expiry from the
// admin surface.
func (h *Handler) UpdateMember(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.errors.Handle(c, errorx.InvalidRequest("invalid member id"))
		return
	}
	var req dto.UpdateMemberRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.db.GetUserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		h.errors.Handle(c, errorx.ErrUserNotFound)
		return
	}
	if err != nil {
		h.errors.Handle(c, err)
		return
	}

	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.LevelID != nil {
		if _, err := h.db.GetLevelByID(ctx, *req.LevelID); err != nil {
			h.errors.Handle(c, errorx.ErrLevelNotFound)
			return
		}
		user.LevelID = *req.LevelID
	}
	if req.MemberExpiresAt != nil {
		user.MemberExpiresAt = req.MemberExpiresAt
	}
	if err := h.db.UpdateUser(ctx, user); err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, user)
}

// ListApps returns all tenant apps.
func (h *Handler) ListApps(c *gin.Context) {
	apps, err := h.db.ListApps(c.Request.Context())
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, apps)
}

// CreateApp registers a tenant. The generated secret is returned only
// in this response.
func (h *Handler) CreateApp(c *gin.Context) {
	var req dto.CreateAppRequest
	if !h.bindJSON(c, &req) {
		return
	}

	app := &database.App{
		AppID:      utils.AppID(),
		AppName:    req.AppName,
		AppSecret:  utils.AppSecret(),
		LoginMode:  req.LoginMode,
		ChargeMode: req.ChargeMode,
		Status:     database.StatusActive,
	}
	if err := h.db.CreateApp(c.Request.Context(), app); err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.logger.Info("app created", zap.String("app_id", app.AppID))
	h.ok(c, gin.H{
		"id":          app.ID,
		"app_id":      app.AppID,
		"app_name":    app.AppName,
		"app_secret":  app.AppSecret,
		"login_mode":  app.LoginMode,
		"charge_mode": app.ChargeMode,
	})
}

// UpdateApp mutates tenant settings.
func (h *Handler) UpdateApp(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.errors.Handle(c, errorx.InvalidRequest("invalid app id"))
		return
	}
	var req dto.UpdateAppRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	app, err := h.db.GetAppByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		h.errors.Handle(c, errorx.ErrAppNotFound)
		return
	}
	if err != nil {
		h.errors.Handle(c, err)
		return
	}

	if req.AppName != nil {
		app.AppName = *req.AppName
	}
	if req.LoginMode != nil {
		app.LoginMode = *req.LoginMode
	}
	if req.ChargeMode != nil {
		app.ChargeMode = *req.ChargeMode
	}
	if req.Status != nil {
		app.Status = *req.Status
	}
	if err := h.db.UpdateApp(ctx, app); err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, app)
}

// ListLevels returns all member tiers.
func (h *Handler) ListLevels(c *gin.Context) {
	levels, err := h.db.ListLevels(c.Request.Context())
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, levels)
}

// CreateLevel defines a member tier.
func (h *Handler) CreateLevel(c *gin.Context) {
	var req dto.CreateLevelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	discount := req.Discount
	if discount == 0 {
		discount = 1
	}
	level := &database.MemberLevel{
		LevelName:  req.LevelName,
		LevelValue: req.LevelValue,
		MinPoints:  req.MinPoints,
		Discount:   discount,
		Benefits:   req.Benefits,
		Status:     database.StatusActive,
	}
	if err := h.db.CreateLevel(c.Request.Context(), level); err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, level)
}

// UpdateLevel mutates a member tier.
func (h *Handler) UpdateLevel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.errors.Handle(c, errorx.InvalidRequest("invalid level id"))
		return
	}
	var req dto.UpdateLevelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	level, err := h.db.GetLevelByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		h.errors.Handle(c, errorx.ErrLevelNotFound)
		return
	}
	if err != nil {
		h.errors.Handle(c, err)
		return
	}

	if req.LevelName != nil {
		level.LevelName = *req.LevelName
	}
	if req.LevelValue != nil {
		level.LevelValue = *req.LevelValue
	}
	if req.MinPoints != nil {
		level.MinPoints = *req.MinPoints
	}
	if req.Discount != nil {
		level.Discount = *req.Discount
	}
	if req.Benefits != nil {
		level.Benefits = *req.Benefits
	}
	if req.Status != nil {
		level.Status = *req.Status
	}
	if err := h.db.UpdateLevel(ctx, level); err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, level)
}

// ListCards pages through recharge cards, optionally by status.
func (h *Handler) ListCards(c *gin.Context) {
	var query dto.ListCardsQuery
	if !h.bindQuery(c, &query) {
		return
	}

	cards, total, err := h.db.ListCards(c.Request.Context(), query.Status, query.Page, query.Limit)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.paged(c, cards, total, query.Pagination)
}

// BatchCreateCards mints cards with generated numbers and one-time
// plaintext passwords. Only the hash is stored; the plaintext in this
// response is the only copy that will ever exist.
func (h *Handler) BatchCreateCards(c *gin.Context) {
	var req dto.BatchCreateCardsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	credentials := make([]dto.CardCredential, 0, req.Count)
	err := h.db.Transaction(ctx, func(ctx context.Context) error {
		for i := 0; i < req.Count; i++ {
			cardNo := utils.CardNo()
			plain := utils.CardPassword()
			hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			card := &database.RechargeCard{
				CardNo:       cardNo,
				CardPassword: string(hash),
				ExpiresDays:  req.ExpiresDays,
				Points:       req.Points,
				Status:       database.CardStatusUnused,
				ExpiredAt:    req.ExpiredAt,
			}
			if err := h.db.CreateCard(ctx, card); err != nil {
				return err
			}
			credentials = append(credentials, dto.CardCredential{
				CardNo:       cardNo,
				CardPassword: plain,
				ExpiresDays:  req.ExpiresDays,
				Points:       req.Points,
				ExpiredAt:    req.ExpiredAt,
			})
		}
		return nil
	})
	if err != nil {
		h.errors.Handle(c, err)
		return
	}

	h.logger.Info("cards created", zap.Int("count", req.Count))
	h.ok(c, gin.H{"cards": credentials})
}

// GetConfigs lists system config rows with secret values masked.
func (h *Handler) GetConfigs(c *gin.Context) {
	rows, err := h.db.ListSystemConfigs(c.Request.Context())
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	for _, row := range rows {
		if isSecretKey(row.ConfigKey) && row.ConfigValue != "" {
			row.ConfigValue = "******"
		}
	}
	h.ok(c, rows)
}

func isSecretKey(key string) bool {
	return strings.Contains(key, "password") || strings.Contains(key, "secret")
}

// UpdateConfigs upserts config rows, reloads the runtime snapshot and
// notifies peer instances.
func (h *Handler) UpdateConfigs(c *gin.Context) {
	var req dto.UpdateConfigsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	keys := make([]string, 0, len(req.Configs))
	for key, value := range req.Configs {
		if err := h.db.UpsertSystemConfig(ctx, &database.SystemConfig{
			ConfigKey:   key,
			ConfigValue: value,
		}); err != nil {
			h.errors.Handle(c, err)
			return
		}
		keys = append(keys, key)
	}

	if err := h.configs.NotifyReload(ctx, keys); err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.logger.Info("system configs updated", zap.Strings("keys", keys))
	h.ok(c, gin.H{"updated": keys})
}
