package handler

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/apiserver/middleware"
	"github.com/halolabs/memberd/internal/common/dto"
	"github.com/halolabs/memberd/internal/common/errorx"
	"github.com/halolabs/memberd/internal/core/entitlement"
	"github.com/halolabs/memberd/internal/notify/email"
	"github.com/halolabs/memberd/internal/notify/sms"
)

// Register creates a user under the calling app. The required
// credential depends on the app's login mode.
func (h *Handler) Register(c *gin.Context) {
	app, ok := middleware.AppFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrAppUnauthorized)
		return
	}

	var req dto.RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user := &database.User{
		AppID:   app.AppID,
		Email:   req.Email,
		Phone:   req.Phone,
		Status:  database.StatusActive,
		LevelID: 1,
	}

	switch app.LoginMode {
	case database.LoginModeMachine:
		if req.MachineCode == "" {
			h.errors.Handle(c, errorx.InvalidRequest("machine_code is required"))
			return
		}
		if _, err := h.db.GetUserByMachineCode(ctx, app.AppID, req.MachineCode); err == nil {
			h.errors.Handle(c, errorx.ErrUserExists)
			return
		} else if !errors.Is(err, database.ErrNotFound) {
			h.errors.Handle(c, err)
			return
		}
		user.MachineCode = &req.MachineCode
	default:
		if req.Username == "" || req.Password == "" {
			h.errors.Handle(c, errorx.InvalidRequest("username and password are required"))
			return
		}
		if _, err := h.db.GetUserByUsername(ctx, app.AppID, req.Username); err == nil {
			h.errors.Handle(c, errorx.ErrUserExists)
			return
		} else if !errors.Is(err, database.ErrNotFound) {
			h.errors.Handle(c, err)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.errors.Handle(c, err)
			return
		}
		user.Username = &req.Username
		user.Password = string(hash)
	}

	if err := h.db.CreateUser(ctx, user); err != nil {
		h.errors.Handle(c, err)
		return
	}

	username := ""
	if user.Username != nil {
		username = *user.Username
	}
	token, err := h.jwt.GenerateUserToken(user.ID, app.AppID, username)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}

	h.logger.Info("user registered",
		zap.String("app_id", app.AppID),
		zap.Uint("user_id", user.ID))
	h.sendWelcome(app.AppName, user)
	h.ok(c, dto.LoginResponse{Token: token, User: user})
}

// sendWelcome notifies the new user out of band. Delivery failures
// never fail the registration.
func (h *Handler) sendWelcome(appName string, user *database.User) {
	if h.email != nil && user.Email != "" {
		go func(to string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			err := h.email.Send(ctx, to, "Welcome to "+appName,
				"Your account has been created.")
			if err != nil && !errors.Is(err, email.ErrDisabled) {
				h.logger.Warn("welcome email failed", zap.Error(err))
			}
		}(user.Email)
	}
	if h.sms != nil && user.Phone != "" {
		go func(phone string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			err := h.sms.Send(ctx, phone, "Welcome to "+appName+", your account has been created.")
			if err != nil && !errors.Is(err, sms.ErrDisabled) {
				h.logger.Warn("welcome sms failed", zap.Error(err))
			}
		}(user.Phone)
	}
}

// Login authenticates under the app's login mode and issues a token.
func (h *Handler) Login(c *gin.Context) {
	app, ok := middleware.AppFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrAppUnauthorized)
		return
	}

	var req dto.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		user *database.User
		err  error
	)
	switch app.LoginMode {
	case database.LoginModeMachine:
		if req.MachineCode == "" {
			h.errors.Handle(c, errorx.InvalidRequest("machine_code is required"))
			return
		}
		user, err = h.db.GetUserByMachineCode(ctx, app.AppID, req.MachineCode)
		if err != nil {
			h.errors.Handle(c, errorx.ErrInvalidCredentials)
			return
		}
	default:
		if req.Username == "" || req.Password == "" {
			h.errors.Handle(c, errorx.InvalidRequest("username and password are required"))
			return
		}
		user, err = h.db.GetUserByUsername(ctx, app.AppID, req.Username)
		if err != nil {
			h.errors.Handle(c, errorx.ErrInvalidCredentials)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
			h.errors.Handle(c, errorx.ErrInvalidCredentials)
			return
		}
	}

	if user.Status != database.StatusActive {
		h.errors.Handle(c, errorx.ErrInvalidCredentials)
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := h.db.UpdateUser(ctx, user); err != nil {
		h.errors.Handle(c, err)
		return
	}

	username := ""
	if user.Username != nil {
		username = *user.Username
	}
	token, err := h.jwt.GenerateUserToken(user.ID, app.AppID, username)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, dto.LoginResponse{Token: token, User: user})
}

// GetProfile returns the caller's own user row.
func (h *Handler) GetProfile(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}
	h.ok(c, user)
}

// UpdateProfile mutates the caller's email/phone.
func (h *Handler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	var req dto.UpdateProfileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, user)
}

// UploadAvatar stores a new avatar through the storage provider and
// best-effort deletes the previous one.
func (h *Handler) UploadAvatar(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		h.errors.Handle(c, errorx.InvalidRequest("avatar file is required"))
		return
	}
	if file.Size > h.upload.MaxFileSize {
		h.errors.Handle(c, errorx.InvalidRequest("file too large"))
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	allowed := false
	for _, t := range h.upload.AllowedTypes {
		if ext == t {
			allowed = true
			break
		}
	}
	if !allowed {
		h.errors.Handle(c, errorx.InvalidRequest("file type not allowed"))
		return
	}

	src, err := file.Open()
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	name := fmt.Sprintf("avatar_%d_%d.%s", user.ID, time.Now().UnixNano(), ext)
	url, err := h.files.Upload(ctx, name, src)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}

	oldURL := user.AvatarURL
	user.AvatarURL = url
	if err := h.db.UpdateUser(ctx, user); err != nil {
		h.errors.Handle(c, err)
		return
	}
	if oldURL != "" {
		if err := h.files.Delete(ctx, path.Base(oldURL)); err != nil {
			h.logger.Warn("failed to delete old avatar",
				zap.String("url", oldURL), zap.Error(err))
		}
	}
	h.ok(c, gin.H{"avatar_url": url})
}

// MemberStatus reports the caller's entitlement without gating.
func (h *Handler) MemberStatus(c *gin.Context) {
	app, _ := middleware.AppFromContext(c)
	user, ok := middleware.UserFromContext(c)
	if !ok || app == nil {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	h.ok(c, dto.MemberStatusResponse{
		IsMember:        entitlement.Check(app, user, time.Now()) == nil,
		ChargeMode:      app.ChargeMode,
		MemberExpiresAt: user.MemberExpiresAt,
		LevelID:         user.LevelID,
		Points:          user.Points,
	})
}

// VerifyMember only responds behind the membership gate; reaching it
// means the caller is entitled.
func (h *Handler) VerifyMember(c *gin.Context) {
	user, _ := middleware.UserFromContext(c)
	h.ok(c, gin.H{"member_expires_at": user.MemberExpiresAt})
}
