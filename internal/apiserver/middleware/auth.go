package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/auth/jwt"
	"github.com/halolabs/memberd/internal/common/errorx"
)

// Context keys set by the auth middleware chain.
const (
	ContextKeyClaims      = "claims"
	ContextKeyAdminClaims = "adminClaims"
	ContextKeyUser        = "user"
	ContextKeyApp         = "app"
)

func abortWith(c *gin.Context, err *errorx.APIError) {
	c.AbortWithStatusJSON(err.HTTPStatus, gin.H{"success": false, "error": err})
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// UserAuthMiddleware validates the user token, loads the user and its
// app, and puts all three on the context.
func UserAuthMiddleware(jwtService *jwt.Service, db database.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWith(c, errorx.ErrUnauthorized)
			return
		}

		claims, err := jwtService.ValidateUserToken(token)
		if err != nil {
			abortWith(c, errorx.ErrUnauthorized)
			return
		}

		user, err := db.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil || user.Status != database.StatusActive || user.AppID != claims.AppID {
			abortWith(c, errorx.ErrUnauthorized)
			return
		}
		app, err := db.GetAppByAppID(c.Request.Context(), claims.AppID)
		if err != nil || app.Status != database.StatusActive {
			abortWith(c, errorx.ErrUnauthorized)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyApp, app)
		c.Next()
	}
}

// AdminAuthMiddleware validates the admin token and puts the claims on
// the context.
func AdminAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWith(c, errorx.ErrUnauthorized)
			return
		}

		claims, err := jwtService.ValidateAdminToken(token)
		if err != nil {
			abortWith(c, errorx.ErrUnauthorized)
			return
		}

		c.Set(ContextKeyAdminClaims, claims)
		c.Next()
	}
}

// AppAuthMiddleware authenticates a tenant app by the X-App-Id and
// X-App-Secret headers and puts the app on the context. Register and
// login run behind it, before any user token exists.
func AppAuthMiddleware(db database.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		appID := c.GetHeader("X-App-Id")
		appSecret := c.GetHeader("X-App-Secret")
		if appID == "" || appSecret == "" {
			abortWith(c, errorx.ErrAppUnauthorized)
			return
		}

		app, err := db.GetAppByAppID(c.Request.Context(), appID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				abortWith(c, errorx.ErrAppUnauthorized)
				return
			}
			abortWith(c, errorx.ErrStoreUnavailable)
			return
		}
		if app.AppSecret != appSecret || app.Status != database.StatusActive {
			abortWith(c, errorx.ErrAppUnauthorized)
			return
		}

		c.Set(ContextKeyApp, app)
		c.Next()
	}
}

// UserFromContext returns the authenticated user set by
// UserAuthMiddleware.
func UserFromContext(c *gin.Context) (*database.User, bool) {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*database.User)
	return user, ok
}

// AppFromContext returns the app set by UserAuthMiddleware or
// AppAuthMiddleware.
func AppFromContext(c *gin.Context) (*database.App, bool) {
	v, ok := c.Get(ContextKeyApp)
	if !ok {
		return nil, false
	}
	app, ok := v.(*database.App)
	return app, ok
}
