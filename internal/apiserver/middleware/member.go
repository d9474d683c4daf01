package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/halolabs/memberd/internal/common/errorx"
	"github.com/halolabs/memberd/internal/core/entitlement"
)

// RequireMemberMiddleware guards member-only routes. It must run after
// UserAuthMiddleware so the app and user are on the context.
func RequireMemberMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		app, okApp := AppFromContext(c)
		user, okUser := UserFromContext(c)
		if !okApp || !okUser {
			abortWith(c, errorx.ErrUnauthorized)
			return
		}

		if err := entitlement.Check(app, user, time.Now()); err != nil {
			abortWith(c, errorx.AsAPIError(err))
			return
		}
		c.Next()
	}
}
