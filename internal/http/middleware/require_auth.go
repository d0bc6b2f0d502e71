package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oneonone97/Ecom-sub000/internal/shared/apperr"
)

const (
	// Identity is established upstream (API gateway / BFF); it arrives as a
	// trusted header. The service itself never sees credentials.
	HeaderUserID = "X-User-ID"
	CtxKeyUserID = "user_id"
)

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" {
			Fail(c, apperr.UnauthorizedErr("Authentication required."))
			return
		}
		c.Set(CtxKeyUserID, uid)
		c.Next()
	}
}

func CurrentUserID(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
