package middleware

import (
	"context"
	"net/http"
	"strings"

	"Campus_Hub/internal/pkg"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey   = "user_id"
	ContextIdentityKey = "identity"
	AccessTokenCookie  = "access_token"
)

// IdentityResolver 与 websocket 握手共用同一个实现
type IdentityResolver interface {
	Authenticate(ctx context.Context, token string) (pkg.Identity, error)
}

func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization format"})
			return
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}

		// redis 校验是否是当前有效的 token，通过后续期
		id, err := resolver.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		c.Set(ContextUserIDKey, id.UserID)
		c.Set(ContextIdentityKey, id)
		c.Next()
	}
}

// bearerToken 头部格式错误时 ok 为 false；没有头部时回落到 cookie
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		cookie, err := c.Cookie(AccessTokenCookie)
		if err != nil {
			return "", true
		}
		return strings.TrimSpace(cookie), true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// CurrentIdentity 只在 AuthMiddleware 之后调用
func CurrentIdentity(c *gin.Context) pkg.Identity {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return pkg.Identity{}
	}
	id, _ := v.(pkg.Identity)
	return id
}
