package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"publisher-service/internal/auth"
)

// AuthMiddleware 统一认证中间件
// 验证JWT令牌并将用户信息存储到上下文中
func AuthMiddleware(secretKey string) gin.HandlerFunc {
	jwtService := auth.NewJWTService(secretKey, 0) // 使用默认过期时间

	return func(c *gin.Context) {
		// 获取Authorization头
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "未提供认证信息"})
			c.Abort()
			return
		}

		// 检查Token格式
		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "认证格式无效"})
			c.Abort()
			return
		}

		// 验证Token
		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token无效或已过期: " + err.Error()})
			c.Abort()
			return
		}

		// 将用户信息存储到上下文中
		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("tenantID", claims.TenantID)
		c.Set("roles", claims.Roles)

		// 设置租户ID到请求头，以便于微服务间传递
		c.Request.Header.Set("X-Tenant-ID", claims.TenantID)

		c.Next()
	}
}

// TenantAuthMiddleware 租户认证中间件
// 确保请求上下文中有可用的租户ID
func TenantAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取用户的租户ID
		tenantID, exists := c.Get("tenantID")
		if exists {
			if s, ok := tenantID.(string); ok && s != "" {
				c.Next()
				return
			}
		}

		// 从请求头获取租户ID
		headerTenantID := c.GetHeader("X-Tenant-ID")
		if headerTenantID == "" {
			headerTenantID = c.Query("tenantId")
		}
		if headerTenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "未提供租户ID"})
			c.Abort()
			return
		}

		c.Set("tenantID", headerTenantID)
		c.Next()
	}
}
