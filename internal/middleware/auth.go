package middleware

import (
	"net/http"
	"zhutan/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const CheckUserKey = "user"

// SessionUserKey 会话中保存用户 ID 的键，由账号系统写入
const SessionUserKey = "user_id"

// AuthRequired 未登录返回 401 JSON
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "login required"},
			})
			return
		}
		c.Next()
	}
}

// LoadUser 从 session 读取用户并放入 context；用户已不存在时按未登录处理
func LoadUser(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(SessionUserKey)

		if userID != nil {
			var user models.User
			result := gdb.WithContext(c.Request.Context()).First(&user, userID)
			if result.Error == nil {
				c.Set(CheckUserKey, &user)
			}
		}
		c.Next()
	}
}

// CurrentUser 返回当前登录用户
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(CheckUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
