package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ==================== JWT 配置 ====================

// JWTConfig 操作员令牌配置（令牌由 CRM 侧签发，本服务只校验）
type JWTConfig struct {
	SecretKey string // 签名密钥，为空时关闭认证
	Issuer    string // 期望的签发者，为空时不校验
	Required  bool   // true: 缺少令牌返回 401；false: 仅在携带时解析
}

var (
	ErrInvalidSigningMethod = errors.New("invalid signing method")
	ErrInvalidToken         = errors.New("invalid token")
)

// ==================== Claims 定义 ====================

// OperatorClaims 操作员声明
type OperatorClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator 令牌签发/校验
type Authenticator struct {
	cfg JWTConfig
}

// NewAuthenticator 创建认证器
func NewAuthenticator(cfg JWTConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Enabled 是否启用认证
func (a *Authenticator) Enabled() bool {
	return a.cfg.SecretKey != ""
}

// IssueToken 签发访问令牌（测试与运维脚本使用）
func (a *Authenticator) IssueToken(userID int64, username, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &OperatorClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.cfg.Issuer,
			Subject:   "access",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.SecretKey))
}

// ParseToken 解析并校验令牌
func (a *Authenticator) ParseToken(tokenString string) (*OperatorClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return []byte(a.cfg.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid && claims.Subject == "access" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ==================== Gin 中间件 ====================

// Context Keys
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
	ContextKeyRole     = "role"
)

// Middleware 认证中间件
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if a.cfg.Required {
				abortUnauthorized(c, "未提供认证信息")
				return
			}
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || raw == "" {
			abortUnauthorized(c, "认证格式错误，应为 Bearer {token}")
			return
		}

		claims, err := a.ParseToken(raw)
		if err != nil {
			abortUnauthorized(c, "Token 无效或已过期")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    401,
		"message": msg,
	})
	c.Abort()
}

// ==================== 辅助函数 ====================

// GetUserID 从 Context 获取用户 ID
func GetUserID(c *gin.Context) int64 {
	return contextValue[int64](c, ContextKeyUserID)
}

// GetUsername 从 Context 获取用户名
func GetUsername(c *gin.Context) string {
	return contextValue[string](c, ContextKeyUsername)
}

func contextValue[T any](c *gin.Context, key string) T {
	v, _ := c.Value(key).(T)
	return v
}
