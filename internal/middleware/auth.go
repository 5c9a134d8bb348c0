package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"discussable/internal/services"
	"discussable/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CheckUserKey 当前登录用户 ID 在 gin.Context 中的键
const CheckUserKey = "user_id"

const tokenIssuer = "discussable"

// Authenticator 校验身份服务签发的 HS256 Bearer token，sub 为用户 ID
type Authenticator struct {
	secret []byte
	users  *services.UserDirectory
}

func NewAuthenticator(secret string, users *services.UserDirectory) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

// GenerateToken signs a token for userID. Tokens are normally minted by the
// identity provider; this is used by tooling and tests.
func GenerateToken(secret string, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (a *Authenticator) parse(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid subject")
	}
	return uint(id), nil
}

// LoadUser 解析可选的 Bearer token。没有 token 时按匿名用户继续，token 无效时返回 401
func (a *Authenticator) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		userID, err := a.parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ok, err := a.users.Exists(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": utils.ErrDatabase, "error": "failed to verify user"})
			return
		}
		if !ok {
			abortUnauthorized(c, "unknown user")
			return
		}

		c.Set(CheckUserKey, userID)
		c.Next()
	}
}

// AuthRequired ensures a user is logged in. LoadUser must run first.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == 0 {
			abortUnauthorized(c, "login required")
			return
		}
		c.Next()
	}
}

// UserID 返回当前用户 ID，匿名为 0
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(CheckUserKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func abortUnauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":  utils.ErrUnauthorized,
		"error": utils.NewUnauthorizedError(reason).Error(),
	})
}
